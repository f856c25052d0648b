/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package lock

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	coordinationv1 "k8s.io/api/coordination/v1"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
)

const leaseNamePrefix = "fleet-rollout-"

var invalidLeaseChars = regexp.MustCompile(`[^a-z0-9.-]+`)

// ErrLockLost is returned when a held lease was taken over by another
// replica
var ErrLockLost = errors.New("lease taken over by another holder")

// LeaseLocker is a Locker backed by Kubernetes Lease objects, shared by
// every replica of the rollout manager. A held lease is renewed in the
// background until it is released.
type LeaseLocker struct {
	client        client.Client
	namespace     string
	identity      string
	leaseDuration time.Duration
	retryPeriod   time.Duration
	renewPeriod   time.Duration
	now           func() time.Time
}

// NewLeaseLocker creates a LeaseLocker. The identity must be unique
// for each replica.
func NewLeaseLocker(
	kubeClient client.Client,
	namespace, identity string,
	leaseDuration time.Duration,
) *LeaseLocker {
	renewPeriod := leaseDuration / 3
	if renewPeriod <= 0 {
		renewPeriod = time.Second
	}
	return &LeaseLocker{
		client:        kubeClient,
		namespace:     namespace,
		identity:      identity,
		leaseDuration: leaseDuration,
		retryPeriod:   100 * time.Millisecond,
		renewPeriod:   renewPeriod,
		now:           time.Now,
	}
}

// LeaseName is the name of the Lease object used for a lock
func LeaseName(name string) string {
	sanitized := invalidLeaseChars.ReplaceAllString(strings.ToLower(name), "-")
	return leaseNamePrefix + strings.Trim(sanitized, "-.")
}

// TryLock implements Locker
func (l *LeaseLocker) TryLock(ctx context.Context, name string, timeout time.Duration) (Lock, error) {
	key := types.NamespacedName{Namespace: l.namespace, Name: LeaseName(name)}

	err := wait.PollUntilContextTimeout(ctx, l.retryPeriod, timeout, true, func(ctx context.Context) (bool, error) {
		return l.tryAcquire(ctx, key)
	})
	switch {
	case err == nil:
		renewCtx, cancel := context.WithCancel(ctx)
		held := &leaseLock{locker: l, key: key, cancel: cancel, done: make(chan struct{})}
		go held.keepAlive(renewCtx)
		return held, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case wait.Interrupted(err):
		return nil, ErrLockTimeout
	default:
		return nil, fmt.Errorf("while acquiring lease %v: %w", key, err)
	}
}

func (l *LeaseLocker) tryAcquire(ctx context.Context, key types.NamespacedName) (bool, error) {
	now := metav1.NewMicroTime(l.now())

	var lease coordinationv1.Lease
	err := l.client.Get(ctx, key, &lease)
	if apierrs.IsNotFound(err) {
		lease = coordinationv1.Lease{
			ObjectMeta: metav1.ObjectMeta{Namespace: key.Namespace, Name: key.Name},
			Spec: coordinationv1.LeaseSpec{
				HolderIdentity:       ptr.To(l.identity),
				LeaseDurationSeconds: ptr.To(int32(l.leaseDuration.Seconds())),
				AcquireTime:          &now,
				RenewTime:            &now,
			},
		}
		err = l.client.Create(ctx, &lease)
		if apierrs.IsAlreadyExists(err) {
			return false, nil
		}
		return err == nil, err
	}
	if err != nil {
		return false, err
	}

	if l.heldByOthers(&lease) {
		return false, nil
	}

	if ptr.Deref(lease.Spec.HolderIdentity, "") != l.identity {
		lease.Spec.LeaseTransitions = ptr.To(ptr.Deref(lease.Spec.LeaseTransitions, 0) + 1)
	}
	lease.Spec.HolderIdentity = ptr.To(l.identity)
	lease.Spec.LeaseDurationSeconds = ptr.To(int32(l.leaseDuration.Seconds()))
	lease.Spec.AcquireTime = &now
	lease.Spec.RenewTime = &now
	err = l.client.Update(ctx, &lease)
	if apierrs.IsConflict(err) {
		return false, nil
	}
	return err == nil, err
}

// heldByOthers is true when another replica holds a non-expired lease
func (l *LeaseLocker) heldByOthers(lease *coordinationv1.Lease) bool {
	holder := ptr.Deref(lease.Spec.HolderIdentity, "")
	if holder == "" || holder == l.identity {
		return false
	}
	if lease.Spec.RenewTime == nil {
		return false
	}
	duration := time.Duration(ptr.Deref(lease.Spec.LeaseDurationSeconds, 0)) * time.Second
	return lease.Spec.RenewTime.Add(duration).After(l.now())
}

// renew extends a lease held by this replica
func (l *LeaseLocker) renew(ctx context.Context, key types.NamespacedName) error {
	var lease coordinationv1.Lease
	if err := l.client.Get(ctx, key, &lease); err != nil {
		return err
	}
	if ptr.Deref(lease.Spec.HolderIdentity, "") != l.identity {
		return ErrLockLost
	}

	now := metav1.NewMicroTime(l.now())
	lease.Spec.RenewTime = &now
	return l.client.Update(ctx, &lease)
}

type leaseLock struct {
	locker *LeaseLocker
	key    types.NamespacedName
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// keepAlive renews the lease every renewPeriod until the context is done
// or the lease is lost
func (l *leaseLock) keepAlive(ctx context.Context) {
	defer close(l.done)
	contextLogger := log.FromContext(ctx).WithValues("lease", l.key.Name)

	ticker := time.NewTicker(l.locker.renewPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := l.locker.renew(ctx, l.key)
		switch {
		case err == nil:
			contextLogger.Trace("Lease renewed")
		case errors.Is(err, ErrLockLost):
			contextLogger.Warning("Lease lost while held, stopping renewals")
			return
		case ctx.Err() != nil:
			return
		default:
			// a conflict or a transient error, retried at the next tick
			contextLogger.Debug("Cannot renew the lease", "error", err.Error())
		}
	}
}

func (l *leaseLock) Unlock(ctx context.Context) error {
	l.once.Do(l.cancel)
	<-l.done

	var lease coordinationv1.Lease
	if err := l.locker.client.Get(ctx, l.key, &lease); err != nil {
		return client.IgnoreNotFound(err)
	}
	if ptr.Deref(lease.Spec.HolderIdentity, "") != l.locker.identity {
		log.FromContext(ctx).Warning("Lease taken over before release", "lease", l.key.Name,
			"holder", ptr.Deref(lease.Spec.HolderIdentity, ""))
		return nil
	}

	lease.Spec.HolderIdentity = nil
	lease.Spec.RenewTime = nil
	return client.IgnoreNotFound(l.locker.client.Update(ctx, &lease))
}
