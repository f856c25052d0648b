/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package lock

import (
	"context"
	"sync"
	"time"

	coordinationv1 "k8s.io/api/coordination/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/util/retry"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Lease locker", func() {
	const namespace = "fleet-rollout-system"

	var (
		kubeClient client.Client
		clock      *fakeClock
	)

	newLocker := func(identity string) *LeaseLocker {
		locker := NewLeaseLocker(kubeClient, namespace, identity, time.Minute)
		locker.retryPeriod = 5 * time.Millisecond
		locker.now = clock.Now
		return locker
	}

	getLease := func(ctx context.Context, name string) coordinationv1.Lease {
		var lease coordinationv1.Lease
		Expect(kubeClient.Get(ctx, types.NamespacedName{
			Namespace: namespace, Name: LeaseName(name),
		}, &lease)).To(Succeed())
		return lease
	}

	BeforeEach(func() {
		kubeClient = fake.NewClientBuilder().WithScheme(scheme.Scheme).Build()
		clock = &fakeClock{now: time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)}
	})

	It("sanitizes lease names", func() {
		Expect(LeaseName("maintainer/InstanceUpgrader")).To(Equal("fleet-rollout-maintainer-instanceupgrader"))
	})

	It("creates the lease and excludes other replicas", func(ctx SpecContext) {
		first := newLocker("replica-1")
		second := newLocker("replica-2")

		held, err := first.TryLock(ctx, "system-upgrader", time.Second)
		Expect(err).ToNot(HaveOccurred())

		lease := getLease(ctx, "system-upgrader")
		Expect(ptr.Deref(lease.Spec.HolderIdentity, "")).To(Equal("replica-1"))

		_, err = second.TryLock(ctx, "system-upgrader", 30*time.Millisecond)
		Expect(err).To(MatchError(ErrLockTimeout))

		Expect(held.Unlock(ctx)).To(Succeed())
		held, err = second.TryLock(ctx, "system-upgrader", time.Second)
		Expect(err).ToNot(HaveOccurred())
		Expect(held.Unlock(ctx)).To(Succeed())
	})

	It("takes over expired leases", func(ctx SpecContext) {
		first := newLocker("replica-1")
		_, err := first.TryLock(ctx, "os-upgrader", time.Second)
		Expect(err).ToNot(HaveOccurred())

		clock.Advance(2 * time.Minute)
		second := newLocker("replica-2")
		_, err = second.TryLock(ctx, "os-upgrader", time.Second)
		Expect(err).ToNot(HaveOccurred())

		lease := getLease(ctx, "os-upgrader")
		Expect(ptr.Deref(lease.Spec.HolderIdentity, "")).To(Equal("replica-2"))
		Expect(ptr.Deref(lease.Spec.LeaseTransitions, 0)).To(BeEquivalentTo(1))
	})

	It("renews the lease while a long pass holds it", func(ctx SpecContext) {
		first := newLocker("replica-1")
		first.renewPeriod = 5 * time.Millisecond
		held, err := first.TryLock(ctx, "system-upgrader", time.Second)
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 3; i++ {
			clock.Advance(31 * time.Second)
			renewed := clock.Now()
			Eventually(func(g Gomega) {
				lease := getLease(ctx, "system-upgrader")
				g.Expect(lease.Spec.RenewTime).ToNot(BeNil())
				g.Expect(lease.Spec.RenewTime.Time.Equal(renewed)).To(BeTrue())
			}).Should(Succeed())
		}

		second := newLocker("replica-2")
		_, err = second.TryLock(ctx, "system-upgrader", 30*time.Millisecond)
		Expect(err).To(MatchError(ErrLockTimeout))

		Expect(held.Unlock(ctx)).To(Succeed())
		taken, err := second.TryLock(ctx, "system-upgrader", time.Second)
		Expect(err).ToNot(HaveOccurred())
		Expect(taken.Unlock(ctx)).To(Succeed())
	})

	It("stops renewing a lease taken over by another replica", func(ctx SpecContext) {
		first := newLocker("replica-1")
		first.renewPeriod = 5 * time.Millisecond
		held, err := first.TryLock(ctx, "os-upgrader", time.Second)
		Expect(err).ToNot(HaveOccurred())

		Expect(retry.RetryOnConflict(retry.DefaultRetry, func() error {
			lease := getLease(ctx, "os-upgrader")
			lease.Spec.HolderIdentity = ptr.To("replica-2")
			return kubeClient.Update(ctx, &lease)
		})).To(Succeed())

		Eventually(held.(*leaseLock).done).Should(BeClosed())
		Expect(held.Unlock(ctx)).To(Succeed())
		Expect(ptr.Deref(getLease(ctx, "os-upgrader").Spec.HolderIdentity, "")).To(Equal("replica-2"))
	})
})

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
