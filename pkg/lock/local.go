/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is a Locker whose locks are only visible inside the
// current process. It is meant for single replica deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal creates a new LocalLocker
func NewLocal() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	result, ok := l.slots[name]
	if !ok {
		result = make(chan struct{}, 1)
		l.slots[name] = result
	}
	return result
}

// TryLock implements Locker
func (l *LocalLocker) TryLock(ctx context.Context, name string, timeout time.Duration) (Lock, error) {
	slot := l.slot(name)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return &localLock{slot: slot}, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type localLock struct {
	once sync.Once
	slot chan struct{}
}

func (l *localLock) Unlock(context.Context) error {
	l.once.Do(func() {
		<-l.slot
	})
	return nil
}
