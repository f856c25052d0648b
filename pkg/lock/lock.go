/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package lock contains the named locks guaranteeing that a maintenance
// job runs on a single replica at a time
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when the lock could not be acquired in time.
// This is expected contention and not a failure.
var ErrLockTimeout = errors.New("timed out waiting for the lock")

// Lock is an acquired lock
type Lock interface {
	// Unlock releases the lock
	Unlock(ctx context.Context) error
}

// Locker acquires named locks
type Locker interface {
	// TryLock acquires the lock called name, waiting at most timeout
	TryLock(ctx context.Context, name string, timeout time.Duration) (Lock, error)
}
