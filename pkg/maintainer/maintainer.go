/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package maintainer runs the maintenance jobs of the rollout manager.
// Every job runs as a short pass on a fixed interval, on a single replica
// at a time thanks to a named lock. Failing to get the lock abandons the
// tick: the next one will retry.
package maintainer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fleetrollout/fleet-rollout/pkg/lock"
	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
)

// Job is a maintenance job. Maintain must be a bounded pass over the
// current state, containing its own errors in the returned result.
type Job interface {
	Name() string
	Maintain(ctx context.Context) RunResult
}

// Maintainer runs a Job under a named lock, reporting to the metrics
type Maintainer struct {
	job         Job
	interval    time.Duration
	locker      lock.Locker
	lockTimeout time.Duration
	metrics     *Metrics
	running     atomic.Bool
}

// New creates a new Maintainer
func New(job Job, interval time.Duration, locker lock.Locker, lockTimeout time.Duration, metrics *Metrics) *Maintainer {
	return &Maintainer{
		job:         job,
		interval:    interval,
		locker:      locker,
		lockTimeout: lockTimeout,
		metrics:     metrics,
	}
}

// Name is the name of the job
func (m *Maintainer) Name() string {
	return m.job.Name()
}

// Interval is how often the job runs
func (m *Maintainer) Interval() time.Duration {
	return m.interval
}

// LockName is the name of the lock guarding the job
func (m *Maintainer) LockName() string {
	return "maintainer/" + m.job.Name()
}

// RunOnce runs a single tick of the job. The returned flag is false
// when the tick was abandoned.
func (m *Maintainer) RunOnce(ctx context.Context) (RunResult, bool) {
	contextLogger := log.FromContext(ctx).WithValues("job", m.job.Name(), "run", uuid.NewString())
	ctx = log.IntoContext(ctx, contextLogger)

	if !m.running.CompareAndSwap(false, true) {
		contextLogger.Debug("Previous tick still running, skipping")
		m.metrics.skipped(m.job.Name())
		return RunResult{}, false
	}
	defer m.running.Store(false)

	acquired, err := m.locker.TryLock(ctx, m.LockName(), m.lockTimeout)
	if errors.Is(err, lock.ErrLockTimeout) {
		contextLogger.Debug("Lock held elsewhere, skipping tick")
		m.metrics.skipped(m.job.Name())
		return RunResult{}, false
	}
	if err != nil {
		contextLogger.Warning("Cannot acquire the job lock, skipping tick", "error", err.Error())
		m.metrics.skipped(m.job.Name())
		return RunResult{}, false
	}
	defer func() {
		if err := acquired.Unlock(context.WithoutCancel(ctx)); err != nil {
			contextLogger.Warning("Cannot release the job lock", "error", err.Error())
		}
	}()

	start := time.Now()
	result, outcome := m.maintain(ctx)
	elapsed := time.Since(start)
	m.metrics.observe(m.job.Name(), outcome, result, elapsed)

	contextLogger.Debug("Tick completed",
		"attempts", result.Attempts,
		"failures", result.Failures,
		"successRatio", result.SuccessRatio(),
		"elapsed", elapsed.String())
	return result, true
}

func (m *Maintainer) maintain(ctx context.Context) (result RunResult, outcome string) {
	defer func() {
		if r := recover(); r != nil {
			log.FromContext(ctx).Error(fmt.Errorf("%v", r), "Maintenance pass panicked")
			result, outcome = Failed(), OutcomePanicked
		}
	}()
	return m.job.Maintain(ctx), OutcomeCompleted
}
