/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package maintainer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fleetrollout/fleet-rollout/pkg/lock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeJob struct {
	name   string
	calls  atomic.Int32
	result RunResult
	panics bool
}

func (j *fakeJob) Name() string {
	if j.name == "" {
		return "FakeJob"
	}
	return j.name
}

func (j *fakeJob) Maintain(context.Context) RunResult {
	j.calls.Add(1)
	if j.panics {
		panic("zone inventory exploded")
	}
	return j.result
}

type failingLocker struct{}

func (failingLocker) TryLock(context.Context, string, time.Duration) (lock.Lock, error) {
	return nil, errors.New("lock service unreachable")
}

var _ = Describe("Run results", func() {
	It("computes the success ratio", func() {
		Expect(RunResult{}.SuccessRatio()).To(Equal(1.0))
		Expect(RunResult{Attempts: 4, Failures: 1}.SuccessRatio()).To(Equal(0.75))
		Expect(Failed().SuccessRatio()).To(BeZero())
	})

	It("accumulates attempts", func() {
		var result RunResult
		result.Record(nil)
		result.Record(errors.New("boom"))
		Expect(result).To(Equal(RunResult{Attempts: 2, Failures: 1}))
		Expect(result.Add(RunResult{Attempts: 2})).To(Equal(RunResult{Attempts: 4, Failures: 1}))
	})
})

var _ = Describe("Maintainer", func() {
	var (
		metrics *Metrics
		locker  *lock.LocalLocker
		job     *fakeJob
	)

	BeforeEach(func() {
		metrics = NewMetrics(prometheus.NewRegistry())
		locker = lock.NewLocal()
		job = &fakeJob{result: RunResult{Attempts: 4, Failures: 1}}
	})

	It("runs the job and reports its success ratio", func(ctx SpecContext) {
		maintainer := New(job, time.Minute, locker, 10*time.Millisecond, metrics)
		result, ran := maintainer.RunOnce(ctx)
		Expect(ran).To(BeTrue())
		Expect(result.SuccessRatio()).To(Equal(0.75))
		Expect(testutil.ToFloat64(metrics.successRatio.WithLabelValues("FakeJob"))).To(Equal(0.75))
		Expect(testutil.ToFloat64(metrics.runs.WithLabelValues("FakeJob", OutcomeCompleted))).To(Equal(1.0))
	})

	It("silently abandons the tick when the lock is held", func(ctx SpecContext) {
		maintainer := New(job, time.Minute, locker, 10*time.Millisecond, metrics)
		held, err := locker.TryLock(ctx, maintainer.LockName(), time.Second)
		Expect(err).ToNot(HaveOccurred())

		_, ran := maintainer.RunOnce(ctx)
		Expect(ran).To(BeFalse())
		Expect(job.calls.Load()).To(BeZero())
		Expect(testutil.ToFloat64(metrics.runs.WithLabelValues("FakeJob", OutcomeSkipped))).To(Equal(1.0))

		Expect(held.Unlock(ctx)).To(Succeed())
		_, ran = maintainer.RunOnce(ctx)
		Expect(ran).To(BeTrue())
	})

	It("skips the tick when the lock service fails", func(ctx SpecContext) {
		maintainer := New(job, time.Minute, failingLocker{}, 10*time.Millisecond, metrics)
		_, ran := maintainer.RunOnce(ctx)
		Expect(ran).To(BeFalse())
		Expect(job.calls.Load()).To(BeZero())
	})

	It("contains panics and always releases the lock", func(ctx SpecContext) {
		job.panics = true
		maintainer := New(job, time.Minute, locker, 10*time.Millisecond, metrics)
		result, ran := maintainer.RunOnce(ctx)
		Expect(ran).To(BeTrue())
		Expect(result.SuccessRatio()).To(BeZero())
		Expect(testutil.ToFloat64(metrics.runs.WithLabelValues("FakeJob", OutcomePanicked))).To(Equal(1.0))

		held, err := locker.TryLock(ctx, maintainer.LockName(), 10*time.Millisecond)
		Expect(err).ToNot(HaveOccurred())
		Expect(held.Unlock(ctx)).To(Succeed())
	})
})

var _ = Describe("Scheduler", func() {
	It("stops when the context is done", func() {
		metrics := NewMetrics(prometheus.NewRegistry())
		scheduler := NewScheduler()
		scheduler.Register(New(&fakeJob{}, time.Hour, lock.NewLocal(), time.Second, metrics))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() {
			done <- scheduler.Start(ctx)
		}()
		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("runs every registered job on its own schedule", func() {
		metrics := NewMetrics(prometheus.NewRegistry())
		locker := lock.NewLocal()
		platform := &fakeJob{name: "platform"}
		osJob := &fakeJob{name: "os"}
		scheduler := NewScheduler()
		scheduler.Register(New(platform, time.Second, locker, time.Second, metrics))
		scheduler.Register(New(osJob, time.Second, locker, time.Second, metrics))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			_ = scheduler.Start(ctx)
		}()

		Eventually(platform.calls.Load).WithTimeout(5 * time.Second).Should(BeNumerically(">=", 1))
		Eventually(osJob.calls.Load).WithTimeout(5 * time.Second).Should(BeNumerically(">=", 1))
	})
})
