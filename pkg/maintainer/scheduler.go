/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package maintainer

import (
	"context"

	"github.com/robfig/cron"

	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
)

// Scheduler runs every registered Maintainer on its own fixed interval
type Scheduler struct {
	cron        *cron.Cron
	maintainers []*Maintainer
}

// NewScheduler creates an empty Scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Register adds a Maintainer to the scheduler
func (s *Scheduler) Register(maintainer *Maintainer) {
	s.maintainers = append(s.maintainers, maintainer)
}

// Start runs the maintainers until the context is done
func (s *Scheduler) Start(ctx context.Context) error {
	contextLogger := log.FromContext(ctx)

	for _, maintainer := range s.maintainers {
		s.cron.Schedule(cron.Every(maintainer.Interval()), cron.FuncJob(func() {
			maintainer.RunOnce(ctx)
		}))
		contextLogger.Info("Scheduled maintenance job",
			"job", maintainer.Name(),
			"interval", maintainer.Interval().String())
	}

	s.cron.Start()
	<-ctx.Done()
	s.cron.Stop()
	contextLogger.Info("Maintenance jobs stopped")
	return nil
}
