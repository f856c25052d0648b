/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package rolling contains the engine rolling a fixed set of system
// components to a target version across every zone. Zones are visited
// step by step, and a component moves in a zone only after its
// dependencies converged there. The domain specific parts are supplied
// by a Policy.
package rolling

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
	"github.com/fleetrollout/fleet-rollout/pkg/maintainer"
	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
)

// Policy supplies the domain specific behavior of a rollout
type Policy interface {
	// Target is the version to roll out, nil when there is nothing to do
	Target(ctx context.Context) (*apiv1.VersionTarget, error)

	// ConvergedOn is true when the component reached the target in the zone
	ConvergedOn(
		ctx context.Context,
		target apiv1.VersionTarget,
		component apiv1.SystemComponent,
		zone apiv1.ZoneName,
	) (bool, error)

	// ChangeTargetTo is true when the version wanted for the component in
	// the zone differs from the target
	ChangeTargetTo(
		ctx context.Context,
		target apiv1.VersionTarget,
		component apiv1.SystemComponent,
		zone apiv1.ZoneName,
	) (bool, error)

	// Upgrade moves the component to the target in the zone. It must be
	// idempotent.
	Upgrade(
		ctx context.Context,
		target apiv1.VersionTarget,
		component apiv1.SystemComponent,
		zone apiv1.ZoneName,
	) error
}

// Upgrader is a maintenance job driving system components to the
// target of its Policy
type Upgrader struct {
	name             string
	steps            []apiv1.ZoneStep
	components       []apiv1.SystemComponent
	policy           Policy
	maxParallelZones int
}

// Option configures an Upgrader
type Option func(*Upgrader)

// WithMaxParallelZones processes up to n zones of the same step
// concurrently. Zones are processed one at a time by default.
func WithMaxParallelZones(n int) Option {
	return func(u *Upgrader) {
		u.maxParallelZones = n
	}
}

// NewUpgrader creates a new Upgrader
func NewUpgrader(
	name string,
	steps []apiv1.ZoneStep,
	components []apiv1.SystemComponent,
	policy Policy,
	options ...Option,
) *Upgrader {
	result := &Upgrader{
		name:             name,
		steps:            steps,
		components:       components,
		policy:           policy,
		maxParallelZones: 1,
	}
	for _, option := range options {
		option(result)
	}
	if result.maxParallelZones < 1 {
		result.maxParallelZones = 1
	}
	return result
}

// Name implements maintainer.Job
func (u *Upgrader) Name() string {
	return u.name
}

// Maintain implements maintainer.Job, running a single rollout pass
func (u *Upgrader) Maintain(ctx context.Context) maintainer.RunResult {
	contextLogger := log.FromContext(ctx).WithValues("upgrader", u.name)
	ctx = log.IntoContext(ctx, contextLogger)

	target, err := u.policy.Target(ctx)
	if err != nil {
		contextLogger.Warning("Cannot resolve the target version", "error", err.Error())
		return maintainer.Failed()
	}
	if target == nil {
		contextLogger.Debug("No target version, nothing to do")
		return maintainer.RunResult{}
	}

	plan := Plan(u.steps, u.components, target.Downgrade)
	for _, skipped := range plan.Skipped {
		contextLogger.Warning("Skipping component with inconsistent dependencies",
			"component", skipped.Name, "reason", skipped.Reason)
	}

	var result maintainer.RunResult
	for idx, step := range plan.Steps {
		stepResult, converged := u.upgradeStep(ctx, *target, step, plan)
		result = result.Add(stepResult)
		if !converged {
			contextLogger.Info("Zone step not converged yet, not proceeding",
				"target", target.String(), "step", idx, "zones", step)
			break
		}
	}

	if result.Failures > 0 {
		contextLogger.Warning("Rollout pass completed with failures",
			"target", target.String(),
			"attempts", result.Attempts,
			"failures", result.Failures)
	}
	return result
}

type zoneResult struct {
	converged bool
	err       error
}

// upgradeStep processes every zone of a step, returning whether the
// whole step converged. Every zone is finished before returning.
func (u *Upgrader) upgradeStep(
	ctx context.Context,
	target apiv1.VersionTarget,
	step apiv1.ZoneStep,
	plan RolloutPlan,
) (maintainer.RunResult, bool) {
	results := make([]zoneResult, len(step))

	var group errgroup.Group
	group.SetLimit(u.maxParallelZones)
	for idx, zone := range step {
		group.Go(func() error {
			results[idx].converged, results[idx].err = u.upgradeZone(ctx, target, zone, plan)
			return nil
		})
	}
	_ = group.Wait()

	var result maintainer.RunResult
	converged := true
	for idx, zone := range step {
		result.Record(results[idx].err)
		if results[idx].err != nil {
			log.FromContext(ctx).Warning("Cannot roll out in zone",
				"zone", zone, "target", target.String(), "error", results[idx].err.Error())
		}
		converged = converged && results[idx].err == nil && results[idx].converged
	}
	return result, converged
}

// upgradeZone moves every component of a zone whose dependencies
// converged, returning whether every component converged
func (u *Upgrader) upgradeZone(
	ctx context.Context,
	target apiv1.VersionTarget,
	zone apiv1.ZoneName,
	plan RolloutPlan,
) (converged bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			converged, err = false, fmt.Errorf("panic while processing zone %v: %v", zone, r)
		}
	}()

	contextLogger := log.FromContext(ctx).WithValues("zone", zone)
	componentConverged := make(map[string]bool, len(plan.Components))
	converged = len(plan.Skipped) == 0

	for _, component := range plan.Components {
		if dependenciesConverged(plan.Dependencies[component.Name], componentConverged) {
			change, err := u.policy.ChangeTargetTo(ctx, target, component, zone)
			if err != nil {
				return false, fmt.Errorf("while checking the target of %v: %w", component.Name, err)
			}
			if change {
				contextLogger.Info("Rolling out component",
					"component", component.Name, "target", target.String())
				if err := u.policy.Upgrade(ctx, target, component, zone); err != nil {
					return false, fmt.Errorf("while upgrading %v: %w", component.Name, err)
				}
			}
		}

		done, err := u.policy.ConvergedOn(ctx, target, component, zone)
		if err != nil {
			return false, fmt.Errorf("while checking the convergence of %v: %w", component.Name, err)
		}
		componentConverged[component.Name] = done
		converged = converged && done
	}

	return converged, nil
}

func dependenciesConverged(dependencies []string, converged map[string]bool) bool {
	for _, dependency := range dependencies {
		if !converged[dependency] {
			return false
		}
	}
	return true
}
