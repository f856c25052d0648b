/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package controllers

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/thoas/go-funk"

	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
	"github.com/fleetrollout/fleet-rollout/pkg/confidence"
	"github.com/fleetrollout/fleet-rollout/pkg/maintainer"
	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
	"github.com/fleetrollout/fleet-rollout/pkg/ratewindow"
	"github.com/fleetrollout/fleet-rollout/pkg/versions"
)

const (
	// InstanceUpgraderName is the name of the job upgrading tenant instances
	InstanceUpgraderName = "instance-upgrader"

	reasonBrokenTarget    = "target is broken"
	reasonOutdatedTarget  = "upgrading to outdated version"
	reasonFailingRevision = "revision is failing"
)

// InstanceUpgrader moves tenant instances to the newest platform version
// their upgrade policy allows, without exceeding the fleet upgrade rate
type InstanceUpgrader struct {
	status    VersionStatusSource
	instances InstanceSource
	trigger   DeploymentTrigger

	interval     time.Duration
	defaultMajor uint64
	now          func() time.Time
	random       *rand.Rand

	rateLock          sync.RWMutex
	upgradesPerMinute float64
}

// InstanceUpgraderOption configures an InstanceUpgrader
type InstanceUpgraderOption func(*InstanceUpgrader)

// WithUpgradesPerMinute sets the initial upgrade rate
func WithUpgradesPerMinute(rate float64) InstanceUpgraderOption {
	return func(u *InstanceUpgrader) {
		u.upgradesPerMinute = rate
	}
}

// WithDefaultMajorVersion sets the newest major accepted by instances
// without an own limit. 0 means no limit.
func WithDefaultMajorVersion(major uint64) InstanceUpgraderOption {
	return func(u *InstanceUpgrader) {
		u.defaultMajor = major
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) InstanceUpgraderOption {
	return func(u *InstanceUpgrader) {
		u.now = now
	}
}

// WithRandom sets the source used to shuffle the upgrade candidates
func WithRandom(random *rand.Rand) InstanceUpgraderOption {
	return func(u *InstanceUpgrader) {
		u.random = random
	}
}

// NewInstanceUpgrader creates a new InstanceUpgrader running every interval
func NewInstanceUpgrader(
	status VersionStatusSource,
	instances InstanceSource,
	trigger DeploymentTrigger,
	interval time.Duration,
	options ...InstanceUpgraderOption,
) *InstanceUpgrader {
	result := &InstanceUpgrader{
		status:            status,
		instances:         instances,
		trigger:           trigger,
		interval:          interval,
		now:               time.Now,
		upgradesPerMinute: 1,
	}
	for _, option := range options {
		option(result)
	}
	if result.random == nil {
		result.random = rand.New(rand.NewSource(result.now().UnixNano())) //nolint:gosec
	}
	return result
}

// Name implements maintainer.Job
func (u *InstanceUpgrader) Name() string {
	return InstanceUpgraderName
}

// UpgradesPerMinute is the current fleet upgrade rate
func (u *InstanceUpgrader) UpgradesPerMinute() float64 {
	u.rateLock.RLock()
	defer u.rateLock.RUnlock()
	return u.upgradesPerMinute
}

// SetUpgradesPerMinute changes the fleet upgrade rate, effective
// from the next pass
func (u *InstanceUpgrader) SetUpgradesPerMinute(rate float64) {
	u.rateLock.Lock()
	defer u.rateLock.Unlock()
	u.upgradesPerMinute = rate
}

// upgradeCandidate is an instance selected to move to a version
type upgradeCandidate struct {
	instance *apiv1.TenantInstance
	version  versions.Version
}

// Maintain implements maintainer.Job, running a single scheduling pass
func (u *InstanceUpgrader) Maintain(ctx context.Context) maintainer.RunResult {
	contextLogger := log.FromContext(ctx).WithValues("upgrader", InstanceUpgraderName)
	ctx = log.IntoContext(ctx, contextLogger)
	now := u.now()

	status, err := u.status.VersionStatus(ctx)
	if err != nil {
		contextLogger.Warning("Cannot read the version status", "error", err.Error())
		return maintainer.Failed()
	}

	instances, err := u.instances.ListInstances(ctx)
	if err != nil {
		contextLogger.Warning("Cannot list the tenant instances", "error", err.Error())
		return maintainer.Failed()
	}

	var result maintainer.RunResult
	result = result.Add(u.cancelBrokenTargets(ctx, status, instances))

	for _, policy := range apiv1.UpgradePolicies {
		candidates, policyResult := u.targetInstances(ctx, status, instances, policy, now)
		result = result.Add(policyResult)

		selected := u.prioritize(candidates)
		if !policy.IsCanary() {
			allowed := max(ratewindow.ActionsAllowedAt(u.interval, now, u.UpgradesPerMinute()*policy.Pace()), 0)
			if allowed < len(selected) {
				contextLogger.Debug("Upgrade rate exhausted, postponing instances",
					"policy", policy, "candidates", len(selected), "allowed", allowed)
				selected = selected[:allowed]
			}
		}

		for _, candidate := range selected {
			result = result.Add(u.upgradeInstance(ctx, candidate))
		}
	}

	if result.Failures > 0 {
		contextLogger.Warning("Instance upgrade pass completed with failures",
			"attempts", result.Attempts, "failures", result.Failures)
	}
	return result
}

// cancelBrokenTargets stops the changes towards versions which became
// broken while in flight
func (u *InstanceUpgrader) cancelBrokenTargets(
	ctx context.Context,
	status apiv1.VersionStatus,
	instances []apiv1.TenantInstance,
) maintainer.RunResult {
	var result maintainer.RunResult
	for idx := range instances {
		instance := &instances[idx]
		target, upgrading := instance.UpgradingTo()
		if !upgrading || instance.Pinned {
			continue
		}
		targetConfidence, known := status.ConfidenceOf(target)
		if !known || !confidence.ShouldCancel(instance.Policy, targetConfidence) {
			continue
		}

		err := u.cancel(ctx, instance, apiv1.ChangeKindPlatform, reasonBrokenTarget)
		result.Record(err)
	}
	return result
}

// targetInstances selects, for every instance of the policy, the newest
// version it can move to. In flight changes which are not the best
// choice anymore are cancelled.
func (u *InstanceUpgrader) targetInstances(
	ctx context.Context,
	status apiv1.VersionStatus,
	instances []apiv1.TenantInstance,
	policy apiv1.UpgradePolicy,
	now time.Time,
) ([]upgradeCandidate, maintainer.RunResult) {
	var result maintainer.RunResult
	var candidates []upgradeCandidate

	all := make([]*apiv1.TenantInstance, 0, len(instances))
	for idx := range instances {
		all = append(all, &instances[idx])
	}
	remaining := funk.Filter(all, func(instance *apiv1.TenantInstance) bool {
		return instance.Policy == policy && !instance.Pinned && instance.HasProductionDeployment()
	}).([]*apiv1.TenantInstance)

	for _, version := range confidence.Targets(status, policy) {
		next := make([]*apiv1.TenantInstance, 0, len(remaining))
		for _, instance := range remaining {
			eligible := u.canUpgradeTo(instance, version, now)

			if u.isOutdated(instance, version, eligible, policy) {
				result.Record(u.cancel(ctx, instance, apiv1.ChangeKindPlatform, reasonOutdatedTarget))
			}

			if _, upgrading := instance.UpgradingTo(); eligible && !upgrading {
				candidates = append(candidates, upgradeCandidate{instance: instance, version: version})
			}

			if !eligible && !instance.HasCompleted(version) {
				next = append(next, instance)
			}
		}
		remaining = next
	}

	return candidates, result
}

// canUpgradeTo is true when the instance could move to the passed version now
func (u *InstanceUpgrader) canUpgradeTo(
	instance *apiv1.TenantInstance,
	version versions.Version,
	now time.Time,
) bool {
	return !instance.IsFailingOn(version) &&
		instance.CompatibleWithMajor(version, u.defaultMajor) &&
		!instance.HasCompleted(version) &&
		instance.OldestDeployedVersion().Less(version) &&
		instance.CanChangeAt(now)
}

// isOutdated is true when the in flight change of the instance must be
// dropped given that version is the best candidate considered now.
// Canary instances are only redirected to newer versions they can run.
// A change towards version itself is kept unless the instance cannot run
// it: an instance inside a block window, or one whose deployments already
// reached version, is not eligible but is still on the right track.
func (u *InstanceUpgrader) isOutdated(
	instance *apiv1.TenantInstance,
	version versions.Version,
	eligible bool,
	policy apiv1.UpgradePolicy,
) bool {
	target, upgrading := instance.UpgradingTo()
	if !upgrading {
		return false
	}
	switch {
	case eligible:
		return target.Less(version)
	case policy.IsCanary():
		return false
	case target.Less(version):
		return true
	case target.Equal(version):
		return instance.IsFailingOn(version) || !instance.CompatibleWithMajor(version, u.defaultMajor)
	default:
		return false
	}
}

// prioritize orders the candidates by oldest deployed version, breaking
// ties randomly
func (u *InstanceUpgrader) prioritize(candidates []upgradeCandidate) []upgradeCandidate {
	u.random.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].instance.OldestDeployedVersion().Less(
			candidates[j].instance.OldestDeployedVersion())
	})
	return candidates
}

// upgradeInstance requests the platform change of a selected instance,
// dropping a failing revision change first
func (u *InstanceUpgrader) upgradeInstance(ctx context.Context, candidate upgradeCandidate) maintainer.RunResult {
	var result maintainer.RunResult
	instance := candidate.instance
	contextLogger := log.FromContext(ctx).WithValues("instance", instance.ID)

	if instance.Change.Revision != "" && instance.Change.RevisionFailing {
		err := u.cancel(ctx, instance, apiv1.ChangeKindRevision, reasonFailingRevision)
		result.Record(err)
		if err != nil {
			return result
		}
	}

	contextLogger.Info("Upgrading instance", "policy", instance.Policy, "version", candidate.version.String())
	err := u.trigger.ForceChange(ctx, instance.ID, candidate.version)
	if err != nil {
		contextLogger.Warning("Cannot upgrade instance",
			"version", candidate.version.String(), "error", err.Error())
	} else {
		upgrading := candidate.version
		instance.Change.Platform = &upgrading
	}
	result.Record(err)
	return result
}

// cancel drops a change of the instance, updating the local copy on success
func (u *InstanceUpgrader) cancel(
	ctx context.Context,
	instance *apiv1.TenantInstance,
	kind apiv1.ChangeKind,
	reason string,
) error {
	contextLogger := log.FromContext(ctx).WithValues("instance", instance.ID, "kind", kind)
	contextLogger.Info("Cancelling change", "reason", reason)

	if err := u.trigger.Cancel(ctx, instance.ID, kind, reason); err != nil {
		contextLogger.Warning("Cannot cancel change", "reason", reason, "error", err.Error())
		return err
	}

	switch kind {
	case apiv1.ChangeKindPlatform:
		instance.Change.Platform = nil
	case apiv1.ChangeKindRevision:
		instance.Change.Revision = ""
		instance.Change.RevisionFailing = false
	}
	return nil
}
