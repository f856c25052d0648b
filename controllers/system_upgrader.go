/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package controllers

import (
	"context"
	"errors"
	"fmt"

	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
	"github.com/fleetrollout/fleet-rollout/pkg/confidence"
	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
	"github.com/fleetrollout/fleet-rollout/pkg/reconciler/rolling"
)

// SystemUpgraderName is the name of the job rolling out the platform
const SystemUpgraderName = "system-upgrader"

// systemPolicy rolls the platform components to the controller version,
// or back to the last known good version when the rollout was aborted
type systemPolicy struct {
	status   VersionStatusSource
	targets  TargetSource
	nodes    NodeRepository
	deployer ComponentDeployer
}

// NewSystemUpgrader creates the job rolling out the platform version
// to the system components
func NewSystemUpgrader(
	status VersionStatusSource,
	targets TargetSource,
	nodes NodeRepository,
	deployer ComponentDeployer,
	steps []apiv1.ZoneStep,
	components []apiv1.SystemComponent,
	options ...rolling.Option,
) *rolling.Upgrader {
	policy := &systemPolicy{
		status:   status,
		targets:  targets,
		nodes:    nodes,
		deployer: deployer,
	}
	return rolling.NewUpgrader(SystemUpgraderName, steps, components, policy, options...)
}

func (p *systemPolicy) Target(ctx context.Context) (*apiv1.VersionTarget, error) {
	controllerVersion, err := p.targets.ControllerVersion(ctx)
	if errors.Is(err, ErrNoTarget) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("while reading the controller version: %w", err)
	}

	status, err := p.status.VersionStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("while reading the version status: %w", err)
	}

	if targetConfidence, known := status.ConfidenceOf(controllerVersion); !known ||
		targetConfidence != apiv1.ConfidenceAborted {
		return &apiv1.VersionTarget{Version: controllerVersion}, nil
	}

	lastKnownGood, found := confidence.LastKnownGood(status, controllerVersion)
	if !found {
		log.FromContext(ctx).Warning("Platform rollout aborted and no known good version to go back to",
			"controllerVersion", controllerVersion.String())
		return nil, nil
	}
	return &apiv1.VersionTarget{Version: lastKnownGood, Downgrade: true}, nil
}

func (p *systemPolicy) ConvergedOn(
	ctx context.Context,
	target apiv1.VersionTarget,
	component apiv1.SystemComponent,
	zone apiv1.ZoneName,
) (bool, error) {
	nodes, err := p.nodes.ListNodes(ctx, zone, component.Name)
	if err != nil {
		return false, err
	}
	for _, node := range nodes {
		if !node.CurrentVersion.Equal(target.Version) {
			log.FromContext(ctx).Debug("Node not converged yet",
				"hostname", node.Hostname, "current", node.CurrentVersion.String(), "target", target.String())
			return false, nil
		}
	}
	return true, nil
}

func (p *systemPolicy) ChangeTargetTo(
	ctx context.Context,
	target apiv1.VersionTarget,
	component apiv1.SystemComponent,
	zone apiv1.ZoneName,
) (bool, error) {
	wanted, err := p.nodes.WantedVersion(ctx, zone, component.Name)
	if err != nil {
		return false, err
	}
	return !wanted.Equal(target.Version), nil
}

func (p *systemPolicy) Upgrade(
	ctx context.Context,
	target apiv1.VersionTarget,
	component apiv1.SystemComponent,
	zone apiv1.ZoneName,
) error {
	return p.deployer.Deploy(ctx, zone, component.Name, target)
}
