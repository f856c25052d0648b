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
	"github.com/fleetrollout/fleet-rollout/pkg/reconciler/rolling"
)

// OSUpgraderName is the name of the job rolling out the operating system
const OSUpgraderName = "os-upgrader"

// osPolicy rolls the hosts of every node type to the declared OS target
type osPolicy struct {
	targets TargetSource
	nodes   NodeRepository
}

// NewOSUpgrader creates the job rolling out the operating system
// version to the hosts of the system components
func NewOSUpgrader(
	targets TargetSource,
	nodes NodeRepository,
	steps []apiv1.ZoneStep,
	components []apiv1.SystemComponent,
	options ...rolling.Option,
) *rolling.Upgrader {
	policy := &osPolicy{
		targets: targets,
		nodes:   nodes,
	}
	return rolling.NewUpgrader(OSUpgraderName, steps, components, policy, options...)
}

func (p *osPolicy) Target(ctx context.Context) (*apiv1.VersionTarget, error) {
	target, err := p.targets.OSTarget(ctx)
	if errors.Is(err, ErrNoTarget) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("while reading the OS target: %w", err)
	}
	if target == nil || target.Version.IsZero() {
		return nil, nil
	}
	return target, nil
}

func (p *osPolicy) ConvergedOn(
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
		if node.NodeType != "" && node.NodeType != component.NodeType {
			continue
		}
		if !node.CurrentOSVersion.Equal(target.Version) {
			return false, nil
		}
	}
	return true, nil
}

func (p *osPolicy) ChangeTargetTo(
	ctx context.Context,
	target apiv1.VersionTarget,
	component apiv1.SystemComponent,
	zone apiv1.ZoneName,
) (bool, error) {
	wanted, err := p.nodes.WantedOSVersion(ctx, zone, component.NodeType)
	if err != nil {
		return false, err
	}
	return !wanted.Equal(target.Version), nil
}

func (p *osPolicy) Upgrade(
	ctx context.Context,
	target apiv1.VersionTarget,
	component apiv1.SystemComponent,
	zone apiv1.ZoneName,
) error {
	return p.nodes.UpgradeOS(ctx, zone, component.NodeType, target)
}
