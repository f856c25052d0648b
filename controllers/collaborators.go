/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package controllers

import (
	"context"
	"errors"

	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
	"github.com/fleetrollout/fleet-rollout/pkg/versions"
)

// ErrNoTarget is returned by a TargetSource when no target has been declared
var ErrNoTarget = errors.New("no target version declared")

// VersionStatusSource gives the confidence of the known versions
type VersionStatusSource interface {
	VersionStatus(ctx context.Context) (apiv1.VersionStatus, error)
}

// TargetSource gives the declared system targets
type TargetSource interface {
	// ControllerVersion is the platform version the system should run
	ControllerVersion(ctx context.Context) (versions.Version, error)

	// OSTarget is the operating system version the hosts should run
	OSTarget(ctx context.Context) (*apiv1.VersionTarget, error)
}

// InstanceSource lists the tenant instances
type InstanceSource interface {
	ListInstances(ctx context.Context) ([]apiv1.TenantInstance, error)
}

// DeploymentTrigger requests and cancels changes of tenant instances
type DeploymentTrigger interface {
	Cancel(ctx context.Context, id apiv1.InstanceID, kind apiv1.ChangeKind, reason string) error
	ForceChange(ctx context.Context, id apiv1.InstanceID, version versions.Version) error
}

// NodeRepository gives the observed and wanted state of the hosts
type NodeRepository interface {
	ListNodes(ctx context.Context, zone apiv1.ZoneName, component string) ([]apiv1.Node, error)
	WantedVersion(ctx context.Context, zone apiv1.ZoneName, component string) (versions.Version, error)
	WantedOSVersion(ctx context.Context, zone apiv1.ZoneName, nodeType apiv1.NodeType) (versions.Version, error)
	UpgradeOS(ctx context.Context, zone apiv1.ZoneName, nodeType apiv1.NodeType, target apiv1.VersionTarget) error
}

// ComponentDeployer deploys system components
type ComponentDeployer interface {
	Deploy(ctx context.Context, zone apiv1.ZoneName, component string, target apiv1.VersionTarget) error
}
