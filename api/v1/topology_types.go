/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package v1

import "github.com/fleetrollout/fleet-rollout/pkg/versions"

// ZoneName identifies an independently operated region
type ZoneName string

// ZoneStep is a set of zones that can be changed together
type ZoneStep []ZoneName

// NodeType is the kind of host a system component runs on
type NodeType string

// SystemComponent is an infrastructure application deployed in every zone
type SystemComponent struct {
	Name     string   `json:"name" yaml:"name"`
	NodeType NodeType `json:"nodeType" yaml:"nodeType"`

	// Dependencies are the components which must converge before this
	// one is upgraded
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Node is the observed state of a host running a system component
type Node struct {
	Hostname  string   `json:"hostname"`
	Zone      ZoneName `json:"zone"`
	Component string   `json:"component"`
	NodeType  NodeType `json:"nodeType"`

	CurrentVersion   versions.Version `json:"currentVersion"`
	WantedVersion    versions.Version `json:"wantedVersion"`
	CurrentOSVersion versions.Version `json:"currentOsVersion"`
	WantedOSVersion  versions.Version `json:"wantedOsVersion"`
}
