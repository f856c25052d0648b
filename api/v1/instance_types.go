/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package v1

import (
	"time"

	"github.com/thoas/go-funk"

	"github.com/fleetrollout/fleet-rollout/pkg/versions"
)

// InstanceID identifies a tenant application instance
type InstanceID string

// ChangeKind is the kind of a pending change of an instance
type ChangeKind string

const (
	// ChangeKindPlatform is a change of the platform version
	ChangeKindPlatform ChangeKind = "platform"

	// ChangeKindRevision is a change of the application revision
	ChangeKindRevision ChangeKind = "revision"
)

// Deployment is a production deployment of an instance
type Deployment struct {
	Zone    ZoneName         `json:"zone"`
	Version versions.Version `json:"version"`
}

// Change is the set of changes an instance is currently rolling out
type Change struct {
	// Platform is the platform version the instance is moving to
	Platform *versions.Version `json:"platform,omitempty"`

	// Revision is the application revision being deployed
	Revision string `json:"revision,omitempty"`

	// RevisionFailing is true when the revision keeps failing
	RevisionFailing bool `json:"revisionFailing,omitempty"`
}

// BlockWindow is a recurring time window in which automatic
// version changes are not allowed
type BlockWindow struct {
	Days     []time.Weekday `json:"days"`
	Hours    []int          `json:"hours"`
	TimeZone string         `json:"timeZone,omitempty"`
}

// Includes is true when the instant is inside the window
func (w BlockWindow) Includes(instant time.Time) bool {
	location := time.UTC
	if w.TimeZone != "" {
		if loaded, err := time.LoadLocation(w.TimeZone); err == nil {
			location = loaded
		}
	}
	local := instant.In(location)
	return funk.Contains(w.Days, local.Weekday()) && funk.ContainsInt(w.Hours, local.Hour())
}

// TenantInstance is a tenant-owned deployment of an application
type TenantInstance struct {
	ID     InstanceID    `json:"id"`
	Policy UpgradePolicy `json:"policy"`

	// Pinned instances are exempt from automatic version changes
	Pinned bool `json:"pinned,omitempty"`

	// MajorVersion is the newest major the instance accepts, 0 means
	// that the system default applies
	MajorVersion uint64 `json:"majorVersion,omitempty"`

	Deployments []Deployment `json:"deployments,omitempty"`
	Change      Change       `json:"change"`

	// CompletedPlatform is the newest platform version every
	// deployment job succeeded on
	CompletedPlatform versions.Version `json:"completedPlatform"`

	// FailingVersions are the platform versions the instance fails on
	FailingVersions []versions.Version `json:"failingVersions,omitempty"`

	BlockWindows []BlockWindow `json:"blockWindows,omitempty"`
}

// HasProductionDeployment is true when the instance is deployed somewhere
func (i *TenantInstance) HasProductionDeployment() bool {
	return len(i.Deployments) > 0
}

// OldestDeployedVersion is the oldest version among the deployments
func (i *TenantInstance) OldestDeployedVersion() versions.Version {
	deployed := make([]versions.Version, 0, len(i.Deployments))
	for _, deployment := range i.Deployments {
		deployed = append(deployed, deployment.Version)
	}
	return versions.Oldest(deployed)
}

// UpgradingTo returns the target of the pending platform change
func (i *TenantInstance) UpgradingTo() (versions.Version, bool) {
	if i.Change.Platform == nil {
		return versions.Version{}, false
	}
	return *i.Change.Platform, true
}

// IsFailingOn is true when the instance fails on the passed version
func (i *TenantInstance) IsFailingOn(version versions.Version) bool {
	for _, failing := range i.FailingVersions {
		if failing.Equal(version) {
			return true
		}
	}
	return false
}

// HasCompleted is true when the deployment jobs already succeeded on
// the passed version or a newer one
func (i *TenantInstance) HasCompleted(version versions.Version) bool {
	return !i.CompletedPlatform.IsZero() && !i.CompletedPlatform.Less(version)
}

// CompatibleWithMajor is true when the instance accepts the major of
// version. defaultMajor applies when the instance has no own limit, and
// 0 means no limit at all.
func (i *TenantInstance) CompatibleWithMajor(version versions.Version, defaultMajor uint64) bool {
	limit := i.MajorVersion
	if limit == 0 {
		limit = defaultMajor
	}
	return limit == 0 || version.Major() <= limit
}

// CanChangeAt is true when no block window includes the instant
func (i *TenantInstance) CanChangeAt(instant time.Time) bool {
	for _, window := range i.BlockWindows {
		if window.Includes(instant) {
			return false
		}
	}
	return true
}
