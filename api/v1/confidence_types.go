/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package v1

import (
	"fmt"
	"sort"

	"github.com/fleetrollout/fleet-rollout/pkg/versions"
)

// Confidence is the fleet-wide health classification of a version
type Confidence string

const (
	// ConfidenceAborted is given to versions whose rollout has been aborted
	ConfidenceAborted Confidence = "aborted"

	// ConfidenceBroken is given to versions failing on too many instances
	ConfidenceBroken Confidence = "broken"

	// ConfidenceLow is given to versions not yet proven in the fleet
	ConfidenceLow Confidence = "low"

	// ConfidenceLegacy is given to old versions which should be left
	ConfidenceLegacy Confidence = "legacy"

	// ConfidenceNormal is given to versions safe for general rollout
	ConfidenceNormal Confidence = "normal"

	// ConfidenceHigh is given to versions running without issues on
	// most of the fleet
	ConfidenceHigh Confidence = "high"
)

var confidenceRank = map[Confidence]int{
	ConfidenceAborted: 0,
	ConfidenceBroken:  1,
	ConfidenceLow:     2,
	ConfidenceLegacy:  3,
	ConfidenceNormal:  4,
	ConfidenceHigh:    5,
}

// ParseConfidence validates a confidence name
func ParseConfidence(value string) (Confidence, error) {
	confidence := Confidence(value)
	if _, ok := confidenceRank[confidence]; !ok {
		return "", fmt.Errorf("unknown confidence %q", value)
	}
	return confidence, nil
}

// AtLeast is true when c is equal or better than other
func (c Confidence) AtLeast(other Confidence) bool {
	return confidenceRank[c] >= confidenceRank[other]
}

// IsBroken is true for aborted and broken versions, which must never be
// a forward target outside the canary policy
func (c Confidence) IsBroken() bool {
	return c == ConfidenceAborted || c == ConfidenceBroken
}

// UpgradePolicy is the risk appetite of a tenant instance
type UpgradePolicy string

const (
	// UpgradePolicyCanary adopts new versions as soon as they are not broken
	UpgradePolicyCanary UpgradePolicy = "canary"

	// UpgradePolicyDefault adopts versions with normal confidence
	UpgradePolicyDefault UpgradePolicy = "default"

	// UpgradePolicyConservative adopts versions with normal confidence,
	// at a slower pace
	UpgradePolicyConservative UpgradePolicy = "conservative"
)

// UpgradePolicies lists every policy, most conservative first
var UpgradePolicies = []UpgradePolicy{
	UpgradePolicyConservative,
	UpgradePolicyDefault,
	UpgradePolicyCanary,
}

// IsCanary is true for the canary policy
func (p UpgradePolicy) IsCanary() bool {
	return p == UpgradePolicyCanary
}

// Pace is the share of the fleet upgrade rate given to instances
// using this policy. Canary instances are not rate limited.
func (p UpgradePolicy) Pace() float64 {
	switch p {
	case UpgradePolicyConservative:
		return 0.5
	default:
		return 1
	}
}

// VersionStatusEntry is the confidence of a single version
type VersionStatusEntry struct {
	Version    versions.Version `json:"version"`
	Confidence Confidence       `json:"confidence"`
}

// VersionStatus is the list of known versions, from the oldest to the newest
type VersionStatus struct {
	Versions []VersionStatusEntry `json:"versions"`
}

// NewVersionStatus builds a VersionStatus sorting the entries
func NewVersionStatus(entries ...VersionStatusEntry) VersionStatus {
	sorted := make([]VersionStatusEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version.Less(sorted[j].Version)
	})
	return VersionStatus{Versions: sorted}
}

// ConfidenceOf returns the confidence of a version, if known
func (s VersionStatus) ConfidenceOf(version versions.Version) (Confidence, bool) {
	for _, entry := range s.Versions {
		if entry.Version.Equal(version) {
			return entry.Confidence, true
		}
	}
	return "", false
}

// VersionTarget is the desired version for a scope
type VersionTarget struct {
	Version versions.Version `json:"version"`

	// Downgrade is true when reaching this version is a regression
	Downgrade bool `json:"downgrade"`
}

func (t VersionTarget) String() string {
	if t.Downgrade {
		return fmt.Sprintf("downgrade to %v", t.Version)
	}
	return fmt.Sprintf("upgrade to %v", t.Version)
}
