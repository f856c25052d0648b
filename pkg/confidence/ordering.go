/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package confidence gates and orders upgrade targets using the
// confidence of the known versions
package confidence

import (
	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
	"github.com/fleetrollout/fleet-rollout/pkg/versions"
)

// MinimumConfidence is the lowest confidence a forward target
// may have under the passed policy
func MinimumConfidence(policy apiv1.UpgradePolicy) apiv1.Confidence {
	if policy.IsCanary() {
		return apiv1.ConfidenceLow
	}
	return apiv1.ConfidenceNormal
}

// Allows is true when a version with the passed confidence is a legal
// forward target for the policy
func Allows(policy apiv1.UpgradePolicy, confidence apiv1.Confidence) bool {
	if confidence.IsBroken() {
		return false
	}
	return confidence.AtLeast(MinimumConfidence(policy))
}

// ShouldCancel is true when an in-flight change towards a version with
// the passed confidence must be cancelled. Canary instances keep going,
// to surface the regression.
func ShouldCancel(policy apiv1.UpgradePolicy, confidence apiv1.Confidence) bool {
	return !policy.IsCanary() && confidence.IsBroken()
}

// Targets is the list of legal upgrade targets for the policy, the
// newest first
func Targets(status apiv1.VersionStatus, policy apiv1.UpgradePolicy) []versions.Version {
	result := make([]versions.Version, 0, len(status.Versions))
	for i := len(status.Versions) - 1; i >= 0; i-- {
		entry := status.Versions[i]
		if Allows(policy, entry.Confidence) {
			result = append(result, entry.Version)
		}
	}
	return result
}

// LastKnownGood is the newest version older than before having at
// least normal confidence
func LastKnownGood(status apiv1.VersionStatus, before versions.Version) (versions.Version, bool) {
	for i := len(status.Versions) - 1; i >= 0; i-- {
		entry := status.Versions[i]
		if !entry.Version.Less(before) {
			continue
		}
		if entry.Confidence.AtLeast(apiv1.ConfidenceNormal) {
			return entry.Version, true
		}
	}
	return versions.Version{}, false
}
