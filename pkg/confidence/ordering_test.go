/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package confidence

import (
	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
	"github.com/fleetrollout/fleet-rollout/pkg/versions"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func entry(version string, confidence apiv1.Confidence) apiv1.VersionStatusEntry {
	return apiv1.VersionStatusEntry{Version: versions.MustParse(version), Confidence: confidence}
}

func names(list []versions.Version) []string {
	result := make([]string, 0, len(list))
	for _, item := range list {
		result = append(result, item.String())
	}
	return result
}

var _ = Describe("Policy ordering", func() {
	status := apiv1.NewVersionStatus(
		entry("7.0", apiv1.ConfidenceLegacy),
		entry("7.1", apiv1.ConfidenceHigh),
		entry("7.2", apiv1.ConfidenceNormal),
		entry("7.3", apiv1.ConfidenceBroken),
		entry("7.4", apiv1.ConfidenceLow),
		entry("7.5", apiv1.ConfidenceAborted),
	)

	It("admits only normal or better for default and conservative", func() {
		Expect(names(Targets(status, apiv1.UpgradePolicyDefault))).To(Equal([]string{"7.2.0", "7.1.0"}))
		Expect(names(Targets(status, apiv1.UpgradePolicyConservative))).To(Equal([]string{"7.2.0", "7.1.0"}))
	})

	It("admits everything but aborted and broken for canary", func() {
		Expect(names(Targets(status, apiv1.UpgradePolicyCanary))).
			To(Equal([]string{"7.4.0", "7.2.0", "7.1.0", "7.0.0"}))
	})

	It("never lets non-canary policies target broken versions", func() {
		for _, policy := range apiv1.UpgradePolicies {
			for _, target := range Targets(status, policy) {
				confidence, _ := status.ConfidenceOf(target)
				Expect(confidence.IsBroken()).To(BeFalse())
			}
		}
	})

	It("cancels broken changes except for canary", func() {
		Expect(ShouldCancel(apiv1.UpgradePolicyDefault, apiv1.ConfidenceBroken)).To(BeTrue())
		Expect(ShouldCancel(apiv1.UpgradePolicyConservative, apiv1.ConfidenceAborted)).To(BeTrue())
		Expect(ShouldCancel(apiv1.UpgradePolicyCanary, apiv1.ConfidenceBroken)).To(BeFalse())
		Expect(ShouldCancel(apiv1.UpgradePolicyDefault, apiv1.ConfidenceLow)).To(BeFalse())
	})

	It("finds the last known good version", func() {
		good, ok := LastKnownGood(status, versions.MustParse("7.5"))
		Expect(ok).To(BeTrue())
		Expect(good.String()).To(Equal("7.2.0"))

		_, ok = LastKnownGood(status, versions.MustParse("7.1"))
		Expect(ok).To(BeFalse())
	})
})
