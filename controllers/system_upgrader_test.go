/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package controllers

import (
	"errors"
	"fmt"

	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
	"github.com/fleetrollout/fleet-rollout/pkg/maintainer"
	"github.com/fleetrollout/fleet-rollout/pkg/reconciler/rolling"
	"github.com/fleetrollout/fleet-rollout/pkg/versions"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var systemComponents = []apiv1.SystemComponent{
	{Name: "config-server", NodeType: "config"},
	{Name: "proxy", NodeType: "proxy", Dependencies: []string{"config-server"}},
}

var twoZones = []apiv1.ZoneStep{{"z1"}, {"z2"}}

func systemNodes(platform, os string) []apiv1.Node {
	var result []apiv1.Node
	for _, zone := range []apiv1.ZoneName{"z1", "z2"} {
		for _, component := range systemComponents {
			for i := 0; i < 2; i++ {
				result = append(result, apiv1.Node{
					Hostname:         fmt.Sprintf("%v-%v-%d", component.Name, zone, i),
					Zone:             zone,
					Component:        component.Name,
					NodeType:         component.NodeType,
					CurrentVersion:   versions.MustParse(platform),
					CurrentOSVersion: versions.MustParse(os),
				})
			}
		}
	}
	return result
}

var _ = Describe("System upgrader", func() {
	var (
		status  *fakeStatusSource
		targets *fakeTargetSource
		fleet   *fakeFleet
	)

	BeforeEach(func() {
		status = &fakeStatusSource{
			status: apiv1.NewVersionStatus(
				apiv1.VersionStatusEntry{Version: versions.MustParse("7.0.0"), Confidence: apiv1.ConfidenceHigh},
				apiv1.VersionStatusEntry{Version: versions.MustParse("7.1.0"), Confidence: apiv1.ConfidenceNormal},
				apiv1.VersionStatusEntry{Version: versions.MustParse("7.2.0"), Confidence: apiv1.ConfidenceLow},
			),
		}
		targets = &fakeTargetSource{controller: versions.MustParse("7.1.0")}
		fleet = newFakeFleet(systemNodes("7.0.0", "22.4")...)
	})

	newUpgrader := func(options ...rolling.Option) *rolling.Upgrader {
		return NewSystemUpgrader(status, targets, fleet, fleet, twoZones, systemComponents, options...)
	}

	It("rolls the config server and then the proxy through every zone", func(ctx SpecContext) {
		upgrader := newUpgrader()
		Expect(upgrader.Name()).To(Equal(SystemUpgraderName))

		result := upgrader.Maintain(ctx)
		Expect(result.SuccessRatio()).To(Equal(1.0))
		Expect(result.Attempts).To(Equal(2))
		Expect(fleet.deployed).To(Equal([]string{
			"z1/config-server", "z1/proxy",
			"z2/config-server", "z2/proxy",
		}))
		for _, node := range fleet.nodes {
			Expect(node.CurrentVersion).To(Equal(versions.MustParse("7.1.0")), node.Hostname)
		}

		By("doing nothing once converged", func() {
			Expect(upgrader.Maintain(ctx).SuccessRatio()).To(Equal(1.0))
			Expect(fleet.deployed).To(HaveLen(4))
		})
	})

	It("rolls back to the last known good version when the rollout is aborted", func(ctx SpecContext) {
		status.status.Versions[2].Confidence = apiv1.ConfidenceAborted
		targets.controller = versions.MustParse("7.2.0")
		fleet = newFakeFleet(systemNodes("7.2.0", "22.4")...)

		Expect(newUpgrader().Maintain(ctx).SuccessRatio()).To(Equal(1.0))
		Expect(fleet.deployed).To(Equal([]string{
			"z2/proxy", "z2/config-server",
			"z1/proxy", "z1/config-server",
		}))
		Expect(fleet.wanted).To(HaveKeyWithValue(
			zoneComponent{"z1", "proxy"}, versions.MustParse("7.1.0")))
	})

	It("stays put when aborted without a known good version", func(ctx SpecContext) {
		status.status = apiv1.NewVersionStatus(
			apiv1.VersionStatusEntry{Version: versions.MustParse("7.2.0"), Confidence: apiv1.ConfidenceAborted},
		)
		targets.controller = versions.MustParse("7.2.0")

		Expect(newUpgrader().Maintain(ctx)).To(Equal(maintainer.RunResult{}))
		Expect(fleet.deployed).To(BeEmpty())
	})

	It("does nothing without a declared controller version", func(ctx SpecContext) {
		targets.controllerErr = ErrNoTarget
		Expect(newUpgrader().Maintain(ctx)).To(Equal(maintainer.RunResult{}))
		Expect(fleet.deployed).To(BeEmpty())
	})

	It("fails when the target cannot be read", func(ctx SpecContext) {
		targets.controllerErr = errors.New("target store unavailable")
		Expect(newUpgrader().Maintain(ctx)).To(Equal(maintainer.Failed()))

		targets.controllerErr = nil
		status.err = errors.New("confidence store unavailable")
		Expect(newUpgrader().Maintain(ctx)).To(Equal(maintainer.Failed()))
	})

	It("counts the zones the nodes cannot be read for", func(ctx SpecContext) {
		fleet.listError = errors.New("node repository timeout")
		result := newUpgrader().Maintain(ctx)
		Expect(result).To(Equal(maintainer.RunResult{Attempts: 1, Failures: 1}))
	})

	It("considers a component without nodes converged", func(ctx SpecContext) {
		fleet = newFakeFleet()
		Expect(newUpgrader(rolling.WithMaxParallelZones(2)).Maintain(ctx).SuccessRatio()).To(Equal(1.0))
		Expect(fleet.deployed).To(HaveLen(4))
	})
})
