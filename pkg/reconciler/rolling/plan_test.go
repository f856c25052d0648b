/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package rolling

import (
	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func componentNames(components []apiv1.SystemComponent) []string {
	result := make([]string, 0, len(components))
	for _, component := range components {
		result = append(result, component.Name)
	}
	return result
}

var _ = Describe("Rollout plan", func() {
	steps := []apiv1.ZoneStep{{"z1"}, {"z2", "z3"}, {"z4"}}
	components := []apiv1.SystemComponent{
		{Name: "proxy", NodeType: "proxy", Dependencies: []string{"config-server"}},
		{Name: "config-server", NodeType: "config"},
		{Name: "controller", NodeType: "host", Dependencies: []string{"config-server"}},
	}

	It("puts dependencies first when upgrading", func() {
		plan := Plan(steps, components, false)
		Expect(plan.Steps).To(Equal(steps))
		Expect(componentNames(plan.Components)).To(Equal([]string{"config-server", "controller", "proxy"}))
		Expect(plan.Dependencies["proxy"]).To(ConsistOf("config-server"))
		Expect(plan.Dependencies["config-server"]).To(BeEmpty())
		Expect(plan.Skipped).To(BeEmpty())
	})

	It("reverses steps and dependencies when downgrading", func() {
		plan := Plan(steps, components, true)
		Expect(plan.Steps).To(Equal([]apiv1.ZoneStep{{"z4"}, {"z2", "z3"}, {"z1"}}))
		Expect(componentNames(plan.Components)).To(Equal([]string{"proxy", "controller", "config-server"}))
		Expect(plan.Dependencies["config-server"]).To(ConsistOf("proxy", "controller"))
		Expect(plan.Dependencies["proxy"]).To(BeEmpty())
	})

	It("does not modify the passed steps", func() {
		original := []apiv1.ZoneStep{{"z1"}, {"z2"}}
		_ = Plan(original, components, true)
		Expect(original).To(Equal([]apiv1.ZoneStep{{"z1"}, {"z2"}}))
	})

	It("skips components with unknown dependencies and their dependents", func() {
		plan := Plan(steps, []apiv1.SystemComponent{
			{Name: "config-server"},
			{Name: "proxy", Dependencies: []string{"ghost"}},
			{Name: "edge", Dependencies: []string{"proxy"}},
		}, false)
		Expect(componentNames(plan.Components)).To(Equal([]string{"config-server"}))
		Expect(plan.Skipped).To(HaveLen(2))
		Expect(plan.Skipped[0].Name).To(Equal("proxy"))
		Expect(plan.Skipped[0].Reason).To(ContainSubstring("ghost"))
		Expect(plan.Skipped[1].Name).To(Equal("edge"))
	})

	It("holds back the dependencies of a skipped component when downgrading", func() {
		plan := Plan(steps, []apiv1.SystemComponent{
			{Name: "config-server"},
			{Name: "proxy", Dependencies: []string{"config-server", "ghost"}},
			{Name: "controller", Dependencies: []string{"config-server"}},
		}, true)
		Expect(componentNames(plan.Components)).To(Equal([]string{"controller"}))
		Expect(plan.Dependencies["config-server"]).To(ConsistOf("proxy", "controller"))
		Expect(plan.Skipped).To(HaveLen(2))
		Expect(plan.Skipped[0].Name).To(Equal("proxy"))
		Expect(plan.Skipped[1].Name).To(Equal("config-server"))
	})

	It("skips components on a dependency cycle", func() {
		plan := Plan(steps, []apiv1.SystemComponent{
			{Name: "a", Dependencies: []string{"b"}},
			{Name: "b", Dependencies: []string{"a"}},
			{Name: "c"},
		}, false)
		Expect(componentNames(plan.Components)).To(Equal([]string{"c"}))
		Expect(plan.Skipped).To(HaveLen(2))
	})
})
