/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package rolling

import (
	"fmt"

	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
)

// SkippedComponent is a component which cannot be rolled out because
// of inconsistent dependency data
type SkippedComponent struct {
	Name   string
	Reason string
}

// RolloutPlan is the order in which a rollout visits zones and
// components
type RolloutPlan struct {
	// Steps are the zone steps, in visiting order
	Steps []apiv1.ZoneStep

	// Dependencies maps each component to the components which must
	// converge before it moves. When downgrading these are the dependents
	// declared in the topology.
	Dependencies map[string][]string

	// Components are the components in processing order
	Components []apiv1.SystemComponent

	// Skipped are the components which will never be processed
	Skipped []SkippedComponent
}

// Plan computes the rollout order. Upgrades follow the declared step
// order and dependencies. Downgrades reverse the steps and invert the
// dependency edges, so that dependents stop relying on new behavior
// before it is removed.
func Plan(steps []apiv1.ZoneStep, components []apiv1.SystemComponent, downgrade bool) RolloutPlan {
	plan := RolloutPlan{
		Steps:        orderSteps(steps, downgrade),
		Dependencies: make(map[string][]string, len(components)),
	}

	declared := make(map[string]bool, len(components))
	for _, component := range components {
		declared[component.Name] = true
	}

	inconsistent := make(map[string]bool)
	for _, component := range components {
		for _, dependency := range component.Dependencies {
			if !declared[dependency] {
				inconsistent[component.Name] = true
				plan.Skipped = append(plan.Skipped, SkippedComponent{
					Name:   component.Name,
					Reason: fmt.Sprintf("unknown dependency %q", dependency),
				})
				break
			}
		}
	}

	for _, component := range components {
		if inconsistent[component.Name] {
			continue
		}
		plan.Dependencies[component.Name] = nil
	}
	for _, component := range components {
		for _, dependency := range component.Dependencies {
			switch {
			case !declared[dependency]:
			case downgrade:
				// a skipped dependent never converges, and what it
				// depends on must keep waiting for it
				plan.Dependencies[dependency] = append(plan.Dependencies[dependency], component.Name)
			case !inconsistent[component.Name]:
				plan.Dependencies[component.Name] = append(plan.Dependencies[component.Name], dependency)
			}
		}
	}

	plan.Components, plan.Skipped = sortComponents(components, plan.Dependencies, inconsistent, plan.Skipped)
	return plan
}

func orderSteps(steps []apiv1.ZoneStep, downgrade bool) []apiv1.ZoneStep {
	result := make([]apiv1.ZoneStep, len(steps))
	copy(result, steps)
	if downgrade {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return result
}

// sortComponents returns the components in a topological order of the
// passed dependencies, preferring the declaration order between
// independent components. Components on a cycle, or waiting on a
// skipped component, are reported as skipped.
func sortComponents(
	components []apiv1.SystemComponent,
	dependencies map[string][]string,
	inconsistent map[string]bool,
	skipped []SkippedComponent,
) ([]apiv1.SystemComponent, []SkippedComponent) {
	ordered := make([]apiv1.SystemComponent, 0, len(components))
	placed := make(map[string]bool, len(components))

	for progress := true; progress; {
		progress = false
		for _, component := range components {
			if placed[component.Name] || inconsistent[component.Name] {
				continue
			}
			ready := true
			for _, dependency := range dependencies[component.Name] {
				if !placed[dependency] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, component)
				placed[component.Name] = true
				progress = true
			}
		}
	}

	for _, component := range components {
		if !placed[component.Name] && !inconsistent[component.Name] {
			skipped = append(skipped, SkippedComponent{
				Name:   component.Name,
				Reason: "dependency cycle or skipped dependency",
			})
		}
	}
	return ordered, skipped
}
