/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package plan implements the command printing the order in which a
// rollout visits zones and components
package plan

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/logrusorgru/aurora/v3"
	"github.com/spf13/cobra"

	"github.com/fleetrollout/fleet-rollout/internal/configuration"
	"github.com/fleetrollout/fleet-rollout/internal/topology"
	"github.com/fleetrollout/fleet-rollout/pkg/reconciler/rolling"
)

// NewCmd creates the "plan" command
func NewCmd() *cobra.Command {
	var topologyFile string
	var downgrade bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Prints the order in which zones and components are rolled out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fleetTopology, err := topology.Load(topologyFile)
			if err != nil {
				return err
			}
			plan := rolling.Plan(fleetTopology.ZoneSteps, fleetTopology.Components, downgrade)
			Print(cmd.OutOrStdout(), plan, downgrade)
			return nil
		},
	}

	cmd.Flags().StringVar(&topologyFile, "topology", configuration.DefaultTopologyFile,
		"The topology file describing zone steps and components")
	cmd.Flags().BoolVar(&downgrade, "downgrade", false, "Show the order used when going back to an older version")

	return cmd
}

// Print writes a human readable description of the plan
func Print(out io.Writer, plan rolling.RolloutPlan, downgrade bool) {
	direction := "upgrade"
	if downgrade {
		direction = "downgrade"
	}
	_, _ = fmt.Fprintln(out, aurora.Green(fmt.Sprintf("Rollout plan (%s)", direction)))

	steps := newTable(out)
	steps.AddHeader("STEP", "ZONES")
	for idx, step := range plan.Steps {
		zones := make([]string, 0, len(step))
		for _, zone := range step {
			zones = append(zones, string(zone))
		}
		steps.AddLine(idx+1, strings.Join(zones, ", "))
	}
	steps.Print()
	_, _ = fmt.Fprintln(out)

	components := newTable(out)
	components.AddHeader("ORDER", "COMPONENT", "NODE TYPE", "WAITS FOR")
	for idx, component := range plan.Components {
		waitsFor := "-"
		if dependencies := plan.Dependencies[component.Name]; len(dependencies) > 0 {
			waitsFor = strings.Join(dependencies, ", ")
		}
		components.AddLine(idx+1, component.Name, component.NodeType, waitsFor)
	}
	components.Print()

	if len(plan.Skipped) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, aurora.Red("Components never rolled out"))
	skipped := newTable(out)
	for _, component := range plan.Skipped {
		skipped.AddLine(component.Name, component.Reason)
	}
	skipped.Print()
}

func newTable(out io.Writer) *tabby.Tabby {
	return tabby.NewCustom(tabwriter.NewWriter(out, 0, 0, 2, ' ', 0))
}
