/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package versions builds the version subcommand of the manager
package versions

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetrollout/fleet-rollout/pkg/versions"
)

// NewCmd is a cobra command printing build information
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints version, commit sha and date of the build",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Build: %+v\n", versions.Info)
		},
	}
}
