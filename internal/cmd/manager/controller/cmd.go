/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package controller

import (
	"fmt"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/fleetrollout/fleet-rollout/pkg/management/url"
)

// NewCmd create a new cobra command
func NewCmd() *cobra.Command {
	var configFile string
	var bindAddress string

	cmd := cobra.Command{
		Use:           "controller [flags]",
		Short:         "Runs the rollout maintenance jobs",
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunController(ctrl.SetupSignalHandler(), configFile, bindAddress)
		},
	}

	cmd.Flags().StringVar(&configFile, "config-file", "",
		"A YAML file containing the configuration keys. Environment variables take precedence")
	cmd.Flags().StringVar(&bindAddress, "bind-address", fmt.Sprintf(":%d", url.StatusPort),
		"The address the health, metrics and rate endpoints bind to")

	return &cmd
}
