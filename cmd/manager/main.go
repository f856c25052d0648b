/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

/*
The manager command is the main entrypoint of the rollout manager.
*/
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fleetrollout/fleet-rollout/internal/cmd/manager/controller"
	"github.com/fleetrollout/fleet-rollout/internal/cmd/manager/plan"
	"github.com/fleetrollout/fleet-rollout/internal/cmd/versions"
	"github.com/fleetrollout/fleet-rollout/pkg/management/log"

	_ "k8s.io/client-go/plugin/pkg/client/auth"
)

func main() {
	logFlags := &log.Flags{}

	cmd := &cobra.Command{
		Use:          "manager [cmd]",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logFlags.ConfigureLogging()
		},
	}

	logFlags.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(controller.NewCmd())
	cmd.AddCommand(plan.NewCmd())
	cmd.AddCommand(versions.NewCmd())

	if err := cmd.Execute(); err != nil {
		log.Error(err, "Command failed")
		os.Exit(1)
	}
}
