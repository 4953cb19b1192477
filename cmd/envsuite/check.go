// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/envsuite/internal/harness"
)

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that every harness capability is configured",
		Long: `Build the host capabilities from the configuration and run the
harness capability gate against them, without running any specs.`,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	host, err := buildHost(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := host.Close(); cerr != nil {
			host.Logger.Warn("failed to close database", "error", cerr)
		}
	}()

	h, err := harness.Load(host.HarnessConfig(harness.Runner{}, nil))
	if err != nil {
		cmd.PrintErrln("capability check failed:", err)
		return err
	}

	cmd.Printf("title:       %s\n", h.Title())
	cmd.Printf("environment: %s\n", h.Environment())
	cmd.Printf("database:    %s\n", host.Config.Database.Driver)
	cmd.Printf("fs root:     %s\n", h.FS().Root())
	cmd.Println("all capabilities present")
	return nil
}
