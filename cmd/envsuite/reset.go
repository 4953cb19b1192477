// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewResetCmd creates the reset subcommand.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear persisted test state",
		Long: `Clear every artifact persisted by test runs, exactly as the harness
does after each spec. Useful after an aborted run.`,
		RunE: runReset,
	}
}

func runReset(cmd *cobra.Command, _ []string) error {
	host, err := buildHost(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := host.Close(); cerr != nil {
			host.Logger.Warn("failed to close database", "error", cerr)
		}
	}()

	if host.Database == nil {
		return oops.Code("CONFIG_INVALID").
			With("driver", host.Config.Database.Driver).
			Errorf("no database configured")
	}

	if err := host.Database.ClearTestState(cmd.Context()); err != nil {
		return oops.Code("STATE_RESET_FAILED").Wrap(err)
	}

	cmd.Println("test state cleared")
	return nil
}
