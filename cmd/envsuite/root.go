// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/envsuite/internal/config"
	"github.com/holomush/envsuite/internal/hostenv"
	"github.com/holomush/envsuite/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the envsuite CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "envsuite",
		Short: "envsuite - cross-environment integration test harness",
		Long: `envsuite inspects and maintains the configuration and persisted state
used by the cross-environment integration suite.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $ENVSUITE_CONFIG or the XDG config file)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewEnvCmd())
	cmd.AddCommand(NewResetCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig reads the configuration named by --config, overlaid with the
// command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.Path(configFile), cmd.Flags())
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.Setup(logging.Options{
		Service: "envsuite",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
}

// buildHost loads the configuration and builds the host capabilities.
func buildHost(ctx context.Context, cmd *cobra.Command) (*hostenv.Host, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return hostenv.Build(ctx, cfg, newLogger(cmd, cfg))
}
