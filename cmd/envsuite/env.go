// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/holomush/envsuite/internal/envexpr"
)

// NewEnvCmd creates the env subcommand.
func NewEnvCmd() *cobra.Command {
	var expr string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the environment descriptor or evaluate an expression against it",
		Long: `Print the configured environment descriptor as YAML. With --expr,
evaluate an environment expression against it and print true or false,
which is how a spec guarded by that expression would be decided.`,
		Example: `  envsuite env --env platform=node
  envsuite env --expr 'platform in ["node", "deno"]'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnv(cmd, expr)
		},
	}
	cmd.Flags().StringVar(&expr, "expr", "", "environment expression to evaluate")

	return cmd
}

func runEnv(cmd *cobra.Command, expr string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if expr == "" {
		env := cfg.Environment
		if env == nil {
			env = map[string]string{}
		}
		out, err := yaml.Marshal(env)
		if err != nil {
			return oops.Code("ENV_ENCODE_FAILED").Wrap(err)
		}
		cmd.Print(string(out))
		return nil
	}

	prog, err := envexpr.Compile(expr)
	if err != nil {
		return err
	}
	ok, err := prog.Eval(cfg.Environment)
	if err != nil {
		return err
	}
	cmd.Println(strconv.FormatBool(ok))
	return nil
}
