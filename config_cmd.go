package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vincentserpoul/youtun4-sub001/internal/config"
)

// newConfigCmd groups read/write operations on config.toml.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize the youtun4 configuration file",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			return config.RenderEffective(cc.Holder.Config(), cmd.OutOrStdout())
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "init",
		Short:       "Write a commented default config file",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flagConfigPath
			if path == "" {
				path = config.DefaultConfigPath()
			}

			if err := config.WriteDefault(path); err != nil {
				return fmt.Errorf("writing default config: %w", err)
			}

			statusf("Wrote default config to %s\n", path)

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a top-level config key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := config.SetKey(cc.Holder.Path(), args[0], args[1]); err != nil {
				return fmt.Errorf("setting %s: %w", args[0], err)
			}

			statusf("Set %s = %s in %s\n", args[0], args[1], cc.Holder.Path())

			return nil
		},
	}
}
