package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gleaner/internal/config"
)

func newConfigCommand(cctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(cctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = config.DefaultConfigPath()
			}
			resolved, err := config.ExpandPath(target)
			if err != nil {
				return err
			}
			if err := config.WriteSample(resolved); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", resolved)
			fmt.Fprintln(out, "Edit the file to set the vault path before running the pipeline.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigValidateCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if cctx.configFlag != nil {
				path = strings.TrimSpace(*cctx.configFlag)
			}
			if path == "" {
				path = config.DefaultConfigPath()
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration OK")
			fmt.Fprintf(cmd.OutOrStdout(), "  Vault: %s\n", cfg.Paths.VaultDir)
			fmt.Fprintf(cmd.OutOrStdout(), "  Database: %s\n", cfg.DatabasePath())
			return nil
		},
	}
}
