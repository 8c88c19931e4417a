package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "# %s\n", ctx.configPath)
			}
			fmt.Fprintf(out, "data_dir   = %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "media_dir  = %s\n", cfg.Paths.MediaDir)
			fmt.Fprintf(out, "log_dir    = %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "api_bind   = %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "binary     = %s\n", cfg.Engine.Binary)
			fmt.Fprintf(out, "model      = %s\n", cfg.Engine.Model)
			fmt.Fprintf(out, "language   = %s\n", cfg.Engine.Language)
			fmt.Fprintf(out, "threads    = %d\n", cfg.Engine.Threads)
			fmt.Fprintf(out, "log_level  = %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Target path for the sample config")
	return cmd
}
