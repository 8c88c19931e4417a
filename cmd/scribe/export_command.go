package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scribe/internal/client"
	"scribe/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a completed transcript as srt, vtt, or txt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return ctx.withClient(func(c *client.Client) error {
				document, err := c.Export(cmd.Context(), args[0], string(parsed))
				if err != nil {
					return err
				}
				if output == "" {
					_, err = cmd.OutOrStdout().Write(document)
					return err
				}
				if err := os.WriteFile(output, document, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "txt", "Output format: srt, vtt, or txt")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}
