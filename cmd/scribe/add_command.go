package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"scribe/internal/client"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Register media files for transcription",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				var ids []string
				for _, arg := range args {
					abs, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve %s: %w", arg, err)
					}
					resp, err := c.Register(cmd.Context(), abs)
					if err != nil {
						return fmt.Errorf("add %s: %w", arg, err)
					}
					if resp.Duplicate {
						fmt.Fprintf(cmd.OutOrStdout(), "skipped %s: already registered as %s (%s)\n",
							arg, resp.Job.Name, resp.Job.ID)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", resp.Job.Name, resp.Job.ID)
					ids = append(ids, resp.Job.ID)
				}

				if enqueue && len(ids) > 0 {
					queued, err := c.Enqueue(cmd.Context(), ids...)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "queued %d job(s)\n", queued)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the files for transcription immediately")
	return cmd
}
