package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"scribe/internal/client"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				status, err := c.Status(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "running:  %v (pid %d)\n", status.Running, status.PID)
				fmt.Fprintf(out, "database: %s\n", status.QueueDBPath)
				fmt.Fprintf(out, "lock:     %s\n", status.LockFilePath)
				if status.LeaseOwner != "" {
					fmt.Fprintf(out, "lease:    %s\n", status.LeaseOwner)
				}
				if status.RunningJobID != "" {
					fmt.Fprintf(out, "active:   %s\n", status.RunningJobID)
				}

				if len(status.QueueStats) > 0 {
					states := make([]string, 0, len(status.QueueStats))
					for state := range status.QueueStats {
						states = append(states, state)
					}
					sort.Strings(states)
					rows := make([][]string, 0, len(states))
					for _, state := range states {
						rows = append(rows, []string{state, fmt.Sprintf("%d", status.QueueStats[state])})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Status", "Jobs"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Interrupt the running job and clear the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				resp, err := c.StopAll(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.InterruptedJob != "" {
					fmt.Fprintf(out, "interrupted %s\n", resp.InterruptedJob)
				}
				fmt.Fprintf(out, "demoted %d queued job(s) to waiting\n", resp.Demoted)
				return nil
			})
		},
	}
}
