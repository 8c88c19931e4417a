package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/client"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Operate on a single transcription job",
	}
	jobCmd.AddCommand(newJobTranscribeCommand(ctx))
	jobCmd.AddCommand(newJobPauseCommand(ctx))
	jobCmd.AddCommand(newJobResumeCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobProgressCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobRemoveCommand(ctx))
	return jobCmd
}

func newJobTranscribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <id>",
		Short: "Run a job to completion, blocking until it settles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				transcript, interrupted, err := c.Transcribe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if interrupted {
					fmt.Fprintln(cmd.OutOrStdout(), "transcription interrupted; resume to continue")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "transcription complete: %d segment(s)\n",
					len(transcript.Transcription))
				return nil
			})
		},
	}
}

func newJobPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause the running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				if err := c.Pause(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "paused")
				return nil
			})
		},
	}
}

func newJobResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused or interrupted job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				resp, err := c.Resume(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if resp.Reopened {
					fmt.Fprintln(cmd.OutOrStdout(), "resumed in place")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "re-ran from last snapshot: %d segment(s)\n",
					len(resp.Transcription))
				return nil
			})
		},
	}
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Stop a running job, keeping it resumable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				if err := c.Cancel(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
				return nil
			})
		},
	}
}

func newJobProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id>",
		Short: "Show a job's transcription progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				progress, err := c.Progress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "status:   %s\n", progress.Status)
				fmt.Fprintf(out, "current:  %.1fs\n", progress.Current)
				if progress.Duration != nil {
					fmt.Fprintf(out, "duration: %.1fs\n", *progress.Duration)
				}
				if progress.Percent != nil {
					fmt.Fprintf(out, "percent:  %.1f%%\n", *progress.Percent)
				}
				return nil
			})
		},
	}
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				resp, err := c.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				job := resp.Job
				fmt.Fprintf(out, "id:       %s\n", job.ID)
				fmt.Fprintf(out, "name:     %s\n", job.Name)
				fmt.Fprintf(out, "source:   %s\n", job.SourcePath)
				fmt.Fprintf(out, "status:   %s\n", job.Status)
				fmt.Fprintf(out, "segments: %d\n", job.SegmentCount)
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "error:    %s\n", job.ErrorMessage)
				}
				for _, segment := range resp.Transcription {
					fmt.Fprintf(out, "[%8.2f - %8.2f] %s\n", segment.Start, segment.End, segment.Text)
				}
				return nil
			})
		},
	}
}

func newJobRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a job, cancelling it first if running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				if err := c.DeleteJob(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "removed")
				return nil
			})
		},
	}
}
