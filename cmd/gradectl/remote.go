package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/exam-grader/internal/ingest"
	"github.com/joseph-ayodele/exam-grader/internal/server"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Upload a CSV or XLSX file to gradingd",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *server.Client) error {
			job, err := c.SubmitFile(ctx, filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:     "status [session-id]",
	Aliases: []string{"st"},
	Short:   "Show one job, or all jobs",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *server.Client) error {
			if len(args) == 0 {
				jobs, err := c.ListJobs(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), jobs)
			}
			job, err := c.GetJob(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *server.Client) error {
			job, err := c.CancelJob(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a cancelled or failed session from its first ungraded row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *server.Client) error {
			job, err := c.ResumeSession(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		})
	},
}

var fetchOut string

var fetchCmd = &cobra.Command{
	Use:   "fetch <result-file>",
	Short: "Download a graded file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *server.Client) error {
			res, err := c.GetResult(ctx, args[0])
			if err != nil {
				return err
			}
			out := fetchOut
			if out == "" {
				out = res.Name
			}
			if err := os.WriteFile(out, res.Content, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(res.Content))
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show whether the classifier is configured",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *server.Client) error {
			v, err := c.GetConfig(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		})
	},
}

var ingestIncludeHidden bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Submit a file or directory that is on the server's filesystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *server.Client) error {
			// the path is resolved on the server; a spreadsheet extension means a single file
			if ingest.AllowedExt(filepath.Ext(args[0])) {
				r, err := c.IngestPath(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), r)
			}
			skipHidden := !ingestIncludeHidden
			v, err := c.IngestDirectory(ctx, args[0], &skipHidden)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		})
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "output", "o", "", "output path (default: the result file name)")
	ingestCmd.Flags().BoolVar(&ingestIncludeHidden, "include-hidden", false, "also walk hidden files and directories")
	rootCmd.AddCommand(submitCmd, statusCmd, cancelCmd, resumeCmd, fetchCmd, configCmd, ingestCmd)
}
