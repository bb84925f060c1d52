package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/app"
	"github.com/joseph-ayodele/exam-grader/internal/common"
)

var (
	gradeOutDir string
	gradeQuiet  bool
)

var gradeCmd = &cobra.Command{
	Use:   "grade <file>",
	Short: "Grade a file locally, without gradingd",
	Long: `Grades a CSV or XLSX file in this process using the classifier settings
from the environment (and .env). The graded file is written to --out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg, err := common.LoadConfig()
		if err != nil {
			return err
		}
		if gradeOutDir != "" {
			cfg.Storage.ProcessedDir = gradeOutDir
		}
		cfg.Grading.Workers = 1
		if cfg.Log.Format == "json" {
			cfg.Log.Format = "console"
		}
		if gradeQuiet {
			cfg.Log.Level = "warn"
		}
		logger := common.NewLogger(cmd.ErrOrStderr(), cfg.Log)

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(cfg, logger, app.Options{})
		if err != nil {
			return err
		}
		defer a.Shutdown(context.Background())

		job, err := a.Grading.Submit(ctx, filepath.Base(args[0]), data)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "session %s: %d rows\n", job.SessionID, job.Total)

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		last := -1
		for {
			select {
			case <-ctx.Done():
				if _, err := a.Grading.Cancel(context.Background(), job.SessionID); err != nil {
					return err
				}
				fmt.Fprintf(out, "cancelled; resume later with the staged session %s\n", job.SessionID)
				return ctx.Err()
			case <-ticker.C:
			}

			job, err = a.Grading.Job(job.SessionID)
			if err != nil {
				return err
			}
			if job.Progress != last && !gradeQuiet {
				fmt.Fprintf(out, "\r%d/%d graded, %d errors", job.Progress, job.Total, job.Errors)
				last = job.Progress
			}
			switch job.Status {
			case constants.JobStatusCompleted:
				path, err := a.Grading.ResultPath(*job.ResultFile)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				if err := printJSON(out, job.Summary); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", path)
				return nil
			case constants.JobStatusFailed:
				fmt.Fprintln(out)
				return fmt.Errorf("grading failed: %s", *job.ErrorMessage)
			}
		}
	},
}

func init() {
	gradeCmd.Flags().StringVar(&gradeOutDir, "out", "", "directory for the graded file (default: PROCESSED_DIR)")
	gradeCmd.Flags().BoolVarP(&gradeQuiet, "quiet", "q", false, "only print the summary")
	rootCmd.AddCommand(gradeCmd)
}
