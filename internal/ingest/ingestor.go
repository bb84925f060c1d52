package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/exam-grader/internal/entity"
)

// SubmittedSuffix is appended to inbox files once they have become sessions,
// so they are not picked up again.
const SubmittedSuffix = ".submitted"

// Submitter turns an uploaded file into a queued grading job.
type Submitter interface {
	Submit(ctx context.Context, filename string, data []byte) (entity.Job, error)
}

// Result is the per-file ingest outcome.
type Result struct {
	Path      string
	SessionID string
	Err       string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32 `json:"scanned"`
	Matched   uint32 `json:"matched"`
	Succeeded uint32 `json:"succeeded"`
	Failed    uint32 `json:"failed"`
}

// Ingestor feeds spreadsheet files from the local filesystem into a Submitter.
type Ingestor struct {
	submitter Submitter
	logger    *slog.Logger
}

func NewIngestor(submitter Submitter, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{submitter: submitter, logger: logger}
}

// IngestPath submits one file and marks it as submitted.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (Result, error) {
	out := Result{Path: path}
	if !AllowedExt(filepath.Ext(path)) {
		return out, fmt.Errorf("unsupported or missing extension: %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read %s: %w", path, err)
	}
	job, err := i.submitter.Submit(ctx, filepath.Base(path), data)
	if err != nil {
		return out, err
	}
	out.SessionID = job.SessionID
	if err := os.Rename(path, path+SubmittedSuffix); err != nil {
		i.logger.Warn("ingest.mark_submitted.failed", "path", path, "error", err)
	}
	i.logger.Info("ingest.file.submitted", "path", path, "session_id", job.SessionID, "rows", job.Total)
	return out, nil
}

// IngestDirectory walks root and submits every spreadsheet found. Failures are
// reported per file and do not stop the walk.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		res, err := i.IngestPath(ctx, path)
		if err != nil {
			res.Err = err.Error()
			stats.Failed++
		} else {
			stats.Succeeded++
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// Watch submits files appearing under root until ctx ends. Files already
// present when it starts are submitted first.
func (i *Ingestor) Watch(ctx context.Context, root string, debounce time.Duration) error {
	events, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    debounce,
		Logger:      i.logger,
	})
	if err != nil {
		return err
	}
	i.logger.Info("ingest.watch.started", "root", root)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				// renamed away, usually by IngestPath itself
				continue
			}
			if _, err := i.IngestPath(ctx, path); err != nil {
				i.logger.Error("ingest.file.failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			i.logger.Warn("ingest.watch.error", "error", err)
		}
	}
}
