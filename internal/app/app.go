// Package app wires the grading stack from configuration.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/exam-grader/internal/classify"
	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/core"
	coreasync "github.com/joseph-ayodele/exam-grader/internal/core/async"
	"github.com/joseph-ayodele/exam-grader/internal/export"
	"github.com/joseph-ayodele/exam-grader/internal/ingest"
	"github.com/joseph-ayodele/exam-grader/internal/repository"
	"github.com/joseph-ayodele/exam-grader/internal/services/grading"
	ingestsvc "github.com/joseph-ayodele/exam-grader/internal/services/ingest"
)

// App holds the long-lived components of a grading process.
type App struct {
	Config   *common.Config
	Grading  *grading.Service
	Ingestor *ingest.Ingestor
	Ingest   *ingestsvc.Service
	Queue    *coreasync.ProcessorQueue
}

// Options override parts of the wiring, mainly for tests.
type Options struct {
	Classifier classify.Classifier // default: HTTP client paced by Grading.PacingDelay
	HTTPClient classify.Doer
}

// New builds the stack. The returned App owns a running worker queue; call
// Shutdown to stop it.
func New(cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sessions, err := repository.NewSessionStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		return nil, err
	}
	results, err := export.NewService(cfg.Storage.ProcessedDir, logger)
	if err != nil {
		return nil, err
	}
	jobs := repository.NewJobTracker(logger)

	classifier := opts.Classifier
	if classifier == nil {
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{}
		}
		client := classify.NewClient(classify.Config{
			Endpoint: cfg.Classifier.Endpoint,
			APIKey:   cfg.Classifier.APIKey,
			Timeout:  cfg.Classifier.Timeout,
			Retry: classify.RetryPolicy{
				MaxAttempts: cfg.Classifier.MaxAttempts,
				Delay:       cfg.Classifier.RetryDelay,
			},
			HTTPClient: httpClient,
		}, logger)
		classifier = classify.NewPaced(client, cfg.Grading.PacingDelay)
	}

	grader := core.NewGrader(classifier, cfg.Classifier.ModelURIs, logger)
	processor := core.NewProcessor(logger, grader, sessions, jobs, results)
	queue := coreasync.NewProcessorQueue(processor, logger,
		coreasync.WithWorkers(cfg.Grading.Workers),
		coreasync.WithQueueSize(cfg.Grading.QueueSize),
		coreasync.WithProcessTimeout(cfg.Grading.RunTimeout),
	)

	gradingSvc := grading.NewService(sessions, jobs, queue, results, cfg.Classifier, logger)
	ingestor := ingest.NewIngestor(gradingSvc, logger)
	return &App{
		Config:   cfg,
		Grading:  gradingSvc,
		Ingestor: ingestor,
		Ingest:   ingestsvc.NewService(ingestor, logger),
		Queue:    queue,
	}, nil
}

// Shutdown stops the worker queue. Runs still in flight are cancelled and
// their sessions stay staged for the next start.
func (a *App) Shutdown(ctx context.Context) {
	a.Queue.Shutdown(ctx)
}
