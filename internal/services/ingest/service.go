package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/exam-grader/internal/common"
	fsingest "github.com/joseph-ayodele/exam-grader/internal/ingest"
)

// Ingestor is the filesystem behaviour the service depends on.
type Ingestor interface {
	IngestPath(ctx context.Context, path string) (fsingest.Result, error)
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]fsingest.Result, fsingest.DirStats, error)
}

// Service submits spreadsheets that already sit on the server's filesystem.
type Service struct {
	ingestor Ingestor
	logger   *slog.Logger
}

// NewService creates a new ingest service.
func NewService(ing Ingestor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ingestor: ing, logger: logger}
}

// DirectoryIngestRequest represents directory ingestion parameters.
type DirectoryIngestRequest struct {
	RootPath   string
	SkipHidden *bool // defaults to true
}

// DirectoryIngestResult represents directory ingestion results.
type DirectoryIngestResult struct {
	Statistics fsingest.DirStats
	Results    []fsingest.Result
}

// IngestFile submits a single file.
func (s *Service) IngestFile(ctx context.Context, path string) (fsingest.Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		s.logger.Error("ingest request missing path")
		return fsingest.Result{}, status.Error(codes.InvalidArgument, "path is required")
	}

	s.logger.Info("starting file ingest", "path", path)
	r, err := s.ingestor.IngestPath(ctx, path)
	if err != nil {
		return r, toStatus("ingest", err)
	}
	s.logger.Info("file ingest succeeded", "path", path, "session_id", r.SessionID)
	return r, nil
}

// IngestDirectory submits all spreadsheets under a directory.
func (s *Service) IngestDirectory(ctx context.Context, req DirectoryIngestRequest) (*DirectoryIngestResult, error) {
	root := strings.TrimSpace(req.RootPath)
	if root == "" {
		s.logger.Error("ingest directory request missing root_path")
		return nil, status.Error(codes.InvalidArgument, "root_path is required")
	}
	skipHidden := true
	if req.SkipHidden != nil {
		skipHidden = *req.SkipHidden
	}

	s.logger.Info("starting directory ingest", "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.ingestor.IngestDirectory(ctx, root, skipHidden)
	if err != nil {
		return nil, toStatus("ingest directory", err)
	}

	s.logger.Info("directory ingest completed", "root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "failed", stats.Failed)

	return &DirectoryIngestResult{
		Statistics: stats,
		Results:    results,
	}, nil
}

func toStatus(op string, err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return common.ToStatus(err)
	}
	return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
}
