package server

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/services/grading"
	ingestsvc "github.com/joseph-ayodele/exam-grader/internal/services/ingest"
)

// SubmitRequest uploads a spreadsheet. Content is base64 in JSON.
type SubmitRequest struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type ResultRequest struct {
	Name string `json:"name"`
}

type IngestPathRequest struct {
	Path string `json:"path"`
}

type IngestDirectoryRequest struct {
	RootPath   string `json:"rootPath"`
	SkipHidden *bool  `json:"skipHidden,omitempty"`
}

// GradingService exposes the grading and ingest services over gRPC.
type GradingService struct {
	grading *grading.Service
	ingest  *ingestsvc.Service
	logger  *slog.Logger
}

var _ GradingServer = (*GradingService)(nil)

func NewGradingService(g *grading.Service, ing *ingestsvc.Service, logger *slog.Logger) *GradingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GradingService{grading: g, ingest: ing, logger: logger}
}

func decode(in *structpb.Struct, v any) error {
	if err := FromStruct(in, v); err != nil {
		return status.Error(codes.InvalidArgument, "malformed request")
	}
	return nil
}

func reply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func sessionID(in *structpb.Struct) (string, error) {
	var req SessionRequest
	if err := decode(in, &req); err != nil {
		return "", err
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "session_id is required")
	}
	return id, nil
}

func (s *GradingService) SubmitFile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SubmitRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	job, err := s.grading.Submit(ctx, req.Filename, req.Content)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return reply(NewJobView(job))
}

func (s *GradingService) IngestPath(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req IngestPathRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	r, err := s.ingest.IngestFile(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return reply(newIngestResult(r))
}

func (s *GradingService) IngestDirectory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req IngestDirectoryRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.ingest.IngestDirectory(ctx, ingestsvc.DirectoryIngestRequest{
		RootPath:   req.RootPath,
		SkipHidden: req.SkipHidden,
	})
	if err != nil {
		return nil, err
	}
	view := IngestView{Statistics: res.Statistics, Results: make([]IngestResult, 0, len(res.Results))}
	for _, r := range res.Results {
		view.Results = append(view.Results, newIngestResult(r))
	}
	return reply(view)
}

func (s *GradingService) GetJob(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	job, err := s.grading.Job(id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return reply(NewJobView(job))
}

func (s *GradingService) ListJobs(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	jobs := s.grading.Jobs()
	view := JobListView{Jobs: make([]JobView, 0, len(jobs))}
	for _, j := range jobs {
		view.Jobs = append(view.Jobs, NewJobView(j))
	}
	return reply(view)
}

func (s *GradingService) CancelJob(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	job, err := s.grading.Cancel(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return reply(NewJobView(job))
}

func (s *GradingService) ResumeSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	job, err := s.grading.ResumeSession(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return reply(NewJobView(job))
}

func (s *GradingService) GetResult(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ResultRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	data, err := s.grading.Result(strings.TrimSpace(req.Name))
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return reply(ResultView{Name: req.Name, Content: data})
}

func (s *GradingService) GetConfig(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return reply(NewConfigView(s.grading.Config()))
}
