package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/entity"
	fsingest "github.com/joseph-ayodele/exam-grader/internal/ingest"
	"github.com/joseph-ayodele/exam-grader/internal/services/grading"
)

// JobView is the status document returned for a job. ResultFile is set only
// once the job completed and ErrorMessage only once it failed.
type JobView struct {
	SessionID    string              `json:"sessionId"`
	Status       constants.JobStatus `json:"status"`
	Progress     int                 `json:"progress"`
	Total        int                 `json:"total"`
	Errors       int                 `json:"errors"`
	ResultFile   *string             `json:"resultFile"`
	ErrorMessage *string             `json:"errorMessage"`
	Summary      *entity.Summary     `json:"summary,omitempty"`
	CreatedAt    string              `json:"createdAt"`
	StartedAt    string              `json:"startedAt,omitempty"`
	FinishedAt   string              `json:"finishedAt,omitempty"`
}

func NewJobView(j entity.Job) JobView {
	v := JobView{
		SessionID:    j.SessionID,
		Status:       j.Status,
		Progress:     j.Progress,
		Total:        j.Total,
		Errors:       j.Errors,
		ResultFile:   j.ResultFile,
		ErrorMessage: j.ErrorMessage,
		Summary:      j.Summary,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339Nano),
	}
	if j.StartedAt != nil {
		v.StartedAt = j.StartedAt.Format(time.RFC3339Nano)
	}
	if j.FinishedAt != nil {
		v.FinishedAt = j.FinishedAt.Format(time.RFC3339Nano)
	}
	return v
}

// JobListView wraps a list of jobs.
type JobListView struct {
	Jobs []JobView `json:"jobs"`
}

// ConfigView reports classifier readiness. Models is keyed by question number.
type ConfigView struct {
	APIKeyConfigured bool            `json:"apiKeyConfigured"`
	Endpoint         string          `json:"endpoint"`
	Models           map[string]bool `json:"models"`
}

func NewConfigView(r grading.ConfigReport) ConfigView {
	v := ConfigView{APIKeyConfigured: r.APIKeyConfigured, Endpoint: r.Endpoint, Models: map[string]bool{}}
	for q, ok := range r.Models {
		v.Models[strconv.Itoa(q)] = ok
	}
	return v
}

// ResultView carries an output artifact, base64 encoded in JSON.
type ResultView struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// IngestView is the outcome of a filesystem ingest.
type IngestView struct {
	Statistics fsingest.DirStats `json:"statistics"`
	Results    []IngestResult    `json:"results"`
}

type IngestResult struct {
	Path      string `json:"path"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newIngestResult(r fsingest.Result) IngestResult {
	return IngestResult{Path: r.Path, SessionID: r.SessionID, Error: r.Err}
}

// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes a protobuf Struct into a JSON-tagged value.
func FromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
