package entity

import (
	"time"

	"github.com/joseph-ayodele/exam-grader/constants"
)

// Job is the tracked runtime state of one session's grading run.
type Job struct {
	SessionID    string              `json:"session_id"`
	Status       constants.JobStatus `json:"status"`
	Progress     int                 `json:"progress"`
	Total        int                 `json:"total"`
	Errors       int                 `json:"errors"`
	ResultFile   *string             `json:"result_file"`
	ErrorMessage *string             `json:"error_message"`
	Summary      *Summary            `json:"summary,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}

// Clone returns a deep copy safe to hand out of a lock.
func (j *Job) Clone() Job {
	out := *j
	if j.ResultFile != nil {
		v := *j.ResultFile
		out.ResultFile = &v
	}
	if j.ErrorMessage != nil {
		v := *j.ErrorMessage
		out.ErrorMessage = &v
	}
	if j.Summary != nil {
		v := *j.Summary
		out.Summary = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		out.StartedAt = &v
	}
	if j.FinishedAt != nil {
		v := *j.FinishedAt
		out.FinishedAt = &v
	}
	return out
}
