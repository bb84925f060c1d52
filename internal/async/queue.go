package async

import (
	"context"
	"time"
)

// Job is one queued grading run.
type Job struct {
	SessionID   string
	SubmittedAt time.Time
	RequestID   string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Cancel stops the queued or running job for sessionID. It reports
	// whether such a job was found.
	Cancel(sessionID string) bool
	Shutdown(ctx context.Context)
}
