package repository

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/entity"
	"github.com/joseph-ayodele/exam-grader/internal/metrics"
)

// JobTracker maps session IDs to the state of their grading run. All reads and
// writes go through one mutex and hand out copies, so a reader never observes
// a half-applied update. Jobs are kept for the lifetime of the process.
type JobTracker struct {
	mu     sync.Mutex
	jobs   map[string]*entity.Job
	logger *slog.Logger
	now    func() time.Time
}

func NewJobTracker(logger *slog.Logger) *JobTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobTracker{
		jobs:   make(map[string]*entity.Job),
		logger: logger,
		now:    time.Now,
	}
}

// Create registers a pending job. A session that already has a pending,
// running or completed job is rejected; a failed job may be replaced so the
// session can be resumed.
func (t *JobTracker) Create(sessionID string, total int) (entity.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.jobs[sessionID]; ok && existing.Status != constants.JobStatusFailed {
		return existing.Clone(), common.NewAppError("JOB_EXISTS",
			fmt.Sprintf("session %s already has a %s job", sessionID, existing.Status), common.ErrConflict)
	}
	job := &entity.Job{
		SessionID: sessionID,
		Status:    constants.JobStatusPending,
		Total:     total,
		CreatedAt: t.now().UTC(),
	}
	t.jobs[sessionID] = job
	t.logger.Info("job.created", "session_id", sessionID, "total", total)
	return job.Clone(), nil
}

// Get returns a snapshot of the job for sessionID.
func (t *JobTracker) Get(sessionID string) (entity.Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[sessionID]
	if !ok {
		return entity.Job{}, false
	}
	return job.Clone(), true
}

// List returns snapshots of every job, oldest first.
func (t *JobTracker) List() []entity.Job {
	t.mu.Lock()
	out := make([]entity.Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, job.Clone())
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Update applies fn to a copy of the job and stores it only if the result is a
// legal transition: status moves along pending → running → completed|failed
// and progress never decreases.
func (t *JobTracker) Update(sessionID string, fn func(*entity.Job)) (entity.Job, error) {
	return t.update(sessionID, "", fn)
}

// update is Update with an optional required current status, checked under
// the same lock as the write.
func (t *JobTracker) update(sessionID string, want constants.JobStatus, fn func(*entity.Job)) (entity.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[sessionID]
	if !ok {
		return entity.Job{}, common.NewAppError("JOB_NOT_FOUND", "job not found: "+sessionID, common.ErrNotFound)
	}
	if want != "" && job.Status != want {
		return job.Clone(), common.NewAppError("JOB_STATUS",
			fmt.Sprintf("job %s is %s, not %s", sessionID, job.Status, want), common.ErrConflict)
	}
	next := job.Clone()
	fn(&next)
	next.SessionID = job.SessionID

	if next.Status != job.Status && !job.Status.CanTransition(next.Status) {
		return job.Clone(), common.NewAppError("JOB_TRANSITION",
			fmt.Sprintf("job %s cannot move from %s to %s", sessionID, job.Status, next.Status), common.ErrConflict)
	}
	if job.Status.IsTerminal() {
		return job.Clone(), common.NewAppError("JOB_TERMINAL",
			fmt.Sprintf("job %s is already %s", sessionID, job.Status), common.ErrConflict)
	}
	if next.Progress < job.Progress {
		return job.Clone(), common.NewAppError("JOB_PROGRESS",
			fmt.Sprintf("job %s progress cannot go back from %d to %d", sessionID, job.Progress, next.Progress), common.ErrConflict)
	}

	t.observeTransition(job.Status, next.Status)
	*job = next
	return job.Clone(), nil
}

func (t *JobTracker) observeTransition(from, to constants.JobStatus) {
	if from == to {
		return
	}
	if to == constants.JobStatusRunning {
		metrics.JobsRunning.Inc()
	}
	if to.IsTerminal() {
		if from == constants.JobStatusRunning {
			metrics.JobsRunning.Dec()
		}
		metrics.JobsFinished.WithLabelValues(string(to)).Inc()
	}
}

// Start moves a pending job to running. Any other current status is a
// conflict, so only one run can own a job.
func (t *JobTracker) Start(sessionID string, progress, errCount int) (entity.Job, error) {
	now := t.now().UTC()
	return t.update(sessionID, constants.JobStatusPending, func(j *entity.Job) {
		j.Status = constants.JobStatusRunning
		j.Progress = progress
		j.Errors = errCount
		j.StartedAt = &now
	})
}

// Progress records the counters after a row has been graded.
func (t *JobTracker) Progress(sessionID string, progress, errCount int) (entity.Job, error) {
	return t.Update(sessionID, func(j *entity.Job) {
		j.Progress = progress
		j.Errors = errCount
	})
}

// Complete marks the job completed with its result artifact and summary.
func (t *JobTracker) Complete(sessionID, resultFile string, summary entity.Summary) (entity.Job, error) {
	now := t.now().UTC()
	job, err := t.Update(sessionID, func(j *entity.Job) {
		j.Status = constants.JobStatusCompleted
		j.Progress = summary.TotalRecords
		j.Errors = summary.ErrorCount
		j.ResultFile = &resultFile
		j.Summary = &summary
		j.FinishedAt = &now
	})
	if err == nil {
		t.logger.Info("job.completed", "session_id", sessionID, "result_file", resultFile,
			"processed", summary.RecordsProcessed, "errors", summary.ErrorCount, "avg_score", summary.AvgScore)
	}
	return job, err
}

// Fail marks the job failed with a human-readable message.
func (t *JobTracker) Fail(sessionID, message string) (entity.Job, error) {
	now := t.now().UTC()
	job, err := t.Update(sessionID, func(j *entity.Job) {
		j.Status = constants.JobStatusFailed
		j.ErrorMessage = &message
		j.FinishedAt = &now
	})
	if err == nil {
		t.logger.Warn("job.failed", "session_id", sessionID, "error", message)
	}
	return job, err
}
