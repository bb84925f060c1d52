package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/async"
	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/entity"
	"github.com/joseph-ayodele/exam-grader/internal/export"
	"github.com/joseph-ayodele/exam-grader/internal/ingest"
	"github.com/joseph-ayodele/exam-grader/internal/repository"
)

// Service handles the grading session lifecycle: it stages uploads, queues
// background runs and answers status and result lookups.
type Service struct {
	sessions   *repository.SessionStore
	jobs       *repository.JobTracker
	queue      async.Queue
	results    *export.Service
	classifier common.ClassifierConfig
	logger     *slog.Logger
}

// ConfigReport describes what the grader can currently do.
type ConfigReport struct {
	APIKeyConfigured bool
	Endpoint         string
	Models           map[int]bool
}

// NewService creates a new grading service.
func NewService(
	sessions *repository.SessionStore,
	jobs *repository.JobTracker,
	queue async.Queue,
	results *export.Service,
	classifier common.ClassifierConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:   sessions,
		jobs:       jobs,
		queue:      queue,
		results:    results,
		classifier: classifier,
		logger:     logger,
	}
}

// Submit validates an uploaded file, stages it as a new session and queues
// its grading run. The returned job is pending.
func (s *Service) Submit(ctx context.Context, filename string, data []byte) (entity.Job, error) {
	sheet, err := ingest.ReadUpload(filename, data)
	if err != nil {
		s.logger.Warn("grading.submit.rejected", append(common.LogAttrs(ctx), "filename", filename, "error", err)...)
		return entity.Job{}, err
	}

	sess, err := s.sessions.Create(ctx, filename, sheet.Format, sheet.Header, sheet.Body)
	if err != nil {
		s.logger.Error("grading.session.create_failed", append(common.LogAttrs(ctx), "filename", filename, "error", err)...)
		return entity.Job{}, err
	}
	s.logger.Info("grading.session.staged", append(common.LogAttrs(ctx),
		"session_id", sess.ID, "rows", sess.Total(), "format", sheet.Format, "encoding", sheet.Encoding)...)
	return s.enqueue(ctx, sess.ID, sess.Total())
}

func (s *Service) enqueue(ctx context.Context, sessionID string, total int) (entity.Job, error) {
	job, err := s.jobs.Create(sessionID, total)
	if err != nil {
		return job, err
	}
	if err := s.queue.Enqueue(ctx, async.Job{
		SessionID:   sessionID,
		SubmittedAt: time.Now(),
		RequestID:   common.RequestIDFromContext(ctx),
	}); err != nil {
		s.logger.Error("grading.enqueue.failed", append(common.LogAttrs(ctx), "session_id", sessionID, "error", err)...)
		_, _ = s.jobs.Fail(sessionID, "could not queue job: "+common.UserMessage(err))
		return entity.Job{}, err
	}
	return job, nil
}

// Job returns the current state of a session's job.
func (s *Service) Job(sessionID string) (entity.Job, error) {
	job, ok := s.jobs.Get(sessionID)
	if !ok {
		return entity.Job{}, common.NewAppError("JOB_NOT_FOUND", "job not found", common.ErrNotFound)
	}
	return job, nil
}

// Jobs lists every job known to this process.
func (s *Service) Jobs() []entity.Job {
	return s.jobs.List()
}

// Cancel asks the run of a pending or running job to stop. The job reaches
// failed once the run notices; the staged session is kept for Resume.
func (s *Service) Cancel(ctx context.Context, sessionID string) (entity.Job, error) {
	job, err := s.Job(sessionID)
	if err != nil {
		return job, err
	}
	if job.Status.IsTerminal() {
		return job, common.NewAppError("JOB_TERMINAL",
			fmt.Sprintf("job is already %s", job.Status), common.ErrConflict)
	}
	if !s.queue.Cancel(sessionID) {
		// no run owns the job any more; settle it here
		if _, err := s.jobs.Fail(sessionID, "job cancelled"); err != nil && !errors.Is(err, common.ErrConflict) {
			return job, err
		}
	}
	s.logger.Info("grading.job.cancel_requested", append(common.LogAttrs(ctx), "session_id", sessionID)...)
	return s.Job(sessionID)
}

// ResumeSession re-queues a staged session whose previous run did not
// finish. Grading continues at the first ungraded row.
func (s *Service) ResumeSession(ctx context.Context, sessionID string) (entity.Job, error) {
	if job, ok := s.jobs.Get(sessionID); ok && job.Status != constants.JobStatusFailed {
		return job, common.NewAppError("JOB_EXISTS",
			fmt.Sprintf("job is %s", job.Status), common.ErrConflict)
	}
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return entity.Job{}, err
	}
	job, err := s.enqueue(ctx, sess.ID, sess.Total())
	if err != nil {
		return job, err
	}
	s.logger.Info("grading.session.resumed", append(common.LogAttrs(ctx),
		"session_id", sess.ID, "cursor", sess.Cursor, "rows", sess.Total())...)
	return job, nil
}

// Resume re-queues every staged session without a live job. It is meant to
// run once at startup.
func (s *Service) Resume(ctx context.Context) (int, error) {
	ids, err := s.sessions.List(ctx)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, id := range ids {
		if _, err := s.ResumeSession(ctx, id); err != nil {
			if errors.Is(err, common.ErrConflict) {
				continue
			}
			s.logger.Warn("grading.resume.skipped", "session_id", id, "error", err)
			continue
		}
		resumed++
	}
	return resumed, nil
}

// ResultPath resolves the name of a finished job's output file.
func (s *Service) ResultPath(name string) (string, error) {
	return s.results.Path(name)
}

// Result returns the contents of a finished job's output file.
func (s *Service) Result(name string) ([]byte, error) {
	return s.results.Read(name)
}

// Config reports whether the classifier is usable.
func (s *Service) Config() ConfigReport {
	return ConfigReport{
		APIKeyConfigured: s.classifier.APIKey != "",
		Endpoint:         s.classifier.Endpoint,
		Models:           s.classifier.ModelConfigured(),
	}
}
