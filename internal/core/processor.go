package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/entity"
	"github.com/joseph-ayodele/exam-grader/internal/metrics"
	"github.com/joseph-ayodele/exam-grader/internal/repository"
)

const (
	cancelledMessage = "job cancelled"
	timedOutMessage  = "job timed out"
)

// SessionRepository is the part of the session store a run needs.
type SessionRepository interface {
	Load(ctx context.Context, id string) (*entity.Session, error)
	Save(ctx context.Context, sess *entity.Session) error
	Delete(ctx context.Context, id string) error
}

// ResultWriter renders a finished session into the output artifact and
// returns the artifact's file name.
type ResultWriter interface {
	Write(ctx context.Context, sess *entity.Session) (string, error)
}

// Processor runs the batch grading of one session at a time.
type Processor struct {
	logger   *slog.Logger
	grader   *Grader
	sessions SessionRepository
	jobs     *repository.JobTracker
	results  ResultWriter
	now      func() time.Time
}

func NewProcessor(
	logger *slog.Logger,
	grader *Grader,
	sessions SessionRepository,
	jobs *repository.JobTracker,
	results ResultWriter,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:   logger,
		grader:   grader,
		sessions: sessions,
		jobs:     jobs,
		results:  results,
		now:      time.Now,
	}
}

// Run grades the session's rows in order, starting at its persisted cursor,
// and finalizes the job. The job must be pending. Row failures are recorded
// on the rows; only orchestration failures and cancellation fail the job.
// A cancelled run keeps the session so it can be resumed later.
func (p *Processor) Run(ctx context.Context, sessionID string) (err error) {
	ctx = common.WithSessionID(ctx, sessionID)
	log := p.logger.With(common.LogAttrs(ctx)...)
	start := p.now()
	// Persistence must finish even when the run is being cancelled.
	persistCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("processor.panic", "panic", r)
			err = fmt.Errorf("grading run panicked: %v", r)
			p.fail(sessionID, "internal error while grading", log)
		}
	}()

	if ctx.Err() != nil {
		return p.stop(ctx, sessionID, log)
	}

	sess, err := p.sessions.Load(ctx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return p.stop(ctx, sessionID, log)
		}
		log.Error("processor.session.load_failed", "err", err)
		p.fail(sessionID, "failed to load session: "+common.UserMessage(err), log)
		return err
	}

	if sess.Cursor < 0 || sess.Cursor > len(sess.Rows) {
		err = common.NewAppError("SESSION_CURSOR",
			fmt.Sprintf("session cursor %d out of range", sess.Cursor), common.ErrStorage)
		p.fail(sessionID, "failed to load session: "+common.UserMessage(err), log)
		return err
	}

	errCount := 0
	for _, row := range sess.Rows[:sess.Cursor] {
		if row.Grade.IsError() {
			errCount++
		}
	}
	if _, err := p.jobs.Start(sessionID, sess.Cursor, errCount); err != nil {
		log.Warn("processor.start.rejected", "err", err)
		return err
	}
	log.Info("processor.started", "rows", sess.Total(), "cursor", sess.Cursor)

	for i := sess.Cursor; i < len(sess.Rows); i++ {
		if ctx.Err() != nil {
			return p.stop(ctx, sessionID, log)
		}

		grade := p.grader.GradeRow(ctx, &sess.Rows[i])
		if grade.IsEmpty() {
			return p.stop(ctx, sessionID, log)
		}
		if grade.IsError() {
			errCount++
			metrics.RowsGraded.WithLabelValues("error").Inc()
			log.Debug("processor.row.error", "row", i+1, "reason", grade.Reason)
		} else {
			metrics.RowsGraded.WithLabelValues("graded").Inc()
		}

		sess.Cursor = i + 1
		if err := p.sessions.Save(persistCtx, sess); err != nil {
			log.Error("processor.session.save_failed", "row", i+1, "err", err)
			p.fail(sessionID, "failed to save progress: "+common.UserMessage(err), log)
			return err
		}
		if _, err := p.jobs.Progress(sessionID, sess.Cursor, errCount); err != nil {
			log.Warn("processor.progress.rejected", "err", err)
			return err
		}
	}

	return p.finish(persistCtx, sess, start, log)
}

func (p *Processor) finish(ctx context.Context, sess *entity.Session, start time.Time, log *slog.Logger) error {
	name, err := p.results.Write(ctx, sess)
	if err != nil {
		log.Error("processor.result.write_failed", "err", err)
		p.fail(sess.ID, "failed to write result file: "+common.UserMessage(err), log)
		return err
	}

	elapsed := p.now().Sub(start)
	summary := entity.Summarize(name, sess.Rows, elapsed)

	if err := p.sessions.Delete(ctx, sess.ID); err != nil {
		log.Warn("processor.session.delete_failed", "err", err)
	}
	if _, err := p.jobs.Complete(sess.ID, name, summary); err != nil {
		log.Warn("processor.complete.rejected", "err", err)
		return err
	}
	metrics.JobDuration.Observe(elapsed.Seconds())
	log.Info("processor.completed", "result_file", name, "elapsed", elapsed)
	return nil
}

// stop fails the job after its context ended. The session stays staged.
func (p *Processor) stop(ctx context.Context, sessionID string, log *slog.Logger) error {
	msg := cancelledMessage
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg = timedOutMessage
	}
	p.fail(sessionID, msg, log)
	log.Info("processor.stopped", "reason", msg)
	return ctx.Err()
}

func (p *Processor) fail(sessionID, message string, log *slog.Logger) {
	if _, err := p.jobs.Fail(sessionID, message); err != nil {
		log.Warn("processor.fail.rejected", "err", err)
	}
}
