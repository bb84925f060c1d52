package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/exam-grader/internal/async"
	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/metrics"
)

// Runner executes one grading run to completion or cancellation.
type Runner interface {
	Run(ctx context.Context, sessionID string) error
}

// ProcessorQueue feeds queued sessions to a fixed pool of workers. Every job
// gets its own cancellable context derived from the queue's lifetime.
type ProcessorQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan entry
	wg   sync.WaitGroup
	once sync.Once

	base       context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	closed  bool
	seq     uint64
	cancels map[string]map[uint64]context.CancelFunc
}

type entry struct {
	job async.Job
	ctx context.Context
	seq uint64
}

var _ async.Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan entry, n)
		}
	}
}

// WithProcessTimeout bounds a single run. Zero leaves runs unbounded.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(runner Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	q := &ProcessorQueue{
		runner:     runner,
		logger:     logger,
		workers:    2,
		ch:         make(chan entry, 64),
		base:       base,
		cancelBase: cancel,
		cancels:    make(map[string]map[uint64]context.CancelFunc),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for e := range q.ch {
					metrics.QueueDepth.Dec()
					q.run(workerID, e)
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, e entry) {
	ctx := e.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer q.release(e.job.SessionID, e.seq)

	started := time.Now()
	err := q.runner.Run(ctx, e.job.SessionID)
	if err != nil {
		q.logger.Error("queue.run.failed", "worker_id", workerID, "session_id", e.job.SessionID,
			"request_id", e.job.RequestID, "error", err)
		return
	}
	q.logger.Info("queue.run.done", "worker_id", workerID, "session_id", e.job.SessionID,
		"waited", started.Sub(e.job.SubmittedAt), "took", time.Since(started))
}

func (q *ProcessorQueue) release(sessionID string, seq uint64) {
	q.mu.Lock()
	cancel, ok := q.cancels[sessionID][seq]
	delete(q.cancels[sessionID], seq)
	if len(q.cancels[sessionID]) == 0 {
		delete(q.cancels, sessionID)
	}
	q.mu.Unlock()
	if ok {
		cancel()
	}
}

// Enqueue schedules a run. It never blocks: a full queue is reported as an
// error. Duplicate runs of one session are not filtered here; the job
// tracker only lets one of them start.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job async.Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.RequestID == "" {
		job.RequestID = common.RequestIDFromContext(ctx)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "session_id", job.SessionID)
		return common.NewAppError("QUEUE_CLOSED", "grading queue is shutting down", common.ErrUnavailable)
	}

	q.seq++
	runCtx, cancel := context.WithCancel(q.base)
	runCtx = common.WithRequestID(runCtx, job.RequestID)
	select {
	case q.ch <- entry{job: job, ctx: runCtx, seq: q.seq}:
		if q.cancels[job.SessionID] == nil {
			q.cancels[job.SessionID] = make(map[uint64]context.CancelFunc)
		}
		q.cancels[job.SessionID][q.seq] = cancel
		metrics.QueueDepth.Inc()
		q.logger.Info("queue.enqueued", "session_id", job.SessionID, "request_id", job.RequestID)
		return nil
	default:
		cancel()
		q.logger.Warn("queue.full", "session_id", job.SessionID)
		return common.NewAppError("QUEUE_FULL", "grading queue is full", common.ErrUnavailable)
	}
}

// Cancel cancels the contexts of the queued or running jobs for sessionID.
func (q *ProcessorQueue) Cancel(sessionID string) bool {
	q.mu.Lock()
	var cancels []context.CancelFunc
	for _, cancel := range q.cancels[sessionID] {
		cancels = append(cancels, cancel)
	}
	q.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	if len(cancels) > 0 {
		q.logger.Info("queue.cancelled", "session_id", sessionID)
	}
	return len(cancels) > 0
}

// Shutdown stops accepting jobs, cancels queued and running ones and waits
// for the workers to drain or for ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	q.cancelBase()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.complete")
	}
}
