package grading

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/classify"
	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/core"
	coreasync "github.com/joseph-ayodele/exam-grader/internal/core/async"
	"github.com/joseph-ayodele/exam-grader/internal/entity"
	"github.com/joseph-ayodele/exam-grader/internal/export"
	"github.com/joseph-ayodele/exam-grader/internal/repository"
)

var models = map[int]string{1: "m1", 2: "m2", 3: "m3", 4: "m4"}

type fixture struct {
	svc      *Service
	sessions *repository.SessionStore
	queue    *coreasync.ProcessorQueue
}

func newFixture(t *testing.T, c classify.Classifier) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions, err := repository.NewSessionStore(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	results, err := export.NewService(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	jobs := repository.NewJobTracker(logger)
	proc := core.NewProcessor(logger, core.NewGrader(c, models, logger), sessions, jobs, results)
	queue := coreasync.NewProcessorQueue(proc, logger, coreasync.WithWorkers(1))
	t.Cleanup(func() { queue.Shutdown(context.Background()) })

	cfg := common.ClassifierConfig{APIKey: "k", Endpoint: "http://classifier", ModelURIs: map[int]string{1: "m1"}}
	return &fixture{
		svc:      NewService(sessions, jobs, queue, results, cfg, logger),
		sessions: sessions,
		queue:    queue,
	}
}

func waitTerminal(t *testing.T, svc *Service, id string) entity.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Job(id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return entity.Job{}
}

const upload = "id,student,question,d,e,grade,answer\n" +
	"1,Ann,1,,,,photosynthesis\n" +
	"2,Bob,5,,,,osmosis\n"

func TestSubmitAndComplete(t *testing.T) {
	f := newFixture(t, classify.ClassifierFunc(func(context.Context, string, string) (string, error) {
		return "2", nil
	}))

	job, err := f.svc.Submit(context.Background(), "Biology exam.csv", []byte(upload))
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != constants.JobStatusPending || job.Total != 2 {
		t.Errorf("submitted job = %+v", job)
	}
	if now, _ := f.svc.Job(job.SessionID); now.Status != constants.JobStatusPending &&
		now.Status != constants.JobStatusRunning && now.Status != constants.JobStatusCompleted {
		t.Errorf("status right after submit = %s", now.Status)
	}

	done := waitTerminal(t, f.svc, job.SessionID)
	if done.Status != constants.JobStatusCompleted {
		t.Fatalf("job = %+v", done)
	}
	if done.Summary.RecordsProcessed != 1 || done.Summary.ErrorCount != 1 || done.Summary.AvgScore != 2 {
		t.Errorf("summary = %+v", *done.Summary)
	}

	data, err := f.svc.Result(*done.ResultFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("empty result file")
	}
	if _, err := f.svc.ResultPath("../" + *done.ResultFile); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("traversal err = %v", err)
	}

	if _, err := f.svc.Cancel(context.Background(), job.SessionID); !errors.Is(err, common.ErrConflict) {
		t.Errorf("cancel of completed job err = %v, want ErrConflict", err)
	}
}

func TestSubmitRejectsBadUpload(t *testing.T) {
	f := newFixture(t, classify.ClassifierFunc(func(context.Context, string, string) (string, error) {
		return "1", nil
	}))
	if _, err := f.svc.Submit(context.Background(), "exam.csv", []byte("a,b\n1,2\n")); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if len(f.svc.Jobs()) != 0 {
		t.Error("a rejected upload must not create a job")
	}
}

func TestCancelRunningJobThenResume(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, classify.ClassifierFunc(func(ctx context.Context, _, _ string) (string, error) {
		select {
		case <-release:
			return "1", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}))

	job, err := f.svc.Submit(context.Background(), "exam.csv", []byte(upload))
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		j, _ := f.svc.Job(job.SessionID)
		if j.Status == constants.JobStatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := f.svc.Cancel(context.Background(), job.SessionID); err != nil {
		t.Fatal(err)
	}
	cancelled := waitTerminal(t, f.svc, job.SessionID)
	if cancelled.Status != constants.JobStatusFailed || *cancelled.ErrorMessage != "job cancelled" {
		t.Fatalf("job = %+v", cancelled)
	}

	close(release)
	if _, err := f.svc.ResumeSession(context.Background(), job.SessionID); err != nil {
		t.Fatal(err)
	}
	resumed := waitTerminal(t, f.svc, job.SessionID)
	if resumed.Status != constants.JobStatusCompleted || resumed.Progress != 2 {
		t.Errorf("resumed job = %+v", resumed)
	}
}

func TestResumeStagedSessions(t *testing.T) {
	f := newFixture(t, classify.ClassifierFunc(func(context.Context, string, string) (string, error) {
		return "0", nil
	}))
	header := []string{"a", "b", "c", "d", "e", "f", "g"}
	sess, err := f.sessions.Create(context.Background(), "left over.csv", constants.FormatCSV, header,
		[][]string{{"1", "Ann", "1", "", "", "", "text"}})
	if err != nil {
		t.Fatal(err)
	}

	n, err := f.svc.Resume(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Resume = %d, %v", n, err)
	}
	done := waitTerminal(t, f.svc, sess.ID)
	if done.Status != constants.JobStatusCompleted {
		t.Errorf("job = %+v", done)
	}
	path, err := f.svc.ResultPath(*done.ResultFile)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}

	if n, _ := f.svc.Resume(context.Background()); n != 0 {
		t.Errorf("second Resume re-queued %d sessions", n)
	}
}

func TestJobNotFound(t *testing.T) {
	f := newFixture(t, classify.ClassifierFunc(func(context.Context, string, string) (string, error) {
		return "0", nil
	}))
	if _, err := f.svc.Job("nope"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestConfigReport(t *testing.T) {
	f := newFixture(t, classify.ClassifierFunc(func(context.Context, string, string) (string, error) {
		return "0", nil
	}))
	r := f.svc.Config()
	if !r.APIKeyConfigured || !r.Models[1] || r.Models[2] || len(r.Models) != 4 {
		t.Errorf("report = %+v", r)
	}
}
