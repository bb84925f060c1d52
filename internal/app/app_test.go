package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/common"
)

func testConfig(t *testing.T, endpoint string) *common.Config {
	t.Helper()
	return &common.Config{
		Classifier: common.ClassifierConfig{
			Endpoint:    endpoint,
			APIKey:      "secret",
			Timeout:     2 * time.Second,
			MaxAttempts: 3,
			RetryDelay:  time.Millisecond,
			ModelURIs:   map[int]string{1: "cls://q1", 2: "cls://q2"},
		},
		Grading: common.GradingConfig{Workers: 1, QueueSize: 4},
		Storage: common.StorageConfig{UploadDir: t.TempDir(), ProcessedDir: t.TempDir()},
	}
}

func TestEndToEndAgainstHTTPClassifier(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.Header.Get("Authorization") != "Api-Key secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			ModelURI string `json:"modelUri"`
			Text     string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		label := "grade-2"
		if body.ModelURI == "cls://q2" {
			label = "grade-0"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{
				{"label": "grade-1", "confidence": 0.1},
				{"label": label, "confidence": 0.9},
			},
		})
	}))
	defer srv.Close()

	a, err := New(testConfig(t, srv.URL), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown(context.Background())

	upload := "id;student;question;d;e;grade;answer\n" +
		"1;Ann;1;;;;answer one\n" +
		"2;Bob;2;;;;answer two\n" +
		"3;Cid;3;;;;answer three\n"
	job, err := a.Grading.Submit(context.Background(), "exam.csv", []byte(upload))
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, _ = a.Grading.Job(job.SessionID)
		if job.Status.IsTerminal() || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != constants.JobStatusCompleted {
		t.Fatalf("job = %+v", job)
	}
	s := job.Summary
	if s.RecordsProcessed != 2 || s.ErrorCount != 1 || s.AvgScore != 1 {
		t.Errorf("summary = %+v", *s)
	}

	path, err := a.Grading.ResultPath(*job.ResultFile)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{";2;answer one", ";0;answer two", "ERROR: model not configured for question 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
