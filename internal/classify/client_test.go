package classify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedDoer replays canned responses in order.
type scriptedDoer struct {
	mu        sync.Mutex
	responses []scripted
	calls     int
	requests  []*http.Request
	bodies    []string
}

type scripted struct {
	status int
	body   string
	err    error
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, _ := io.ReadAll(req.Body)
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, string(b))
	r := d.responses[d.calls]
	d.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Header:     make(http.Header),
	}, nil
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestClient(doer Doer, sleeper *sleepRecorder) *Client {
	return NewClient(Config{
		Endpoint:   "http://classifier.test/v1/textClassification",
		APIKey:     "secret",
		Timeout:    time.Second,
		Retry:      RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second, Sleep: sleeper.Sleep},
		HTTPClient: doer,
	}, discardLogger())
}

const okBody = `{"predictions":[{"label":"grade-0","confidence":0.1},{"label":"grade-2","confidence":0.7},{"label":"grade-1","confidence":0.2}]}`

func TestClassifyPicksMostConfidentLabel(t *testing.T) {
	doer := &scriptedDoer{responses: []scripted{{status: 200, body: okBody}}}
	c := newTestClient(doer, &sleepRecorder{})

	got, err := c.Classify(context.Background(), "cls://folder/q1", "answer")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != "2" {
		t.Errorf("label = %q, want 2", got)
	}

	req := doer.requests[0]
	if h := req.Header.Get("Authorization"); h != "Api-Key secret" {
		t.Errorf("Authorization = %q", h)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(doer.bodies[0]), &body); err != nil {
		t.Fatal(err)
	}
	if body["modelUri"] != "cls://folder/q1" || body["text"] != "answer" {
		t.Errorf("request body = %v", body)
	}
}

func TestClassifyRetriesRateLimit(t *testing.T) {
	doer := &scriptedDoer{responses: []scripted{
		{status: 429, body: "slow down"},
		{status: 429, body: "slow down"},
		{status: 200, body: okBody},
	}}
	sleeper := &sleepRecorder{}
	c := newTestClient(doer, sleeper)

	got, err := c.Classify(context.Background(), "m", "t")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != "2" {
		t.Errorf("label = %q, want 2", got)
	}
	if len(sleeper.delays) != 2 {
		t.Fatalf("delays = %v, want 2", sleeper.delays)
	}
	for _, d := range sleeper.delays {
		if d != 2*time.Second {
			t.Errorf("delay = %v, want 2s", d)
		}
	}
}

func TestClassifyRateLimitExhausted(t *testing.T) {
	doer := &scriptedDoer{responses: []scripted{{status: 429}, {status: 429}, {status: 429}}}
	sleeper := &sleepRecorder{}
	c := newTestClient(doer, sleeper)

	_, err := c.Classify(context.Background(), "m", "t")
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	if rl.Attempts != 3 || doer.calls != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3", rl.Attempts, doer.calls)
	}
	if len(sleeper.delays) != 2 {
		t.Errorf("delays = %v, want 2", sleeper.delays)
	}
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name  string
		resp  scripted
		check func(error) bool
	}{
		{"remote", scripted{status: 500, body: "boom"}, func(err error) bool {
			var re *RemoteError
			return errors.As(err, &re) && re.Status == 500 && re.Body == "boom" && err.Error() == "HTTP error 500: boom"
		}},
		{"connection", scripted{err: errors.New("dial tcp: connection refused")}, func(err error) bool {
			var ce *ConnectionError
			return errors.As(err, &ce)
		}},
		{"timeout", scripted{err: context.DeadlineExceeded}, func(err error) bool {
			var te *TimeoutError
			return errors.As(err, &te)
		}},
		{"schema", scripted{status: 200, body: `{"predictions":"nope"}`}, func(err error) bool {
			var re *ResponseError
			return errors.As(err, &re)
		}},
		{"not json", scripted{status: 200, body: `<html>`}, func(err error) bool {
			var re *ResponseError
			return errors.As(err, &re)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(&scriptedDoer{responses: []scripted{tt.resp}}, &sleepRecorder{})
			_, err := c.Classify(context.Background(), "m", "t")
			if !tt.check(err) {
				t.Errorf("unexpected error %T: %v", err, err)
			}
		})
	}
}

func TestClassifyConfigurationErrors(t *testing.T) {
	doer := &scriptedDoer{}
	c := NewClient(Config{HTTPClient: doer}, discardLogger())
	_, err := c.Classify(context.Background(), "m", "t")
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("missing key: err = %v", err)
	}

	c = newTestClient(doer, &sleepRecorder{})
	_, err = c.Classify(context.Background(), "  ", "t")
	if !errors.As(err, &ce) {
		t.Fatalf("missing model: err = %v", err)
	}
	if doer.calls != 0 {
		t.Errorf("calls = %d, want 0", doer.calls)
	}
}

func TestClassifyEmptyPredictions(t *testing.T) {
	for _, body := range []string{`{"predictions":[]}`, `{}`} {
		c := newTestClient(&scriptedDoer{responses: []scripted{{status: 200, body: body}}}, &sleepRecorder{})
		got, err := c.Classify(context.Background(), "m", "t")
		if err != nil {
			t.Fatalf("%s: %v", body, err)
		}
		if got != "ERROR" {
			t.Errorf("%s: label = %q, want ERROR", body, got)
		}
	}
}

func TestClassifyTimeoutAgainstServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{
		Endpoint: srv.URL,
		APIKey:   "k",
		Timeout:  50 * time.Millisecond,
	}, discardLogger())
	_, err := c.Classify(context.Background(), "m", "t")
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %T %v, want TimeoutError", err, err)
	}
}

func TestClassifyCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestClient(&scriptedDoer{responses: []scripted{{err: context.Canceled}}}, &sleepRecorder{})
	_, err := c.Classify(ctx, "m", "t")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBestLabel(t *testing.T) {
	tests := []struct {
		name  string
		preds []Prediction
		want  string
	}{
		{"empty", nil, "ERROR"},
		{"tie keeps first", []Prediction{{"grade-1", 0.5}, {"grade-2", 0.5}}, "1"},
		{"passthrough", []Prediction{{"excellent", 0.9}}, "excellent"},
		{"missing label", []Prediction{{"", 0.9}}, "ERROR"},
		{"grade-0", []Prediction{{"grade-0", 0.3}, {"grade-1", 0.1}}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BestLabel(tt.preds); got != tt.want {
				t.Errorf("BestLabel = %q, want %q", got, tt.want)
			}
		})
	}
}
