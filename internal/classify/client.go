package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/metrics"
)

// Doer is the subset of *http.Client the client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config for the classification client.
type Config struct {
	Endpoint   string        // default common.DefaultEndpoint
	APIKey     string        // sent as "Api-Key <key>"
	Timeout    time.Duration // per attempt
	Retry      RetryPolicy
	HTTPClient Doer
}

type Client struct {
	cfg  Config
	http Doer
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = common.DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, log: logger}
}

type classifyRequest struct {
	ModelURI string `json:"modelUri"`
	Text     string `json:"text"`
}

type classifyResponse struct {
	Predictions []Prediction `json:"predictions"`
}

var errRateLimited = errors.New("rate limited")

// Classify implements Classifier against the textClassification endpoint.
func (c *Client) Classify(ctx context.Context, modelURI, text string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", &ConfigurationError{Reason: "YANDEX_API_KEY is not configured"}
	}
	if strings.TrimSpace(modelURI) == "" {
		return "", &ConfigurationError{Reason: "model URI is not configured for this question"}
	}

	rid := uuid.New().String()
	logAttrs := append([]any{"req_id", rid, "model", modelURI}, common.LogAttrs(ctx)...)
	backoff := c.cfg.Retry.Backoff()

	for attempt := 1; ; attempt++ {
		label, err := c.attempt(ctx, modelURI, text, logAttrs)
		if !errors.Is(err, errRateLimited) {
			return label, err
		}
		delay, stop := backoff.Next()
		if stop {
			c.log.Warn("classify.rate_limit.exhausted", append(logAttrs, "attempts", attempt)...)
			return "", &RateLimitError{Attempts: attempt}
		}
		metrics.ClassifierRetries.Inc()
		c.log.Warn("classify.rate_limit.retry", append(logAttrs, "attempt", attempt, "delay", delay)...)
		if err := c.cfg.Retry.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (c *Client) attempt(ctx context.Context, modelURI, text string, logAttrs []any) (string, error) {
	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	raw, status, err := c.post(actx, classifyRequest{ModelURI: modelURI, Text: text})
	metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		if ctx.Err() != nil {
			// the caller gave up; not a remote failure
			return "", ctx.Err()
		}
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			metrics.ClassifierRequests.WithLabelValues("timeout").Inc()
			c.log.Error("classify.http.timeout", append(logAttrs, "error", err, "elapsed_ms", elapsed)...)
			return "", &TimeoutError{Cause: err}
		}
		metrics.ClassifierRequests.WithLabelValues("connection_error").Inc()
		c.log.Error("classify.http.send_error", append(logAttrs, "error", err, "elapsed_ms", elapsed)...)
		return "", &ConnectionError{Cause: err}
	}

	c.log.Debug("classify.http.response", append(logAttrs, "status", status, "bytes", len(raw), "elapsed_ms", elapsed)...)

	switch {
	case status == http.StatusTooManyRequests:
		metrics.ClassifierRequests.WithLabelValues("rate_limited").Inc()
		return "", errRateLimited
	case status/100 != 2:
		metrics.ClassifierRequests.WithLabelValues("remote_error").Inc()
		c.log.Error("classify.http.status", append(logAttrs, "status", status, "body", string(raw))...)
		return "", &RemoteError{Status: status, Body: string(raw)}
	}

	if err := validateResponse(raw); err != nil {
		metrics.ClassifierRequests.WithLabelValues("invalid_response").Inc()
		c.log.Error("classify.decode_error", append(logAttrs, "error", err, "raw_bytes", len(raw))...)
		return "", &ResponseError{Cause: err}
	}
	var resp classifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		metrics.ClassifierRequests.WithLabelValues("invalid_response").Inc()
		return "", &ResponseError{Cause: err}
	}

	metrics.ClassifierRequests.WithLabelValues("ok").Inc()
	label := BestLabel(resp.Predictions)
	c.log.Info("classify.ok", append(logAttrs, "label", label, "predictions", len(resp.Predictions), "elapsed_ms", elapsed)...)
	return label, nil
}

func (c *Client) post(ctx context.Context, body classifyRequest) ([]byte, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Api-Key "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("classify response body close error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

// BestLabel picks the most confident prediction (first one wins a tie) and
// maps it to a grade. No predictions yields constants.ErrorLabel.
func BestLabel(preds []Prediction) string {
	if len(preds) == 0 {
		return constants.ErrorLabel
	}
	best := preds[0]
	for _, p := range preds[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	if best.Label == "" {
		return constants.ErrorLabel
	}
	return constants.CanonicalizeLabel(best.Label)
}
