package classify

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Paced spaces calls to the wrapped classifier at least interval apart,
// across every caller sharing it.
type Paced struct {
	next    Classifier
	limiter *rate.Limiter
}

// NewPaced wraps next. A non-positive interval disables pacing.
func NewPaced(next Classifier, interval time.Duration) *Paced {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Paced{next: next, limiter: rate.NewLimiter(limit, 1)}
}

func (p *Paced) Classify(ctx context.Context, modelURI, text string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return p.next.Classify(ctx, modelURI, text)
}
