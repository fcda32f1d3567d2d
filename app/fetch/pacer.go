package fetch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces successive requests of a single crawl or feed walk. The first
// Wait returns immediately.
type Pacer struct {
	limiter *rate.Limiter
}

func NewPacer(delay time.Duration) *Pacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
