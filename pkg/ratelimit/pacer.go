package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spaces out requests with a token bucket. A nil Pacer never waits.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer allowing reqPerSec requests per second with the given burst.
// Returns nil (no pacing) when reqPerSec <= 0.
func NewPacer(reqPerSec float64, burst int) *Pacer {
	if reqPerSec <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(reqPerSec), burst)}
}

// Wait blocks until the next request may be sent or ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
