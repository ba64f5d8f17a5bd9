package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket that refills continuously at RequestsPerSecond
// and holds at most RequestsPerSecond tokens, allowing short bursts.
type Limiter struct {
	bucket *rate.Limiter
	rps    float64
}

// New builds a limiter for the given sustained rate. The burst equals the
// rate rounded up, with a floor of one token.
func New(requestsPerSecond float64) (*Limiter, error) {
	if requestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be > 0, got %v", requestsPerSecond)
	}
	burst := int(requestsPerSecond)
	if float64(burst) < requestsPerSecond {
		burst++
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		rps:    requestsPerSecond,
	}, nil
}

// Acquire takes one token, sleeping until one is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.bucket.Wait(ctx)
}

// RequestsPerSecond returns the configured sustained rate.
func (l *Limiter) RequestsPerSecond() float64 {
	return l.rps
}
