// Package ratelimit paces outbound requests to a device.
//
// Appliance management planes are often shared with other tooling and degrade
// quickly under bursts. A Limiter spreads exchanges to at most a configured
// number per second on top of the loader's concurrency bound.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appliance_rate_limit_waits_total",
		Help: "Total number of requests delayed by the outbound rate limiter",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "appliance_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for a rate limiter token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Config holds limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the number of requests allowed at once. Defaults to 1.
	Burst int
}

// Limiter gates requests. A nil *Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter. It returns nil (unlimited) when RequestsPerSecond is zero.
func New(cfg Config) (*Limiter, error) {
	if cfg.RequestsPerSecond < 0 || math.IsNaN(cfg.RequestsPerSecond) || math.IsInf(cfg.RequestsPerSecond, 0) {
		return nil, fmt.Errorf("requests per second must be a finite non-negative number (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.RequestsPerSecond == 0 {
		return nil, nil
	}
	if cfg.Burst < 0 {
		return nil, fmt.Errorf("burst must be >= 0 (got %d)", cfg.Burst)
	}
	if cfg.Burst == 0 {
		cfg.Burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.limiter.Allow() {
		return nil
	}

	start := time.Now()
	rateLimitWaitsTotal.Inc()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}
