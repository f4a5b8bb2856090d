// Package pool provides a fixed-size worker pool with a FIFO wait queue.
//
// A Pool is a counting semaphore: at most Size tasks hold a slot at any time and
// waiters are admitted in the order they asked for a slot.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

// MaxSize is the largest accepted pool size (2^53-1).
const MaxSize = 1<<53 - 1

// ErrInvalidSize is returned by New for sizes outside [1, MaxSize].
var ErrInvalidSize = errors.New("pool size must be a positive safe integer")

var (
	poolInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "appliance_pool_in_flight",
		Help: "Tasks currently holding a worker pool slot",
	}, []string{"pool"})

	poolWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "appliance_pool_wait_seconds",
		Help:    "Time spent waiting for a worker pool slot",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	}, []string{"pool"})
)

// Pool bounds concurrent task execution.
type Pool struct {
	name     string
	size     int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// New creates a pool with the given number of slots. The name labels metrics.
func New(name string, size int) (*Pool, error) {
	if size < 1 || int64(size) > MaxSize {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidSize, size)
	}
	return &Pool{
		name: name,
		size: int64(size),
		sem:  semaphore.NewWeighted(int64(size)),
	}, nil
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return int(p.size)
}

// InFlight returns the number of occupied slots.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Acquire blocks until a slot is free or ctx is done. A cancelled ctx never
// yields a slot, even when one is available.
func (p *Pool) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		p.sem.Release(1)
		return err
	}
	poolWaitSeconds.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	p.inFlight.Add(1)
	poolInFlight.WithLabelValues(p.name).Inc()
	return nil
}

// Release frees a slot obtained by Acquire.
func (p *Pool) Release() {
	p.inFlight.Add(-1)
	poolInFlight.WithLabelValues(p.name).Dec()
	p.sem.Release(1)
}

// Do runs fn in the calling goroutine once a slot is available.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn()
}
