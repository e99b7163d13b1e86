// Package ratelimit implements the crawler-policy admission gate for
// registry requests: successive requests are spaced by a minimum interval
// and at most one request is in flight per limiter instance.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Prometheus metrics for admission control.
var (
	admissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crates_ratelimit_admissions_total",
		Help: "Total requests admitted by the rate limiter",
	})

	inFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crates_ratelimit_in_flight",
		Help: "Requests currently holding a rate limiter admission (0 or 1)",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crates_ratelimit_wait_seconds",
		Help:    "Time spent waiting for admission",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
	})
)

// DefaultMinInterval follows the crates.io crawler guideline of at most one
// request per second.
const DefaultMinInterval = time.Second

// Limiter serializes outbound requests for a single client instance.
//
// Admission is granted only when no other admitted request is still active
// and at least the configured minimum interval has elapsed since the
// previous admission. Waiters are served in FIFO order. A zero interval is a
// deliberate opt-out of pacing; the single in-flight guarantee still holds.
type Limiter struct {
	slot   *semaphore.Weighted
	pace   *rate.Limiter
	logger zerolog.Logger

	mu        sync.Mutex
	lastAdmit time.Time
	inFlight  int
}

// New creates a limiter that admits at most one request per minInterval.
func New(minInterval time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{
		slot:   semaphore.NewWeighted(1),
		pace:   rate.NewLimiter(rate.Every(minInterval), 1),
		logger: logger,
	}
}

// Admit blocks until the caller may issue a request. On success the caller
// holds the single in-flight slot and must call Release exactly once after
// the request completes, whether it succeeded or failed.
//
// Admit fails only when ctx is cancelled during the wait.
func (l *Limiter) Admit(ctx context.Context) error {
	start := time.Now()

	if err := l.slot.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire request slot: %w", err)
	}

	if err := l.pace.Wait(ctx); err != nil {
		l.slot.Release(1)
		return fmt.Errorf("wait for request interval: %w", err)
	}

	now := time.Now()
	l.mu.Lock()
	l.lastAdmit = now
	l.inFlight++
	l.mu.Unlock()

	waited := now.Sub(start)
	waitSeconds.Observe(waited.Seconds())
	admissionsTotal.Inc()
	inFlightGauge.Inc()

	if waited > 10*time.Millisecond {
		l.logger.Debug().
			Dur("waited", waited).
			Msg("Request admitted after wait")
	}

	return nil
}

// Release returns the in-flight slot. Must be paired with a successful Admit.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.inFlight--
	l.mu.Unlock()

	inFlightGauge.Dec()
	l.slot.Release(1)
}

// InFlight reports the number of admitted requests that have not yet been
// released. For a correctly used limiter this is always 0 or 1.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// LastAdmit returns the timestamp of the most recent admission, or the zero
// time if no request was admitted yet.
func (l *Limiter) LastAdmit() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastAdmit
}
