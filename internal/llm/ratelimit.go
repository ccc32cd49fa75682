package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"newspulse/internal/logger"
	"newspulse/internal/metrics"
)

// ErrRetriesExhausted is returned when every attempt hit the remote rate
// limit.
var ErrRetriesExhausted = errors.New("llm: request failed after retries")

// minBackoff is the smallest sleep after a remote throttling response.
const minBackoff = time.Second

// RateLimited enforces a local sliding request-rate window in front of a
// Generator and recovers from remote throttling with bounded retries. The
// window state is shared by all callers and guarded by a single lock around
// the read-check-increment sequence.
type RateLimited struct {
	gen        Generator
	limit      int
	window     time.Duration
	maxRetries int

	mu          sync.Mutex
	windowStart time.Time
	count       int

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewRateLimited wraps gen with a sliding window of limit requests per
// window, retrying up to maxRetries times on remote throttling.
func NewRateLimited(gen Generator, limit int, window time.Duration, maxRetries int) *RateLimited {
	return &RateLimited{
		gen:        gen,
		limit:      limit,
		window:     window,
		maxRetries: maxRetries,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Generate passes the local rate gate, then calls the underlying generator.
// A remote throttling response sleeps at least minBackoff, resets the local
// window and retries. Any other failure is returned immediately. Exhausting
// all retries returns ErrRetriesExhausted.
func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		r.acquire()

		out, err := r.gen.Generate(ctx, prompt)
		if err == nil {
			metrics.LLMCalls.WithLabelValues("ok").Inc()
			return out, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			metrics.LLMCalls.WithLabelValues("error").Inc()
			return "", err
		}

		metrics.LLMCalls.WithLabelValues("rate_limited").Inc()
		r.backoff(attempt)
	}
	return "", ErrRetriesExhausted
}

// acquire performs the read-check-increment on the shared window state,
// sleeping out the remainder of the window when the budget is spent.
func (r *RateLimited) acquire() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
		logger.Debug("resetting local rate-limit window")
		r.windowStart = now
		r.count = 0
	}
	if r.count >= r.limit {
		sleepFor := r.window - now.Sub(r.windowStart)
		logger.Info("local rate limit reached, sleeping", "count", r.count, "sleep", sleepFor.String())
		metrics.LLMRateLimitSleeps.Inc()
		r.sleep(sleepFor)
		r.windowStart = r.now()
		r.count = 0
	}
	r.count++
}

// backoff handles a remote throttling response: sleep at least minBackoff
// (or the remaining window, whichever is longer) and reset the window.
func (r *RateLimited) backoff(attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := r.window - r.now().Sub(r.windowStart)
	if remaining < minBackoff {
		remaining = minBackoff
	}
	logger.Warn("remote endpoint throttled request, backing off",
		"sleep", remaining.String(), "attempt", attempt+1, "max_retries", r.maxRetries)
	metrics.LLMRateLimitSleeps.Inc()
	r.sleep(remaining)
	r.windowStart = r.now()
	r.count = 0
}
