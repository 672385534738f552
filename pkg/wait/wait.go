// Package wait implements the fixed-interval polling loop used to observe
// eventually consistent downstream surfaces. A caller supplies a probe that
// reads the surface once; Poll repeats it until the data is visible or the
// deadline elapses. "Not visible within the deadline" is a normal outcome,
// not an error: propagation lag is the thing under test.
package wait

import (
	"cmp"
	"context"
	"time"
)

// Outcome classifies how a poll loop ended.
type Outcome int

const (
	// Found means a probe reported a match before the deadline.
	Found Outcome = iota
	// NotFound means the deadline elapsed without a match.
	NotFound
	// Aborted means the caller's context was canceled between attempts.
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Probe executes one read against a downstream surface. found reports whether
// the awaited data is visible; value carries whatever the caller wants back
// (a row, a document, a count). Probe errors are transient by contract: a
// missing table, index or topic is part of the normal cold-start sequence and
// must not abort the loop.
type Probe func(ctx context.Context) (value any, found bool, err error)

// Default pacing, tuned for CDC propagation through Kafka Connect sinks:
// commit intervals are measured in seconds, cold starts in tens of seconds.
const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 90 * time.Second
)

// Config controls poll pacing. Zero values fall back to the defaults.
type Config struct {
	// Interval between attempts. Fixed, no backoff: the wait is dominated by
	// sink commit cadence, not by load on the probed system.
	Interval time.Duration
	// Timeout is the total budget, measured from the first attempt.
	Timeout time.Duration
}

// Result is the tagged outcome of a poll loop.
type Result struct {
	// Value is whatever the successful probe returned. Nil unless Outcome is Found.
	Value any
	// LastErr is the most recent probe error, kept for diagnostics. A NotFound
	// result with a non-nil LastErr usually means the surface never came up.
	LastErr  error
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
}

// Found reports whether the probe succeeded before the deadline.
func (r Result) Found() bool { return r.Outcome == Found }

// Poll runs probe at a fixed interval until it reports found, the timeout
// elapses, or ctx is canceled. The first attempt fires immediately.
//
// The deadline is only checked between attempts; an in-flight probe is never
// interrupted, so the loop can overrun the timeout by up to one attempt plus
// one interval, and never returns NotFound before the timeout has elapsed.
func Poll(ctx context.Context, cfg Config, probe Probe) Result {
	interval := cmp.Or(cfg.Interval, DefaultInterval)
	timeout := cmp.Or(cfg.Timeout, DefaultTimeout)

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var res Result
	for {
		res.Attempts++
		value, found, err := probe(ctx)
		if err != nil {
			res.LastErr = err
		}
		if found {
			res.Value = value
			res.Outcome = Found
			res.Elapsed = time.Since(start)
			return res
		}

		if time.Since(start) >= timeout {
			res.Outcome = NotFound
			res.Elapsed = time.Since(start)
			return res
		}

		select {
		case <-ctx.Done():
			res.Outcome = Aborted
			if res.LastErr == nil {
				res.LastErr = ctx.Err()
			}
			res.Elapsed = time.Since(start)
			return res
		case <-ticker.C:
		}
	}
}

// Until is Poll for condition-style probes that carry no value.
func Until(ctx context.Context, cfg Config, cond func(ctx context.Context) (bool, error)) Result {
	return Poll(ctx, cfg, func(ctx context.Context) (any, bool, error) {
		ok, err := cond(ctx)
		return nil, ok, err
	})
}
