package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lakeprobe/lakeprobe/pkg/metrics"
	"github.com/lakeprobe/lakeprobe/pkg/wait"
)

// Expectation describes one source change awaited downstream.
type Expectation struct {
	// Key identifies the changed row by its natural key.
	Key any
	// Fields are the non-key column values the matched row must carry.
	Fields map[string]any
	Schema string
	Table  string
	// KeyField is the column holding the natural key, eg email.
	KeyField string
	// Operation labels reports and metrics (insert, update, delete).
	Operation string
	// Absent inverts the contract: poll until no match remains. Used after
	// DELETE, where propagation is complete once the row is gone downstream.
	Absent bool
}

func (e Expectation) query() Query {
	return Query{Schema: e.Schema, Table: e.Table, Field: e.KeyField, Value: e.Key}
}

func (e Expectation) scope() Scope {
	return Scope{Schema: e.Schema, Table: e.Table}
}

// TargetReport is the outcome of polling a single target.
type TargetReport struct {
	// Err is the last probe error observed, kept even on Found for diagnostics.
	Err        error
	Target     string
	Mismatches []string
	Outcome    wait.Outcome
	// Matches is how many rows/documents the final lookup returned.
	Matches  int
	Attempts int
	Elapsed  time.Duration
}

// OK reports propagation verified with no field mismatches.
func (r TargetReport) OK() bool {
	return r.Outcome == wait.Found && len(r.Mismatches) == 0
}

// Report aggregates per-target outcomes for one expectation.
type Report struct {
	Key       any
	Table     string
	Operation string
	Targets   []TargetReport
}

// OK reports whether every target verified.
func (r Report) OK() bool {
	for _, tr := range r.Targets {
		if !tr.OK() {
			return false
		}
	}
	return len(r.Targets) > 0
}

// Failed returns the reports of targets that did not verify.
func (r Report) Failed() []TargetReport {
	var out []TargetReport
	for _, tr := range r.Targets {
		if !tr.OK() {
			out = append(out, tr)
		}
	}
	return out
}

// Verifier polls a set of targets until an expected change is visible on each
// of them, or its deadline elapses.
type Verifier struct {
	manager  *Manager
	logger   *zap.Logger
	baseline map[string]int64
	cfg      wait.Config
}

// NewVerifier returns a Verifier polling at cfg pacing. Zero cfg fields fall
// back to the wait defaults.
func NewVerifier(m *Manager, cfg wait.Config) *Verifier {
	logger, _ := zap.NewProduction()

	return &Verifier{
		manager:  m,
		cfg:      cfg,
		logger:   logger,
		baseline: map[string]int64{},
	}
}

// SnapshotBaselines records the current count on every count-only target, so
// that later growth is attributable to changes seeded after the snapshot.
// Count-only surfaces (catalog commit logs, warehouse object listings) cannot
// answer keyed lookups; what they can show is that the sink moved.
func (v *Verifier) SnapshotBaselines(ctx context.Context, targets []Target, s Scope) {
	for _, t := range targets {
		prober := t.Prober()
		if prober == nil || prober.Kind().CanLookup() || !prober.Kind().CanCount() {
			continue
		}
		n, err := prober.Count(ctx, s)
		if err != nil {
			v.logger.Warn("Baseline count failed",
				zap.String("target", t.Name),
				zap.Error(err))
			continue
		}
		v.baseline[t.Name] = n
		v.logger.Debug("Baseline recorded",
			zap.String("target", t.Name),
			zap.Int64("count", n))
	}
}

// Verify runs one poller per target and blocks until all finish. Targets are
// polled concurrently; each goroutine writes only its own slot of the result
// slice and probers share no mutable state across targets. Within a target,
// attempts are strictly sequential.
func (v *Verifier) Verify(ctx context.Context, exp Expectation, targets []Target) Report {
	reports := make([]TargetReport, len(targets))

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			reports[i] = v.verifyTarget(ctx, exp, t)
		}(i, t)
	}
	wg.Wait()

	return Report{Key: exp.Key, Table: exp.Table, Operation: exp.Operation, Targets: reports}
}

func (v *Verifier) verifyTarget(ctx context.Context, exp Expectation, t Target) TargetReport {
	prober := t.Prober()
	if prober == nil {
		return TargetReport{
			Target:  t.Name,
			Outcome: wait.NotFound,
			Err:     fmt.Errorf("prober %s not registered", t.ProberName),
		}
	}

	var res wait.Result
	var matches []Match

	switch {
	case prober.Kind().CanLookup():
		res = wait.Poll(ctx, v.cfg, func(ctx context.Context) (any, bool, error) {
			metrics.ProbeAttempts.WithLabelValues(t.Name).Inc()
			found, err := prober.Lookup(ctx, exp.query())
			if err != nil {
				metrics.ProbeErrors.WithLabelValues(t.Name).Inc()
				return nil, false, err
			}
			if exp.Absent {
				return nil, len(found) == 0, nil
			}
			if len(found) == 0 {
				return nil, false, nil
			}
			return found, true, nil
		})
		if res.Outcome == wait.Found && !exp.Absent {
			matches = res.Value.([]Match)
		}
	case prober.Kind().CanCount():
		// Growth over the baseline is valid evidence for deletes too: sinks
		// commit delete files and new catalog entries, they do not shrink.
		base := v.baseline[t.Name]
		res = wait.Poll(ctx, v.cfg, func(ctx context.Context) (any, bool, error) {
			metrics.ProbeAttempts.WithLabelValues(t.Name).Inc()
			n, err := prober.Count(ctx, exp.scope())
			if err != nil {
				metrics.ProbeErrors.WithLabelValues(t.Name).Inc()
				return nil, false, err
			}
			return n, n > base, nil
		})
	default:
		return TargetReport{Target: t.Name, Outcome: wait.NotFound, Err: ErrUnsupported}
	}

	report := TargetReport{
		Target:   t.Name,
		Outcome:  res.Outcome,
		Attempts: res.Attempts,
		Elapsed:  res.Elapsed,
		Err:      res.LastErr,
		Matches:  len(matches),
	}

	if res.Outcome == wait.Found {
		metrics.PropagationSeconds.WithLabelValues(t.Name, exp.Operation).Observe(res.Elapsed.Seconds())
		report.Mismatches = diff(exp, matches)
		v.logger.Info("Change visible on target",
			zap.String("target", t.Name),
			zap.Any("key", exp.Key),
			zap.Int("attempts", res.Attempts),
			zap.Duration("elapsed", res.Elapsed),
			zap.Strings("mismatches", report.Mismatches))
	} else {
		v.logger.Warn("Change not visible on target",
			zap.String("target", t.Name),
			zap.Any("key", exp.Key),
			zap.String("outcome", res.Outcome.String()),
			zap.Int("attempts", res.Attempts),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(res.LastErr))
	}

	return report
}

// diff compares expected non-key fields against the first match and flags the
// multi-match case: a lookup keyed on a unique field must return exactly one
// row.
func diff(exp Expectation, matches []Match) []string {
	if exp.Absent || len(matches) == 0 {
		return nil
	}

	var out []string
	if len(matches) > 1 {
		out = append(out, fmt.Sprintf("expected exactly one match for key %v, got %d", exp.Key, len(matches)))
	}

	fields := make([]string, 0, len(exp.Fields))
	for f := range exp.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	m := matches[0]
	for _, f := range fields {
		want := exp.Fields[f]
		if got := m.Field(f); !fieldEqual(want, got) {
			out = append(out, fmt.Sprintf("field %s: want %v, got %v", f, want, got))
		}
	}
	return out
}

func fieldEqual(want, got any) bool {
	if reflect.DeepEqual(want, got) {
		return true
	}
	// values cross JSON and driver boundaries, so 30 may come back as
	// float64(30) or "30"; fall back to normalized string form
	return fmt.Sprint(want) == fmt.Sprint(got)
}
