package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeprobe/lakeprobe/pkg/wait"
)

var errSurface = errors.New("surface unavailable")

// stubProber is an in-memory surface with programmable visibility.
type stubProber struct {
	rows []Match
	mu   sync.Mutex
	kind ProberKind
	// lookups return empty until this many attempts have happened
	visibleAfter int
	// lookups return empty again after this many attempts (delete propagation)
	goneAfter int
	// lookups fail with errSurface for the first N attempts
	errsBefore int
	never      bool
	lookups    int
	counts     int
	countStart int64
	// count grows by one from this count attempt on
	countGrowAt int
}

func (p *stubProber) Connect(config json.RawMessage, args ...any) error { return nil }

func (p *stubProber) Disconnect() error { return nil }

func (p *stubProber) Kind() ProberKind { return p.kind }

func (p *stubProber) Lookup(ctx context.Context, q Query) ([]Match, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.kind.CanLookup() {
		return nil, ErrUnsupported
	}
	p.lookups++
	switch {
	case p.lookups <= p.errsBefore:
		return nil, errSurface
	case p.never:
		return nil, nil
	case p.goneAfter > 0 && p.lookups > p.goneAfter:
		return nil, nil
	case p.lookups <= p.visibleAfter:
		return nil, nil
	}
	return p.rows, nil
}

func (p *stubProber) Count(ctx context.Context, s Scope) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.kind.CanCount() {
		return 0, ErrUnsupported
	}
	p.counts++
	if p.countGrowAt > 0 && p.counts >= p.countGrowAt {
		return p.countStart + 1, nil
	}
	return p.countStart, nil
}

func (p *stubProber) attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookups
}

func userRow(email, name string, age int) Match {
	return Match{Fields: map[string]any{"email": email, "name": name, "age": age}}
}

func fastCfg() wait.Config {
	return wait.Config{Interval: 5 * time.Millisecond, Timeout: 300 * time.Millisecond}
}

func TestVerify(t *testing.T) {
	exp := Expectation{
		Schema:    "public",
		Table:     "users",
		KeyField:  "email",
		Key:       "a@x.com",
		Fields:    map[string]any{"name": "A"},
		Operation: "insert",
	}

	t.Run("all targets converge", func(t *testing.T) {
		immediate := &stubProber{kind: ProberKindLookup, rows: []Match{userRow("a@x.com", "A", 30)}}
		lagging := &stubProber{kind: ProberKindLookup, rows: []Match{userRow("a@x.com", "A", 30)}, visibleAfter: 2}
		RegisterProber("stub-immediate", immediate)
		RegisterProber("stub-lagging", lagging)

		v := NewVerifier(NewManager(), fastCfg())
		report := v.Verify(context.Background(), exp, []Target{
			{Name: "cache", ProberName: "stub-immediate"},
			{Name: "index", ProberName: "stub-lagging"},
		})

		require.Len(t, report.Targets, 2)
		assert.True(t, report.OK())
		assert.Empty(t, report.Failed())

		for _, tr := range report.Targets {
			assert.Equal(t, wait.Found, tr.Outcome)
			assert.Equal(t, 1, tr.Matches)
			assert.Empty(t, tr.Mismatches)
		}
		assert.GreaterOrEqual(t, lagging.attempts(), 3, "lagging target should need several attempts")
	})

	t.Run("field mismatch is not a pass", func(t *testing.T) {
		drifted := &stubProber{kind: ProberKindLookup, rows: []Match{userRow("a@x.com", "B", 30)}}
		RegisterProber("stub-drifted", drifted)

		v := NewVerifier(NewManager(), fastCfg())
		report := v.Verify(context.Background(), exp, []Target{{Name: "index", ProberName: "stub-drifted"}})

		require.Len(t, report.Targets, 1)
		tr := report.Targets[0]
		assert.Equal(t, wait.Found, tr.Outcome, "row is visible")
		assert.False(t, tr.OK(), "but its fields drifted")
		require.Len(t, tr.Mismatches, 1)
		assert.Contains(t, tr.Mismatches[0], "name")
	})

	t.Run("more than one match flagged", func(t *testing.T) {
		dup := &stubProber{kind: ProberKindLookup, rows: []Match{
			userRow("a@x.com", "A", 30),
			userRow("a@x.com", "A", 31),
		}}
		RegisterProber("stub-dup", dup)

		v := NewVerifier(NewManager(), fastCfg())
		report := v.Verify(context.Background(), exp, []Target{{Name: "index", ProberName: "stub-dup"}})

		tr := report.Targets[0]
		assert.Equal(t, 2, tr.Matches)
		assert.False(t, tr.OK())
		require.NotEmpty(t, tr.Mismatches)
		assert.Contains(t, tr.Mismatches[0], "exactly one match")
	})

	t.Run("not visible within deadline", func(t *testing.T) {
		dark := &stubProber{kind: ProberKindLookup, never: true}
		RegisterProber("stub-dark", dark)

		cfg := wait.Config{Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond}
		v := NewVerifier(NewManager(), cfg)
		report := v.Verify(context.Background(), exp, []Target{{Name: "index", ProberName: "stub-dark"}})

		tr := report.Targets[0]
		assert.Equal(t, wait.NotFound, tr.Outcome)
		assert.False(t, report.OK())
		assert.GreaterOrEqual(t, tr.Attempts, 2)
		assert.GreaterOrEqual(t, tr.Elapsed, cfg.Timeout, "never reports NotFound early")
	})

	t.Run("transient errors swallowed", func(t *testing.T) {
		flaky := &stubProber{kind: ProberKindLookup, rows: []Match{userRow("a@x.com", "A", 30)}, errsBefore: 2}
		RegisterProber("stub-flaky", flaky)

		v := NewVerifier(NewManager(), fastCfg())
		report := v.Verify(context.Background(), exp, []Target{{Name: "index", ProberName: "stub-flaky"}})

		tr := report.Targets[0]
		assert.Equal(t, wait.Found, tr.Outcome)
		assert.True(t, tr.OK())
		require.ErrorIs(t, tr.Err, errSurface, "last transient error kept for diagnostics")
	})

	t.Run("absence after delete", func(t *testing.T) {
		emptying := &stubProber{kind: ProberKindLookup, rows: []Match{userRow("a@x.com", "A", 30)}, goneAfter: 2}
		RegisterProber("stub-emptying", emptying)

		gone := exp
		gone.Operation = "delete"
		gone.Absent = true

		v := NewVerifier(NewManager(), fastCfg())
		report := v.Verify(context.Background(), gone, []Target{{Name: "index", ProberName: "stub-emptying"}})

		tr := report.Targets[0]
		assert.Equal(t, wait.Found, tr.Outcome, "absence is the awaited state")
		assert.True(t, tr.OK())
		assert.Zero(t, tr.Matches)
	})

	t.Run("count target grows over baseline", func(t *testing.T) {
		ledger := &stubProber{kind: ProberKindCount, countStart: 7, countGrowAt: 3}
		RegisterProber("stub-ledger", ledger)

		targets := []Target{{Name: "catalog", ProberName: "stub-ledger"}}
		v := NewVerifier(NewManager(), fastCfg())
		v.SnapshotBaselines(context.Background(), targets, Scope{Schema: "public", Table: "users"})

		report := v.Verify(context.Background(), exp, targets)
		tr := report.Targets[0]
		assert.Equal(t, wait.Found, tr.Outcome)
		assert.True(t, tr.OK())
	})

	t.Run("unregistered prober", func(t *testing.T) {
		v := NewVerifier(NewManager(), fastCfg())
		report := v.Verify(context.Background(), exp, []Target{{Name: "index", ProberName: "no-such-prober"}})

		tr := report.Targets[0]
		assert.False(t, tr.OK())
		require.Error(t, tr.Err)
	})
}

func TestFieldEqual(t *testing.T) {
	tests := []struct {
		want  any
		got   any
		name  string
		equal bool
	}{
		{name: "identical strings", want: "A", got: "A", equal: true},
		{name: "int vs json float", want: 30, got: float64(30), equal: true},
		{name: "int vs driver string", want: 30, got: "30", equal: true},
		{name: "different values", want: "A", got: "B", equal: false},
		{name: "fraction preserved", want: 30.5, got: float64(30.5), equal: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, fieldEqual(tt.want, tt.got))
		})
	}
}
