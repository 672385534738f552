package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
)

func TestLookupSQL(t *testing.T) {
	q := pipeline.Query{Schema: "public", Table: "users", Field: "email", Value: "a@x.com"}
	assert.Equal(t, `SELECT * FROM "public"."users" WHERE "email" = $1`, lookupSQL(q))

	// identifiers are sanitized, not interpolated
	q = pipeline.Query{Schema: "public", Table: `users"; DROP TABLE x; --`, Field: "id"}
	assert.Equal(t, `SELECT * FROM "public"."users""; DROP TABLE x; --" WHERE "id" = $1`, lookupSQL(q))
}

func TestCountSQL(t *testing.T) {
	s := pipeline.Scope{Schema: "public", Table: "users"}
	assert.Equal(t, `SELECT count(*) FROM "public"."users"`, countSQL(s))
}

// TestProberIntegration exercises the prober against a running database.
// Set TEST_DATABASE to enable it.
func TestProberIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE")
	if dsn == "" {
		t.Skip("TEST_DATABASE not set")
	}

	p := &Prober{}
	cfg := fmt.Sprintf(`{"connString":%q}`, dsn)
	require.NoError(t, p.Connect(json.RawMessage(cfg)))
	defer p.Disconnect()

	ctx := context.Background()
	_, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS probe_smoke (id int PRIMARY KEY, email text)`)
	require.NoError(t, err)
	t.Cleanup(func() {
		p.pool.Exec(context.Background(), `DROP TABLE IF EXISTS probe_smoke`)
	})
	_, err = p.pool.Exec(ctx, `INSERT INTO probe_smoke (id, email) VALUES (1, 'it@x.com') ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)

	t.Run("keyed lookup", func(t *testing.T) {
		matches, err := p.Lookup(ctx, pipeline.Query{
			Schema: "public",
			Table:  "probe_smoke",
			Field:  "email",
			Value:  "it@x.com",
		})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "it@x.com", matches[0].Fields["email"])
	})

	t.Run("missing row", func(t *testing.T) {
		matches, err := p.Lookup(ctx, pipeline.Query{
			Schema: "public",
			Table:  "probe_smoke",
			Field:  "email",
			Value:  "nobody@x.com",
		})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("count", func(t *testing.T) {
		n, err := p.Count(ctx, pipeline.Scope{Schema: "public", Table: "probe_smoke"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))
	})

	t.Run("replication health", func(t *testing.T) {
		slots, err := p.ReplicationSlots(ctx)
		require.NoError(t, err)
		for _, s := range slots {
			assert.NotEmpty(t, s.Name)
		}

		_, err = p.Publications(ctx)
		require.NoError(t, err)
	})
}
