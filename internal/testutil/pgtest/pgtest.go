// Package pgtest provides PostgreSQL helpers for integration tests. Tests
// that use it run only when TEST_DATABASE points at a disposable database.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// Connect opens a connection to the TEST_DATABASE database, skipping the test
// when the variable is unset. The connection closes itself on test cleanup.
func Connect(ctx context.Context, t testing.TB) *pgx.Conn {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE")
	if dsn == "" {
		t.Skip("TEST_DATABASE not set")
	}

	config, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)

	config.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		t.Logf("PostgreSQL %s: %s", n.Severity, n.Message)
	}

	conn, err := pgx.ConnectConfig(ctx, config)
	require.NoError(t, err)

	t.Cleanup(func() {
		Close(t, conn)
	})

	return conn
}

// Close safely closes a database connection
func Close(t testing.TB, conn *pgx.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Close(ctx))
}

// CreateUsersTable creates a disposable table shaped like the demo users
// table, named uniquely so parallel runs against a shared database do not
// collide. The table is dropped on test cleanup.
func CreateUsersTable(ctx context.Context, t testing.TB, conn *pgx.Conn) string {
	t.Helper()

	table := fmt.Sprintf("users_%d", time.Now().UnixNano())
	_, err := conn.Exec(ctx, fmt.Sprintf(`CREATE TABLE %s (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name text NOT NULL,
		email text NOT NULL UNIQUE,
		age int NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	)`, pgx.Identifier{table}.Sanitize()))
	require.NoError(t, err)

	t.Cleanup(func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(dropCtx, "DROP TABLE IF EXISTS "+pgx.Identifier{table}.Sanitize())
	})

	return table
}
