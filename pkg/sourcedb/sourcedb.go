// Package sourcedb writes rows into the watched source tables. Every write
// made here is a change the downstream stores must eventually reflect, so
// the statements stay plain single-row DML that maps one-to-one onto change
// events.
package sourcedb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Conn is the slice of a pgx connection the writers need. Both *pgx.Conn
// and *pgxpool.Pool satisfy it.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queryBuilder struct {
	schema    string
	table     string
	values    []any
	nextIndex int
}

func newQueryBuilder(tableName string, schema ...string) *queryBuilder {
	schemaName := "public"
	if len(schema) > 0 && schema[0] != "" {
		schemaName = schema[0]
	}
	return &queryBuilder{
		schema:    schemaName,
		table:     tableName,
		nextIndex: 1,
	}
}

func (qb *queryBuilder) placeholder(value any) string {
	qb.values = append(qb.values, value)
	placeholder := fmt.Sprintf("$%d", qb.nextIndex)
	qb.nextIndex++
	return placeholder
}

func (qb *queryBuilder) tableIdentifier() string {
	return pgx.Identifier{qb.schema, qb.table}.Sanitize()
}

// sortedKeys fixes column order so generated SQL is stable across runs.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InsertRow inserts a new record into the specified table using the provided data.
func InsertRow(ctx context.Context, conn Conn, tableName string, data map[string]any, schema ...string) error {
	if len(data) == 0 {
		return fmt.Errorf("no columns provided")
	}
	qb := newQueryBuilder(tableName, schema...)

	var columns, placeholders []string
	for _, key := range sortedKeys(data) {
		columns = append(columns, pgx.Identifier{key}.Sanitize())
		placeholders = append(placeholders, qb.placeholder(data[key]))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		qb.tableIdentifier(),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := conn.Exec(ctx, query, qb.values...); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// InsertRowReturning inserts a record and scans the named column of the new
// row, typically a generated primary key.
func InsertRowReturning(ctx context.Context, conn Conn, tableName string, data map[string]any, returning string, schema ...string) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no columns provided")
	}
	qb := newQueryBuilder(tableName, schema...)

	var columns, placeholders []string
	for _, key := range sortedKeys(data) {
		columns = append(columns, pgx.Identifier{key}.Sanitize())
		placeholders = append(placeholders, qb.placeholder(data[key]))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		qb.tableIdentifier(),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		pgx.Identifier{returning}.Sanitize(),
	)

	var value any
	if err := conn.QueryRow(ctx, query, qb.values...).Scan(&value); err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	return value, nil
}

// UpdateRow updates an existing record in the specified table using the provided data.
func UpdateRow(ctx context.Context, conn Conn, tableName string, data map[string]any, where map[string]any, schema ...string) error {
	if len(data) == 0 {
		return fmt.Errorf("no columns provided")
	}
	if len(where) == 0 {
		return fmt.Errorf("no WHERE conditions provided")
	}
	qb := newQueryBuilder(tableName, schema...)

	var setClauses, whereClauses []string
	for _, key := range sortedKeys(data) {
		setClauses = append(setClauses, fmt.Sprintf("%s = %s",
			pgx.Identifier{key}.Sanitize(),
			qb.placeholder(data[key])))
	}
	for _, key := range sortedKeys(where) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = %s",
			pgx.Identifier{key}.Sanitize(),
			qb.placeholder(where[key])))
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s",
		qb.tableIdentifier(),
		strings.Join(setClauses, ", "),
		strings.Join(whereClauses, " AND "),
	)

	result, err := conn.Exec(ctx, query, qb.values...)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no rows were updated")
	}
	return nil
}

// EnsureReplicaIdentityFull makes the table emit full row images on update
// and delete. Change events for those operations carry only the replica
// identity columns, so without this a delete event would hold nothing but
// the primary key and downstream lookups on any other field would miss it.
// Safe to repeat; altering to the current identity is a no-op.
func EnsureReplicaIdentityFull(ctx context.Context, conn Conn, tableName string, schema ...string) error {
	qb := newQueryBuilder(tableName, schema...)
	query := fmt.Sprintf("ALTER TABLE %s REPLICA IDENTITY FULL", qb.tableIdentifier())
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to set replica identity on %s: %w", qb.tableIdentifier(), err)
	}
	return nil
}

// DeleteRow deletes records matching the WHERE conditions.
func DeleteRow(ctx context.Context, conn Conn, tableName string, where map[string]any, schema ...string) error {
	if len(where) == 0 {
		return fmt.Errorf("no WHERE conditions provided")
	}
	qb := newQueryBuilder(tableName, schema...)

	var whereClauses []string
	for _, key := range sortedKeys(where) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = %s",
			pgx.Identifier{key}.Sanitize(),
			qb.placeholder(where[key])))
	}

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE %s",
		qb.tableIdentifier(),
		strings.Join(whereClauses, " AND "),
	)

	result, err := conn.Exec(ctx, query, qb.values...)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no rows were deleted")
	}
	return nil
}
