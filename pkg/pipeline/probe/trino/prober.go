// Package trino probes lakehouse tables through a Trino coordinator. The
// Iceberg sink materializes each change topic as a table under the
// configured catalog, named after the source schema and table, so rows
// become queryable once the sink commits them.
package trino

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
	"github.com/lakeprobe/lakeprobe/pkg/util"
)

// Config represents Trino-specific configuration
type Config struct {
	URL     string `json:"url"`
	User    string `json:"user,omitempty"`
	Catalog string `json:"catalog,omitempty"`
}

// Prober runs keyed SELECTs and counts against lakehouse tables.
type Prober struct {
	client *Client
	config *Config
}

func (p *Prober) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if config != nil {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to parse Trino config: %w", err)
		}
	}

	// Set values from environment variables or use defaults
	if cfg.URL == "" {
		cfg.URL = util.GetEnvOrDefault("LAKEPROBE_TRINO_URL", "http://localhost:8080")
	}
	if cfg.User == "" {
		cfg.User = "lakeprobe"
	}
	if cfg.Catalog == "" {
		cfg.Catalog = "iceberg"
	}

	p.client = &Client{BaseURL: strings.TrimRight(cfg.URL, "/"), User: cfg.User, Catalog: cfg.Catalog}
	p.config = &cfg
	return nil
}

// Lookup selects the row by key. A table the sink has not created yet
// reads as empty rather than failing the probe.
func (p *Prober) Lookup(ctx context.Context, q pipeline.Query) ([]pipeline.Match, error) {
	if p.client == nil {
		return nil, fmt.Errorf("trino prober not connected")
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		p.tableRef(q.Schema, q.Table), quoteIdent(q.Field), quoteLiteral(q.Value))
	result, err := p.client.Query(ctx, sql)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var matches []pipeline.Match
	for _, row := range result.Rows {
		fields := make(map[string]any, len(result.Columns))
		for i, col := range result.Columns {
			if i < len(row) {
				fields[col] = row[i]
			}
		}
		raw, _ := json.Marshal(fields)
		matches = append(matches, pipeline.Match{Fields: fields, Raw: raw})
	}
	return matches, nil
}

// Count reports the table's row count.
func (p *Prober) Count(ctx context.Context, s pipeline.Scope) (int64, error) {
	if p.client == nil {
		return 0, fmt.Errorf("trino prober not connected")
	}

	sql := fmt.Sprintf("SELECT count(*) FROM %s", p.tableRef(s.Schema, s.Table))
	result, err := p.client.Query(ctx, sql)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0, fmt.Errorf("count returned no rows")
	}

	switch n := result.Rows[0][0].(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", result.Rows[0][0])
	}
}

func (p *Prober) Kind() pipeline.ProberKind {
	return pipeline.ProberKindLookupCount
}

func (p *Prober) Disconnect() error {
	return nil
}

func (p *Prober) tableRef(schema, table string) string {
	return fmt.Sprintf("%s.%s.%s", quoteIdent(p.config.Catalog), quoteIdent(schema), quoteIdent(table))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(val)
	}
}

func isNotFound(err error) bool {
	var qe *QueryError
	if !errors.As(err, &qe) {
		return false
	}
	switch qe.Name {
	case "TABLE_NOT_FOUND", "SCHEMA_NOT_FOUND", "CATALOG_NOT_FOUND":
		return true
	}
	return false
}

func init() {
	pipeline.RegisterProber(pipeline.ProberTrino, &Prober{})
}
