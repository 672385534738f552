package trino

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lakeprobe/lakeprobe/pkg/httputil"
)

// Client speaks the coordinator's statement protocol: POST the SQL to
// /v1/statement, then follow nextUri until the server stops handing one
// out, accumulating columns and data rows along the way.
type Client struct {
	BaseURL string
	User    string
	Catalog string
	Schema  string
}

// QueryError is a failure reported by the coordinator inside an otherwise
// successful protocol exchange.
type QueryError struct {
	Name    string `json:"errorName"`
	Type    string `json:"errorType"`
	Message string `json:"message"`
	Code    int    `json:"errorCode"`
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %s (%s)", e.Message, e.Name)
}

// Result holds the fully drained result set of one statement.
type Result struct {
	Columns []string
	Rows    [][]any
}

type column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type statementPage struct {
	ID      string   `json:"id"`
	NextURI string   `json:"nextUri"`
	Columns []column `json:"columns"`
	Data    [][]any  `json:"data"`
	Stats   struct {
		State string `json:"state"`
	} `json:"stats"`
	Error *QueryError `json:"error"`
}

// Query runs a statement and drains every page of its result set.
func (c *Client) Query(ctx context.Context, sql string) (*Result, error) {
	cfg := httputil.DefaultRequestConfig(http.MethodPost, c.BaseURL+"/v1/statement")
	cfg.Headers = c.headers()

	resp, err := httputil.Request(ctx, cfg, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to submit statement: %w", err)
	}

	var page statementPage
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}

	result := &Result{}
	for {
		if page.Error != nil {
			return nil, page.Error
		}
		if len(page.Columns) > 0 && result.Columns == nil {
			result.Columns = make([]string, len(page.Columns))
			for i, col := range page.Columns {
				result.Columns[i] = col.Name
			}
		}
		result.Rows = append(result.Rows, page.Data...)

		if page.NextURI == "" {
			return result, nil
		}

		next := httputil.DefaultRequestConfig(http.MethodGet, page.NextURI)
		next.Headers = c.headers()
		resp, err := httputil.Request(ctx, next, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch result page: %w", err)
		}
		page = statementPage{}
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
	}
}

func (c *Client) headers() map[string][]string {
	h := map[string][]string{
		"X-Trino-User": {c.User},
		"Content-Type": {"text/plain"},
	}
	if c.Catalog != "" {
		h["X-Trino-Catalog"] = []string{c.Catalog}
	}
	if c.Schema != "" {
		h["X-Trino-Schema"] = []string{c.Schema}
	}
	return h
}
