// Package nessie probes a Nessie catalog's commit log. Every table commit
// the Iceberg sink makes lands as a commit on the configured branch, so a
// growing commit count is the catalog-side evidence that changes flowed
// through. Rows are not addressable here; this prober only counts.
package nessie

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lakeprobe/lakeprobe/pkg/httputil"
	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
	"github.com/lakeprobe/lakeprobe/pkg/util"
)

// Config represents Nessie-specific configuration
type Config struct {
	// URL is the API base, eg http://localhost:19120/api/v1.
	URL string `json:"url"`
	Ref string `json:"ref,omitempty"`
}

// Prober counts commits on a Nessie branch.
type Prober struct {
	config *Config
}

type commitMeta struct {
	Hash       string `json:"hash"`
	Committer  string `json:"committer"`
	Author     string `json:"author"`
	Message    string `json:"message"`
	CommitTime string `json:"commitTime"`
}

type logEntry struct {
	CommitMeta commitMeta `json:"commitMeta"`
}

type logPage struct {
	Token      string     `json:"token"`
	LogEntries []logEntry `json:"logEntries"`
	HasMore    bool       `json:"hasMore"`
}

type reference struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

func (p *Prober) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if config != nil {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to parse Nessie config: %w", err)
		}
	}

	// Set values from environment variables or use defaults
	if cfg.URL == "" {
		cfg.URL = util.GetEnvOrDefault("LAKEPROBE_NESSIE_URL", "http://localhost:19120/api/v1")
	}
	if cfg.Ref == "" {
		cfg.Ref = "main"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	p.config = &cfg

	// Resolving the branch up front catches a wrong URL or missing ref
	// while connection errors are still retried.
	if _, err := p.BranchHash(context.Background()); err != nil {
		p.config = nil
		return fmt.Errorf("failed to resolve branch %s: %w", cfg.Ref, err)
	}
	return nil
}

// BranchHash resolves the configured branch to its current commit hash.
// Callers retry at their own cadence, so the request itself does not.
func (p *Prober) BranchHash(ctx context.Context) (string, error) {
	cfg := httputil.DefaultRequestConfig(http.MethodGet, p.treeURL(""))
	cfg.RetryEnabled = false
	resp, err := httputil.Request(ctx, cfg, nil)
	if err != nil {
		return "", err
	}
	var ref reference
	if err := resp.JSON(&ref); err != nil {
		return "", err
	}
	return ref.Hash, nil
}

func (p *Prober) Lookup(ctx context.Context, q pipeline.Query) ([]pipeline.Match, error) {
	return nil, pipeline.ErrUnsupported
}

// Count walks the branch's commit log to its beginning.
func (p *Prober) Count(ctx context.Context, s pipeline.Scope) (int64, error) {
	if p.config == nil {
		return 0, fmt.Errorf("nessie prober not connected")
	}

	var total int64
	token := ""
	for {
		u := p.treeURL("/log") + "?max-records=100"
		if token != "" {
			u += "&page-token=" + url.QueryEscape(token)
		}

		cfg := httputil.DefaultRequestConfig(http.MethodGet, u)
		cfg.RetryEnabled = false
		resp, err := httputil.Request(ctx, cfg, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to read commit log: %w", err)
		}

		var page logPage
		if err := resp.JSON(&page); err != nil {
			return 0, err
		}
		total += int64(len(page.LogEntries))

		if !page.HasMore || page.Token == "" {
			return total, nil
		}
		token = page.Token
	}
}

func (p *Prober) Kind() pipeline.ProberKind {
	return pipeline.ProberKindCount
}

func (p *Prober) Disconnect() error {
	return nil
}

func (p *Prober) treeURL(suffix string) string {
	return fmt.Sprintf("%s/trees/tree/%s%s", p.config.URL, url.PathEscape(p.config.Ref), suffix)
}

func init() {
	pipeline.RegisterProber(pipeline.ProberNessie, &Prober{})
}
