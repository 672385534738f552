// Package redis probes a cache kept in sync from change events. Cached rows
// are keyed by a render pattern, {table}:{key} by default, with the row
// stored as JSON or as an opaque value.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
	"github.com/lakeprobe/lakeprobe/pkg/util"
)

// Config represents Redis-specific configuration
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	// KeyPattern renders the cache key for a row. Placeholders: {schema},
	// {table}, {key}.
	KeyPattern string `json:"keyPattern,omitempty"`
}

// Prober looks up cached rows by their rendered key.
type Prober struct {
	client *redis.Client
	config *Config
}

func (p *Prober) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if config != nil {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to parse Redis config: %w", err)
		}
	}

	// Set values from environment variables or use defaults
	if cfg.Addr == "" {
		cfg.Addr = util.GetEnvOrDefault("LAKEPROBE_REDIS_ADDR", "localhost:6379")
	}
	if cfg.Password == "" {
		cfg.Password = util.GetEnvOrDefault("LAKEPROBE_REDIS_PASSWORD", "")
	}
	if cfg.DB == 0 {
		cfg.DB = util.GetEnvOrDefaultInt("LAKEPROBE_REDIS_DB", 0)
	}
	if cfg.KeyPattern == "" {
		cfg.KeyPattern = "{table}:{key}"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis %s: %w", cfg.Addr, err)
	}

	p.client = client
	p.config = &cfg
	return nil
}

// Lookup fetches the rendered key. A missing key means the change has not
// reached the cache yet. Values that decode as JSON objects surface their
// fields; anything else stays raw so key existence alone can be checked.
func (p *Prober) Lookup(ctx context.Context, q pipeline.Query) ([]pipeline.Match, error) {
	if p.client == nil {
		return nil, fmt.Errorf("redis prober not connected")
	}

	key := renderKey(p.config.KeyPattern, q.Schema, q.Table, q.Value)
	data, err := p.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		fields = nil
	}
	return []pipeline.Match{{Fields: fields, Raw: data}}, nil
}

// Count scans for keys under the table's pattern.
func (p *Prober) Count(ctx context.Context, s pipeline.Scope) (int64, error) {
	if p.client == nil {
		return 0, fmt.Errorf("redis prober not connected")
	}

	match := renderKey(p.config.KeyPattern, s.Schema, s.Table, "*")
	var total int64
	var cursor uint64
	for {
		keys, next, err := p.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return 0, fmt.Errorf("scan %s: %w", match, err)
		}
		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func (p *Prober) Kind() pipeline.ProberKind {
	return pipeline.ProberKindLookupCount
}

func (p *Prober) Disconnect() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func renderKey(pattern, schema, table string, key any) string {
	return strings.NewReplacer(
		"{schema}", schema,
		"{table}", table,
		"{key}", fmt.Sprint(key),
	).Replace(pattern)
}

func init() {
	pipeline.RegisterProber(pipeline.ProberRedis, &Prober{})
}
