package pipeline

import (
	"context"
	"encoding/json"
	"errors"
)

type ProberKind int

const (
	ProberKindUnknown ProberKind = iota
	ProberKindLookup              // keyed row/document lookup
	ProberKindCount               // cardinality evidence only
	ProberKindLookupCount         // both
)

// CanLookup reports whether the prober answers keyed lookups.
func (k ProberKind) CanLookup() bool {
	return k == ProberKindLookup || k == ProberKindLookupCount
}

// CanCount reports whether the prober answers count probes.
func (k ProberKind) CanCount() bool {
	return k == ProberKindCount || k == ProberKindLookupCount
}

var (
	ErrUnsupported = errors.New("operation not supported by prober")
)

// A Prober reads one downstream surface of the pipeline.
type Prober interface {
	// Connect initializes the prober with the provided configuration.
	// The config parameter is a raw JSON message containing prober-specific settings.
	// Additional arguments can be passed via the args parameter.
	Connect(config json.RawMessage, args ...any) error

	// Lookup fetches the rows/documents matching q. An empty result with nil
	// error means the data is not visible yet, which is the expected state
	// for most of a propagation window.
	Lookup(ctx context.Context, q Query) ([]Match, error)

	// Count reports how many records exist within scope.
	Count(ctx context.Context, s Scope) (int64, error)

	// Kind returns what evidence the prober produces (LOOKUP, COUNT, or both).
	Kind() ProberKind

	Disconnect() error
}

// Predefined probers
const (
	ProberPostgres      = "postgres"
	ProberKafka         = "kafka"
	ProberElasticsearch = "elasticsearch"
	ProberRedis         = "redis"
	ProberTrino         = "trino"
	ProberNessie        = "nessie"
	ProberWarehouse     = "warehouse"
)

// RegisterProber adds a new prober to the registry.
// The name parameter is used as a key to identify the prober type.
func RegisterProber(name string, p Prober) {
	probers[name] = p
}
