package pipeline

import "github.com/lakeprobe/lakeprobe/pkg/util"

// Query is an equality predicate against a single field, normally the natural
// key of a seeded row. Downstream lookups are always keyed: ordering between
// independently inserted rows is never assumed.
type Query struct {
	Value  any
	Schema string
	Table  string
	Field  string
}

// Match is one row/document returned by a Lookup, decoded into a field-to-value
// map, with the raw payload kept for diagnostics.
type Match struct {
	Fields map[string]any
	Raw    []byte
}

// Field returns the value at a dotted path into the match, nil when absent.
func (m Match) Field(path string) any {
	v, err := util.Jq(m.Fields, path)
	if err != nil {
		return nil
	}
	return v
}

// Scope bounds count-style probes to a single table's footprint.
type Scope struct {
	Schema string
	Table  string
}
