// Package debezium decodes change events as Debezium publishes them to
// Kafka: the envelope with before/after row images, operation code, and
// source metadata. Decoding only; capture, serialization, and delivery
// belong to the upstream connector.
package debezium

import (
	"encoding/json"
	"fmt"
)

// Operation represents the type of change that occurred
type Operation string

const (
	OpCreate   Operation = "c"
	OpUpdate   Operation = "u"
	OpDelete   Operation = "d"
	OpRead     Operation = "r"
	OpTruncate Operation = "t"
)

// Source contains metadata about where a change originated
type Source struct {
	Version   string `json:"version"`
	Connector string `json:"connector"`
	Name      string `json:"name"`
	TsMs      int64  `json:"ts_ms"`
	// Snapshot is an enum on the wire: true, last, false, incremental
	Snapshot string `json:"snapshot"`
	Db       string `json:"db"`
	Sequence string `json:"sequence"`
	Schema   string `json:"schema"`
	Table    string `json:"table"`
	TxID     int64  `json:"txId"`
	Lsn      int64  `json:"lsn"`
	Xmin     *int64 `json:"xmin,omitempty"`
}

// Transaction contains metadata about the transaction this change belongs to
type Transaction struct {
	ID                  string `json:"id"`
	TotalOrder          int64  `json:"total_order"`
	DataCollectionOrder int64  `json:"data_collection_order"`
}

// Payload represents the actual change data
type Payload struct {
	Before      map[string]any `json:"before"`
	After       map[string]any `json:"after"`
	Source      Source         `json:"source"`
	Op          Operation      `json:"op"`
	TsMs        int64          `json:"ts_ms"`
	Transaction *Transaction   `json:"transaction,omitempty"`
}

// Field represents a schema field definition
type Field struct {
	Field    string  `json:"field"`
	Type     string  `json:"type"`
	Optional bool    `json:"optional"`
	Name     string  `json:"name,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

// Schema represents the schema definition for a change event
type Schema struct {
	Type     string  `json:"type"`
	Optional bool    `json:"optional"`
	Name     string  `json:"name"`
	Fields   []Field `json:"fields"`
}

// Event represents a complete change data capture event
type Event struct {
	// Schema is present only when the converter ran with schemas.enable=true.
	Schema  *Schema `json:"schema,omitempty"`
	Payload Payload `json:"payload"`
	// Tombstone marks a nil-value Kafka message, emitted after deletes so
	// log compaction can drop the key.
	Tombstone bool `json:"-"`
}

// Parse decodes a change event from a Kafka message value. Both wire shapes
// are handled: the schema-wrapped envelope (schemas.enable=true) and the bare
// payload (schemas.enable=false). A nil or empty value is a tombstone.
func Parse(value []byte) (*Event, error) {
	if len(value) == 0 || string(value) == "null" {
		return &Event{Tombstone: true}, nil
	}

	var probe struct {
		Schema  json.RawMessage `json:"schema"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(value, &probe); err != nil {
		return nil, fmt.Errorf("decode change event: %w", err)
	}

	var ev Event
	if len(probe.Payload) > 0 && string(probe.Payload) != "null" {
		if len(probe.Schema) > 0 && string(probe.Schema) != "null" {
			ev.Schema = &Schema{}
			if err := json.Unmarshal(probe.Schema, ev.Schema); err != nil {
				return nil, fmt.Errorf("decode event schema: %w", err)
			}
		}
		if err := json.Unmarshal(probe.Payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		return &ev, nil
	}

	// bare payload, converter ran with schemas.enable=false
	if err := json.Unmarshal(value, &ev.Payload); err != nil {
		return nil, fmt.Errorf("decode change event: %w", err)
	}
	if ev.Payload.Op == "" {
		return nil, fmt.Errorf("not a change event envelope")
	}
	return &ev, nil
}

// Row returns the row image the event carries: After for creates, updates
// and snapshot reads, Before for deletes, nil for tombstones and truncates.
func (e *Event) Row() map[string]any {
	if e.Tombstone {
		return nil
	}
	if e.Payload.Op == OpDelete {
		return e.Payload.Before
	}
	return e.Payload.After
}

// Field returns the named field from the event's row image.
func (e *Event) Field(name string) (any, bool) {
	row := e.Row()
	if row == nil {
		return nil, false
	}
	v, ok := row[name]
	return v, ok
}
