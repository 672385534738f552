package connect

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Definition is a connector as submitted to POST /connectors: a name plus the
// flat property map the Connect framework hands to the connector class. All
// values are strings on the wire, numeric properties included.
type Definition struct {
	Config map[string]string `json:"config"`
	Name   string            `json:"name"`
}

// LoadDefinition reads a connector definition from a JSON file in the same
// shape the Connect REST API accepts.
func LoadDefinition(path string) (Definition, error) {
	var def Definition
	b, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("load connector definition: %w", err)
	}
	if err := json.Unmarshal(b, &def); err != nil {
		return def, fmt.Errorf("load connector definition %s: %w", path, err)
	}
	if def.Name == "" {
		return def, fmt.Errorf("load connector definition %s: missing name", path)
	}
	return def, nil
}

// PostgresSource describes a Debezium PostgreSQL source connector. Zero
// values fall back to the Debezium defaults where one exists.
type PostgresSource struct {
	Name        string
	Hostname    string
	Port        int
	User        string
	Password    string
	Database    string
	TopicPrefix string
	// Tables to capture, schema-qualified, eg inventory.users. Empty means
	// all tables.
	Tables []string
	// SlotName for the logical replication slot. Reusing a name across
	// connectors is an error on the Postgres side.
	SlotName        string
	PublicationName string
	// SnapshotMode, eg initial or never.
	SnapshotMode string
}

// Definition renders the source as a submittable connector definition using
// the pgoutput plugin and schemaless JSON envelopes.
func (s PostgresSource) Definition() Definition {
	cfg := map[string]string{
		"connector.class":                "io.debezium.connector.postgresql.PostgresConnector",
		"database.hostname":              s.Hostname,
		"database.port":                  strconv.Itoa(s.Port),
		"database.user":                  s.User,
		"database.password":              s.Password,
		"database.dbname":                s.Database,
		"topic.prefix":                   s.TopicPrefix,
		"plugin.name":                    "pgoutput",
		"key.converter":                  "org.apache.kafka.connect.json.JsonConverter",
		"key.converter.schemas.enable":   "false",
		"value.converter":                "org.apache.kafka.connect.json.JsonConverter",
		"value.converter.schemas.enable": "false",
		"tombstones.on.delete":           "false",
		"decimal.handling.mode":          "string",
	}
	if len(s.Tables) > 0 {
		cfg["table.include.list"] = strings.Join(s.Tables, ",")
	}
	if s.SlotName != "" {
		cfg["slot.name"] = s.SlotName
	}
	if s.PublicationName != "" {
		cfg["publication.name"] = s.PublicationName
	}
	if s.SnapshotMode != "" {
		cfg["snapshot.mode"] = s.SnapshotMode
	}
	return Definition{Name: s.Name, Config: cfg}
}

// IcebergSink describes an Iceberg sink connector committing through a Nessie
// catalog with data files on S3-compatible storage.
type IcebergSink struct {
	Name   string
	Topics []string
	// Tables receiving the records, catalog-qualified, eg warehouse.users.
	Tables     []string
	CatalogURI string
	// Ref is the Nessie branch commits land on.
	Ref       string
	Warehouse string
	// S3Endpoint of the object store backing the warehouse.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	// ControlTopic carries the sink's commit coordination messages. Workers
	// exchange readiness and commit markers there; the poller treats its
	// existence as evidence the sink is live.
	ControlTopic     string
	CommitIntervalMS int
	CommitTimeoutMS  int
	AutoCreate       bool
	// Unwrap inserts the ExtractNewRecordState transform so the table stores
	// row-shaped records instead of change envelopes. Deletes are rewritten,
	// not dropped, and the op code survives in the __op column.
	Unwrap bool
	// UpsertMode applies records as upserts keyed on IDColumns. Combined with
	// CDCField the sink turns source deletes into Iceberg delete files, so a
	// removed row disappears from query engines instead of lingering.
	UpsertMode bool
	IDColumns  []string
	// CDCField names the column holding the op code, __op when Unwrap is set.
	CDCField string
}

// Definition renders the sink as a submittable connector definition.
func (s IcebergSink) Definition() Definition {
	cfg := map[string]string{
		"connector.class":                      "org.apache.iceberg.connect.IcebergSinkConnector",
		"topics":                               strings.Join(s.Topics, ","),
		"iceberg.tables":                       strings.Join(s.Tables, ","),
		"iceberg.catalog.catalog-impl":         "org.apache.iceberg.nessie.NessieCatalog",
		"iceberg.catalog.uri":                  s.CatalogURI,
		"iceberg.catalog.ref":                  cmp.Or(s.Ref, "main"),
		"iceberg.catalog.warehouse":            s.Warehouse,
		"iceberg.catalog.io-impl":              "org.apache.iceberg.aws.s3.S3FileIO",
		"iceberg.catalog.s3.endpoint":          s.S3Endpoint,
		"iceberg.catalog.s3.path-style-access": "true",
		"key.converter":                        "org.apache.kafka.connect.json.JsonConverter",
		"key.converter.schemas.enable":         "false",
		"value.converter":                      "org.apache.kafka.connect.json.JsonConverter",
		"value.converter.schemas.enable":       "false",
	}
	if s.S3AccessKey != "" {
		cfg["iceberg.catalog.s3.access-key-id"] = s.S3AccessKey
		cfg["iceberg.catalog.s3.secret-access-key"] = s.S3SecretKey
	}
	if s.AutoCreate {
		cfg["iceberg.tables.auto-create-enabled"] = "true"
	}
	if s.ControlTopic != "" {
		cfg["iceberg.control.topic"] = s.ControlTopic
	}
	if s.CommitIntervalMS > 0 {
		cfg["iceberg.control.commit.interval-ms"] = strconv.Itoa(s.CommitIntervalMS)
	}
	if s.CommitTimeoutMS > 0 {
		cfg["iceberg.control.commit.timeout-ms"] = strconv.Itoa(s.CommitTimeoutMS)
	}
	if s.Unwrap {
		cfg["transforms"] = "unwrap"
		cfg["transforms.unwrap.type"] = "io.debezium.transforms.ExtractNewRecordState"
		cfg["transforms.unwrap.drop.tombstones"] = "true"
		cfg["transforms.unwrap.delete.handling.mode"] = "rewrite"
		cfg["transforms.unwrap.add.fields"] = "op"
	}
	if s.UpsertMode {
		cfg["iceberg.tables.upsert-mode-enabled"] = "true"
	}
	if len(s.IDColumns) > 0 {
		cfg["iceberg.tables.default-id-columns"] = strings.Join(s.IDColumns, ",")
	}
	if s.CDCField != "" {
		cfg["iceberg.tables.cdc-field"] = s.CDCField
	}
	return Definition{Name: s.Name, Config: cfg}
}

// ElasticsearchSink describes a Confluent Elasticsearch sink connector fed
// with unwrapped Debezium envelopes, so that deletes in the source become
// document deletions in the index.
type ElasticsearchSink struct {
	Name   string
	Topics []string
	URL    string
}

// Definition renders the sink as a submittable connector definition.
func (s ElasticsearchSink) Definition() Definition {
	return Definition{
		Name: s.Name,
		Config: map[string]string{
			"connector.class":                        "io.confluent.connect.elasticsearch.ElasticsearchSinkConnector",
			"topics":                                 strings.Join(s.Topics, ","),
			"connection.url":                         s.URL,
			"key.ignore":                             "false",
			"schema.ignore":                          "true",
			"behavior.on.null.values":                "delete",
			"transforms":                             "unwrap",
			"transforms.unwrap.type":                 "io.debezium.transforms.ExtractNewRecordState",
			"transforms.unwrap.drop.tombstones":      "false",
			"transforms.unwrap.delete.handling.mode": "none",
			"key.converter":                          "org.apache.kafka.connect.json.JsonConverter",
			"key.converter.schemas.enable":           "false",
			"value.converter":                        "org.apache.kafka.connect.json.JsonConverter",
			"value.converter.schemas.enable":         "false",
		},
	}
}

