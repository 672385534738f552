package connect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefinition(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pg-source.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"name": "pg-source",
			"config": {
				"connector.class": "io.debezium.connector.postgresql.PostgresConnector",
				"database.hostname": "postgres",
				"database.port": "5432"
			}
		}`), 0o644))

		def, err := LoadDefinition(path)
		require.NoError(t, err)
		assert.Equal(t, "pg-source", def.Name)
		assert.Equal(t, "postgres", def.Config["database.hostname"])
		assert.Equal(t, "5432", def.Config["database.port"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadDefinition(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})

	t.Run("missing name", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "anon.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"config":{}}`), 0o644))
		_, err := LoadDefinition(path)
		require.Error(t, err)
	})
}

func TestPostgresSourceDefinition(t *testing.T) {
	def := PostgresSource{
		Name:            "inventory-source",
		Hostname:        "postgres",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "inventory",
		TopicPrefix:     "cdc",
		Tables:          []string{"public.users", "public.orders"},
		SlotName:        "cdc_slot",
		PublicationName: "cdc_pub",
		SnapshotMode:    "initial",
	}.Definition()

	assert.Equal(t, "inventory-source", def.Name)
	assert.Equal(t, "io.debezium.connector.postgresql.PostgresConnector", def.Config["connector.class"])
	assert.Equal(t, "5432", def.Config["database.port"])
	assert.Equal(t, "public.users,public.orders", def.Config["table.include.list"])
	assert.Equal(t, "pgoutput", def.Config["plugin.name"])
	assert.Equal(t, "cdc_slot", def.Config["slot.name"])
	assert.Equal(t, "false", def.Config["value.converter.schemas.enable"])
	assert.Equal(t, "false", def.Config["tombstones.on.delete"])
}

func TestIcebergSinkDefinition(t *testing.T) {
	def := IcebergSink{
		Name:             "iceberg-sink",
		Topics:           []string{"cdc.public.users"},
		Tables:           []string{"warehouse.users"},
		CatalogURI:       "http://nessie:19120/api/v2",
		Warehouse:        "s3://warehouse",
		S3Endpoint:       "http://minio:9000",
		S3AccessKey:      "admin",
		S3SecretKey:      "password",
		ControlTopic:     "iceberg-control",
		CommitIntervalMS: 1000,
		AutoCreate:       true,
	}.Definition()

	assert.Equal(t, "org.apache.iceberg.connect.IcebergSinkConnector", def.Config["connector.class"])
	assert.Equal(t, "main", def.Config["iceberg.catalog.ref"], "branch should default to main")
	assert.Equal(t, "warehouse.users", def.Config["iceberg.tables"])
	assert.Equal(t, "true", def.Config["iceberg.catalog.s3.path-style-access"])
	assert.Equal(t, "iceberg-control", def.Config["iceberg.control.topic"])
	assert.Equal(t, "1000", def.Config["iceberg.control.commit.interval-ms"])
	assert.Equal(t, "true", def.Config["iceberg.tables.auto-create-enabled"])
	_, ok := def.Config["iceberg.control.commit.timeout-ms"]
	assert.False(t, ok, "unset timeout should be omitted")
	_, ok = def.Config["transforms"]
	assert.False(t, ok, "no transform unless Unwrap is set")
}

func TestIcebergSinkCDCDefinition(t *testing.T) {
	def := IcebergSink{
		Name:       "iceberg-sink",
		Topics:     []string{"cdc.public.users"},
		Tables:     []string{"warehouse.users"},
		CatalogURI: "http://nessie:19120/api/v1",
		Warehouse:  "s3://warehouse",
		S3Endpoint: "http://minio:9000",
		Unwrap:     true,
		UpsertMode: true,
		IDColumns:  []string{"id"},
		CDCField:   "__op",
	}.Definition()

	assert.Equal(t, "io.debezium.transforms.ExtractNewRecordState", def.Config["transforms.unwrap.type"])
	assert.Equal(t, "rewrite", def.Config["transforms.unwrap.delete.handling.mode"],
		"deletes must survive the unwrap so the sink can apply them")
	assert.Equal(t, "op", def.Config["transforms.unwrap.add.fields"])
	assert.Equal(t, "true", def.Config["iceberg.tables.upsert-mode-enabled"])
	assert.Equal(t, "id", def.Config["iceberg.tables.default-id-columns"])
	assert.Equal(t, "__op", def.Config["iceberg.tables.cdc-field"])
}

func TestElasticsearchSinkDefinition(t *testing.T) {
	def := ElasticsearchSink{
		Name:   "es-sink",
		Topics: []string{"cdc.public.users"},
		URL:    "http://elasticsearch:9200",
	}.Definition()

	assert.Equal(t, "io.confluent.connect.elasticsearch.ElasticsearchSinkConnector", def.Config["connector.class"])
	assert.Equal(t, "http://elasticsearch:9200", def.Config["connection.url"])
	assert.Equal(t, "delete", def.Config["behavior.on.null.values"], "source deletes must delete documents")
	assert.Equal(t, "io.debezium.transforms.ExtractNewRecordState", def.Config["transforms.unwrap.type"])
}
