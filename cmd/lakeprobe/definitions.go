package lakeprobe

import (
	"fmt"

	"github.com/lakeprobe/lakeprobe/pkg/config"
	"github.com/lakeprobe/lakeprobe/pkg/connect"
)

// Names and wiring shared by the built-in demo connectors.
const (
	sourceConnector  = "pg-source"
	icebergConnector = "iceberg-sink"
	esConnector      = "es-sink"

	defaultSlotName     = "lakeprobe"
	defaultPublication  = "lakeprobe_pub"
	defaultTopicPrefix  = "cdc"
	defaultControlTopic = "control-iceberg"
)

// loadDefinitions returns the connector definitions `up` registers and
// `down` removes: the files from config when given, the built-in demo set
// otherwise.
func loadDefinitions(cfg *config.Config) ([]connect.Definition, error) {
	if len(cfg.Connect.Definitions) > 0 {
		defs := make([]connect.Definition, 0, len(cfg.Connect.Definitions))
		for _, path := range cfg.Connect.Definitions {
			def, err := connect.LoadDefinition(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
			defs = append(defs, def)
		}
		return defs, nil
	}
	return defaultDefinitions(cfg), nil
}

// defaultDefinitions builds the three demo connectors. Hostnames are the
// stock compose service names: the connectors resolve them inside the
// compose network, while the probers dial published ports from outside.
func defaultDefinitions(cfg *config.Config) []connect.Definition {
	qualified := make([]string, 0, len(cfg.Source.Tables))
	topics := make([]string, 0, len(cfg.Source.Tables))
	for _, table := range cfg.Source.Tables {
		qualified = append(qualified, cfg.Source.Schema+"."+table)
		topics = append(topics, fmt.Sprintf("%s.%s.%s", defaultTopicPrefix, cfg.Source.Schema, table))
	}

	source := connect.PostgresSource{
		Name:            sourceConnector,
		Hostname:        "postgres",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "postgres",
		TopicPrefix:     defaultTopicPrefix,
		Tables:          qualified,
		SlotName:        defaultSlotName,
		PublicationName: defaultPublication,
		SnapshotMode:    "initial",
	}

	iceberg := connect.IcebergSink{
		Name:             icebergConnector,
		Topics:           topics,
		Tables:           qualified,
		CatalogURI:       "http://nessie:19120/api/v1",
		Ref:              "main",
		Warehouse:        "s3://warehouse",
		S3Endpoint:       "http://minio:9000",
		S3AccessKey:      "admin",
		S3SecretKey:      "password",
		ControlTopic:     defaultControlTopic,
		CommitIntervalMS: 10000,
		CommitTimeoutMS:  30000,
		AutoCreate:       true,
		Unwrap:           true,
		UpsertMode:       true,
		IDColumns:        []string{"id"},
		CDCField:         "__op",
	}

	es := connect.ElasticsearchSink{
		Name:   esConnector,
		Topics: topics,
		URL:    "http://elasticsearch:9200",
	}

	return []connect.Definition{source.Definition(), iceberg.Definition(), es.Definition()}
}
