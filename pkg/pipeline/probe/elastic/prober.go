// Package elastic probes the indices maintained by an Elasticsearch sink
// connector. The sink names each index after its source topic, so documents
// for a table land in [prefix].[schema].[table] with the row's primary key
// as document id.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"

	elastic "github.com/olivere/elastic/v7"

	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
	"github.com/lakeprobe/lakeprobe/pkg/util"
)

// Config represents Elasticsearch-specific configuration
type Config struct {
	URL string `json:"url"`
	// IndexPrefix mirrors the source connector's topic.prefix.
	IndexPrefix string `json:"indexPrefix,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// Prober looks up documents written by the Elasticsearch sink connector.
type Prober struct {
	client *elastic.Client
	config *Config
}

func (p *Prober) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if config != nil {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to parse Elasticsearch config: %w", err)
		}
	}

	// Set values from environment variables or use defaults
	if cfg.URL == "" {
		cfg.URL = util.GetEnvOrDefault("LAKEPROBE_ELASTICSEARCH_URL", "http://localhost:9200")
	}
	if cfg.IndexPrefix == "" {
		cfg.IndexPrefix = "cdc"
	}

	opts := []elastic.ClientOptionFunc{
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
		elastic.SetURL(cfg.URL),
	}
	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}

	client, err := elastic.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch %s: %w", cfg.URL, err)
	}

	p.client = client
	p.config = &cfg
	return nil
}

// Lookup runs a term query for the key field. String values are matched on
// the field's keyword sub-field since the sink maps text columns to
// analyzed text with a keyword variant. A missing index reads as empty
// because the sink only creates it on the first delivered event.
func (p *Prober) Lookup(ctx context.Context, q pipeline.Query) ([]pipeline.Match, error) {
	if p.client == nil {
		return nil, fmt.Errorf("elasticsearch prober not connected")
	}

	field := q.Field
	if _, ok := q.Value.(string); ok {
		field += ".keyword"
	}

	result, err := p.client.Search().
		Index(p.indexFor(q.Schema, q.Table)).
		Query(elastic.NewTermQuery(field, q.Value)).
		Size(10).
		Do(ctx)
	if elastic.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var matches []pipeline.Match
	for _, hit := range result.Hits.Hits {
		var fields map[string]any
		if err := json.Unmarshal(hit.Source, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", hit.Id, err)
		}
		matches = append(matches, pipeline.Match{Fields: fields, Raw: hit.Source})
	}
	return matches, nil
}

// Count reports the number of documents in the table's index.
func (p *Prober) Count(ctx context.Context, s pipeline.Scope) (int64, error) {
	if p.client == nil {
		return 0, fmt.Errorf("elasticsearch prober not connected")
	}

	n, err := p.client.Count(p.indexFor(s.Schema, s.Table)).Do(ctx)
	if elastic.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// IndexExists reports whether the index has been created yet. The sink
// creates each index on the first event it delivers there, so presence is
// itself a delivery signal.
func (p *Prober) IndexExists(ctx context.Context, index string) (bool, error) {
	exists, err := p.client.IndexExists(index).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", index, err)
	}
	return exists, nil
}

// EnsureIndex creates the index if it does not exist yet, with dynamic
// mapping so string fields get their keyword sub-field.
func (p *Prober) EnsureIndex(ctx context.Context, index string) error {
	exists, err := p.IndexExists(ctx, index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := p.client.CreateIndex(index).Do(ctx); err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	return nil
}

// DeleteIndex removes the index. An index that is already gone counts as
// deleted.
func (p *Prober) DeleteIndex(ctx context.Context, index string) error {
	res, err := p.client.DeleteIndex(index).Do(ctx)
	if elastic.IsNotFound(err) || (err == nil && res.Acknowledged) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete index %s: %w", index, err)
	}
	return fmt.Errorf("delete of index %s not acknowledged", index)
}

// IndexDocument writes a document under the given id and waits for it to
// become searchable.
func (p *Prober) IndexDocument(ctx context.Context, index, id string, doc any) error {
	_, err := p.client.Index().
		Index(index).
		Id(id).
		BodyJson(doc).
		Refresh("wait_for").
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to index document %s/%s: %w", index, id, err)
	}
	return nil
}

// GetDocument fetches a document by id. A missing document or index
// returns nil.
func (p *Prober) GetDocument(ctx context.Context, index, id string) (map[string]any, error) {
	res, err := p.client.Get().
		Index(index).
		Id(id).
		Do(ctx)
	if elastic.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", index, id, err)
	}
	if !res.Found {
		return nil, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(res.Source, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return fields, nil
}

func (p *Prober) Kind() pipeline.ProberKind {
	return pipeline.ProberKindLookupCount
}

func (p *Prober) Disconnect() error {
	if p.client != nil {
		p.client.Stop()
	}
	return nil
}

func (p *Prober) indexFor(schema, table string) string {
	return fmt.Sprintf("%s.%s.%s", p.config.IndexPrefix, schema, table)
}

func init() {
	pipeline.RegisterProber(pipeline.ProberElasticsearch, &Prober{})
}
