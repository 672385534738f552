// Package warehouse probes the object store backing the lakehouse. The
// Iceberg sink writes data and metadata files under the table's warehouse
// prefix on every commit, so a growing object count is storage-side
// evidence of change flow. Individual rows live inside data files and are
// not addressable here; this prober only counts.
package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
	"github.com/lakeprobe/lakeprobe/pkg/util"
)

// Config represents object store configuration
type Config struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	// PrefixTemplate renders the key prefix for a table. Placeholders:
	// {schema}, {table}. The default has no trailing slash so catalogs
	// that suffix table directories with a UUID still match.
	PrefixTemplate string `json:"prefixTemplate,omitempty"`
}

// Prober counts objects under a table's warehouse prefix.
type Prober struct {
	client *s3.S3
	config *Config
}

func (p *Prober) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if config != nil {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to parse warehouse config: %w", err)
		}
	}

	// Set values from environment variables or use defaults
	if cfg.Endpoint == "" {
		cfg.Endpoint = util.GetEnvOrDefault("LAKEPROBE_S3_ENDPOINT", "http://localhost:9000")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = util.GetEnvOrDefault("LAKEPROBE_S3_BUCKET", "warehouse")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.AccessKey == "" {
		cfg.AccessKey = util.GetEnvOrDefault("LAKEPROBE_S3_ACCESS_KEY", "admin")
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = util.GetEnvOrDefault("LAKEPROBE_S3_SECRET_KEY", "password")
	}
	if cfg.PrefixTemplate == "" {
		cfg.PrefixTemplate = "{schema}/{table}"
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.Region),
		Endpoint:         aws.String(cfg.Endpoint),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		DisableSSL:       aws.Bool(strings.HasPrefix(cfg.Endpoint, "http://")),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}

	client := s3.New(sess)
	if _, err := client.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return fmt.Errorf("failed to access bucket %s: %w", cfg.Bucket, err)
	}

	p.client = client
	p.config = &cfg
	return nil
}

func (p *Prober) Lookup(ctx context.Context, q pipeline.Query) ([]pipeline.Match, error) {
	return nil, pipeline.ErrUnsupported
}

// Count lists every object under the table's prefix.
func (p *Prober) Count(ctx context.Context, s pipeline.Scope) (int64, error) {
	if p.client == nil {
		return 0, fmt.Errorf("warehouse prober not connected")
	}

	prefix := strings.NewReplacer("{schema}", s.Schema, "{table}", s.Table).Replace(p.config.PrefixTemplate)
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.config.Bucket),
		Prefix: aws.String(prefix),
	}

	var total int64
	err := p.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		total += int64(len(page.Contents))
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list s3://%s/%s: %w", p.config.Bucket, prefix, err)
	}
	return total, nil
}

func (p *Prober) Kind() pipeline.ProberKind {
	return pipeline.ProberKindCount
}

func (p *Prober) Disconnect() error {
	return nil
}

func init() {
	pipeline.RegisterProber(pipeline.ProberWarehouse, &Prober{})
}
