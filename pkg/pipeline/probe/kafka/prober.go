package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/IBM/sarama"

	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
	"github.com/lakeprobe/lakeprobe/pkg/pipeline/debezium"
	"github.com/lakeprobe/lakeprobe/pkg/util"
)

// Prober observes change-event topics on a Kafka cluster.
type Prober struct {
	client    sarama.Client
	saramaCfg *sarama.Config
	config    *Config
}

func (p *Prober) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if config != nil {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to parse Kafka config: %w", err)
		}
	}

	// Set values from environment variables or use defaults
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = strings.Split(util.GetEnvOrDefault("LAKEPROBE_KAFKA_BROKERS", "localhost:9092"), ",")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "cdc"
	}
	if cfg.ControlTopic == "" {
		cfg.ControlTopic = "control-iceberg"
	}
	if cfg.Version == "" {
		cfg.Version = "3.6.0"
	}
	if cfg.Partitions == 0 {
		cfg.Partitions = 1
	}
	if cfg.Replicas == 0 {
		cfg.Replicas = 1
	}
	if cfg.RetentionMS == 0 {
		cfg.RetentionMS = 7 * 24 * 60 * 60 * 1000 // 7 days
	}

	saramaConfig, err := cfg.ToSaramaConfig()
	if err != nil {
		return err
	}

	client, err := sarama.NewClient(cfg.Brokers, saramaConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}

	p.client = client
	p.saramaCfg = saramaConfig
	p.config = &cfg
	return nil
}

// Lookup drains the table's change topic up to its current high-water mark
// and keeps the newest event for the queried key. A key whose latest event
// is a delete or a tombstone has no match. The drain uses a group-less
// consumer so no offsets are committed and repeated probes observe the
// whole retained history each time.
func (p *Prober) Lookup(ctx context.Context, q pipeline.Query) ([]pipeline.Match, error) {
	if p.client == nil {
		return nil, fmt.Errorf("kafka prober not connected")
	}
	topic := p.topicFor(q.Schema, q.Table)

	partitions, err := p.client.Partitions(topic)
	if err != nil {
		// topic does not exist until the source connector produces its
		// first event there
		return nil, fmt.Errorf("topic %s not available: %w", topic, err)
	}

	consumer, err := sarama.NewConsumerFromClient(p.client)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	defer consumer.Close()

	var last *debezium.Event
	var lastRaw []byte
	for _, partition := range partitions {
		oldest, err := p.client.GetOffset(topic, partition, sarama.OffsetOldest)
		if err != nil {
			return nil, fmt.Errorf("failed to read oldest offset: %w", err)
		}
		newest, err := p.client.GetOffset(topic, partition, sarama.OffsetNewest)
		if err != nil {
			return nil, fmt.Errorf("failed to read high-water mark: %w", err)
		}
		if oldest >= newest {
			continue
		}

		pc, err := consumer.ConsumePartition(topic, partition, oldest)
		if err != nil {
			return nil, fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}

		drained := false
		for !drained {
			select {
			case msg := <-pc.Messages():
				ev, perr := debezium.Parse(msg.Value)
				if perr != nil {
					log.Printf("Skipping undecodable message at %s[%d]@%d: %v", topic, partition, msg.Offset, perr)
				} else if eventMatches(ev, q) {
					last = ev
					lastRaw = msg.Value
				}
				if msg.Offset >= newest-1 {
					drained = true
				}
			case <-ctx.Done():
				pc.Close()
				return nil, ctx.Err()
			}
		}
		pc.Close()
	}

	if last == nil || last.Tombstone || last.Payload.Op == debezium.OpDelete {
		return nil, nil
	}
	return []pipeline.Match{{Fields: last.Row(), Raw: lastRaw}}, nil
}

// Count reports the number of retained messages on the table's change topic.
func (p *Prober) Count(ctx context.Context, s pipeline.Scope) (int64, error) {
	if p.client == nil {
		return 0, fmt.Errorf("kafka prober not connected")
	}
	topic := p.topicFor(s.Schema, s.Table)

	partitions, err := p.client.Partitions(topic)
	if err != nil {
		return 0, fmt.Errorf("topic %s not available: %w", topic, err)
	}

	var total int64
	for _, partition := range partitions {
		oldest, err := p.client.GetOffset(topic, partition, sarama.OffsetOldest)
		if err != nil {
			return 0, fmt.Errorf("failed to read oldest offset: %w", err)
		}
		newest, err := p.client.GetOffset(topic, partition, sarama.OffsetNewest)
		if err != nil {
			return 0, fmt.Errorf("failed to read high-water mark: %w", err)
		}
		total += newest - oldest
	}
	return total, nil
}

// TopicExists refreshes cluster metadata and reports topic presence.
func (p *Prober) TopicExists(topic string) (bool, error) {
	if err := p.client.RefreshMetadata(); err != nil {
		return false, fmt.Errorf("failed to refresh metadata: %w", err)
	}
	topics, err := p.client.Topics()
	if err != nil {
		return false, fmt.Errorf("failed to list topics: %w", err)
	}
	for _, t := range topics {
		if t == topic {
			return true, nil
		}
	}
	return false, nil
}

// ControlTopicReady reports whether the sink's commit coordination topic
// exists. Sink workers negotiate table commits over it, so its presence
// means the sink came up far enough to participate in commits.
func (p *Prober) ControlTopicReady() (bool, error) {
	if p.config.ControlTopic == "" {
		return false, fmt.Errorf("no control topic configured")
	}
	return p.TopicExists(p.config.ControlTopic)
}

// EnsureControlTopic pre-creates the commit coordination topic. The sink
// reads it on startup but never creates it, so on brokers without topic
// auto-creation it has to exist before the sink comes up.
func (p *Prober) EnsureControlTopic() error {
	if p.config.ControlTopic == "" {
		return fmt.Errorf("no control topic configured")
	}
	return p.EnsureTopic(p.config.ControlTopic)
}

// EnsureTopic creates the topic if it does not exist yet, with the
// configured partition count, replication factor, and retention.
func (p *Prober) EnsureTopic(topic string) error {
	admin, err := sarama.NewClusterAdmin(p.config.Brokers, p.saramaCfg)
	if err != nil {
		return fmt.Errorf("failed to create cluster admin: %w", err)
	}
	defer admin.Close()

	topics, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	if _, exists := topics[topic]; !exists {
		retention := fmt.Sprintf("%d", p.config.RetentionMS)
		topicDetail := &sarama.TopicDetail{
			NumPartitions:     p.config.Partitions,
			ReplicationFactor: p.config.Replicas,
			ConfigEntries: map[string]*string{
				"retention.ms": &retention,
			},
		}

		if err := admin.CreateTopic(topic, topicDetail, false); err != nil {
			return fmt.Errorf("failed to create topic: %w", err)
		}

		log.Printf("Created topic: %s", topic)
	}

	return nil
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

func (p *Prober) topicFor(schema, table string) string {
	return fmt.Sprintf("%s.%s.%s", p.config.TopicPrefix, schema, table)
}

func eventMatches(ev *debezium.Event, q pipeline.Query) bool {
	v, ok := ev.Field(q.Field)
	if !ok {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(q.Value)
}

func init() {
	pipeline.RegisterProber(pipeline.ProberKafka, &Prober{})
}
