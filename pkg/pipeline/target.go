package pipeline

// Target is a downstream surface the harness observes (source table, Kafka
// topic, search index, cache, lake table) with its associated prober.
type Target struct {
	Name       string `json:"name" mapstructure:"name"`
	ProberName string `json:"prober" mapstructure:"prober"`
	// Config contains the connection config of the underlying client library,
	// eg sarama broker list, elastic URL, pgx conn string.
	Config map[string]any `json:"config" mapstructure:"config"`
}

func (t *Target) Prober() Prober {
	return probers[t.ProberName]
}
