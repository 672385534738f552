// Package pipeline provides a framework for verifying change propagation
// from PostgreSQL through Debezium and Kafka Connect to various downstream
// `Target`s (ie Kafka topics, search indexes, caches, lake tables).
//
// Supported target surfaces include Kafka, Elasticsearch, Redis, Trino,
// Nessie, and S3-compatible object stores, with extensibility through Go
// plugins.
//
// It defines a `Prober` interface that all `Target` surfaces must implement.
package pipeline
