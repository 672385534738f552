// Package kafka probes the change-event topics that a Debezium source
// connector produces into.
//
// Topic naming follows the connector's `topic.prefix` setting:
//
//	[prefix].[schema_name].[table_name]
//
// Examples:
// - cdc.public.users       → change events for public.users
// - cdc.inventory.products → change events for inventory.products
//
// Message format:
// - Key: JSON document holding the row's primary key
// - Value: Debezium change event envelope (or nil for a tombstone)
//
// A lookup drains a topic from the oldest retained offset to the current
// high-water mark and reports the newest event for the queried key, so the
// result reflects the row's latest state on the log. Counts report the
// number of retained messages without decoding them.
//
// The package also watches the Iceberg sink's control topic. Sink workers
// coordinate table commits through it, which makes its existence a useful
// liveness signal for the commit path.
package kafka
