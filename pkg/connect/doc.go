// Package connect is a thin client for the Kafka Connect REST control plane.
//
// The harness uses it for three things: submitting connector definitions
// (idempotently, so repeated bring-up runs converge instead of failing),
// reading connector status, and gating on readiness. A connector counts as
// ready only when the connector itself and every one of its tasks report
// RUNNING.
//
// Error classes are kept strictly apart:
//   - transient unavailability while polling (connector not registered yet,
//     control plane still booting) is retried silently,
//   - a readiness timeout surfaces as *NotReadyError naming the connector and
//     the bound,
//   - an unexpected control-plane response surfaces as *APIError immediately,
//     with no retry.
package connect
