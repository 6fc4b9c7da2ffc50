// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - HTTP request outcomes, latencies and retries
//   - Rate limiter queue depth and server-imposed penalties
//   - WebSocket connection state, reconnects, frames and heartbeat timeouts
//   - Order completion waits by outcome and resolving path
package metrics
