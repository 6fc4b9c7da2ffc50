// Package retry executes an operation repeatedly under a backoff policy.
//
// Waits follow, in priority order: a server-supplied override (used verbatim),
// otherwise exponential backoff with optional ±25% jitter. Exhausted or
// non-retryable failures are returned unchanged so callers can match on the
// concrete error type.
package retry
