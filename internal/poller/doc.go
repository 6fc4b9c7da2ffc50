// Package poller implements the order status poller.
//
// The poller is the REST fallback for order tracking:
//   - Fetches one order's status on a fixed interval
//   - Hands every result to a handler until the handler reports completion
//   - Logs fetch errors and keeps polling; they never end the loop
//   - Stops when its context is cancelled
package poller
