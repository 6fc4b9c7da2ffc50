// Package events provides the typed publish/subscribe fabric used to hand
// session, rate and order events to consumer callbacks.
//
// Each component owns a closed set of event names and one Emitter per name.
// Handlers run synchronously on the emitting goroutine in registration order,
// so they must return quickly.
package events
