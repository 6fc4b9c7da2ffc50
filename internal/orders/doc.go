// Package orders tracks submitted orders until they reach a terminal status.
//
// A wait listens for private events on the WebSocket feed and, after a short
// fallback delay, also polls the REST order status. Whichever path observes a
// terminal status first settles the wait; the other is cancelled.
package orders
