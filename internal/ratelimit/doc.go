// Package ratelimit throttles outgoing requests with a sliding-window log and
// a shared penalty deadline.
//
// A request counts against the window from the moment Acquire grants it.
// Waiters are served strictly in arrival order by a single dispatcher that
// sleeps until the next slot can open instead of polling.
package ratelimit
