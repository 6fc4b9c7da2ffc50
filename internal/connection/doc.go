// Package connection implements the WebSocket session to the trading API.
//
// The Session:
//   - Dials the socket and authenticates with the Authenticate operation
//   - Keeps the connection alive with protocol pings and a pong deadline
//   - Tracks the subscription set and replays it after reconnecting
//   - Reconnects with exponential backoff after an unexpected close
//   - Decodes inbound envelopes and emits typed rate and private events
//
// State transitions:
//
//	Disconnected → Connecting → Open → Authenticated
//	Authenticated → Reconnecting → Connecting (unexpected close)
//	Reconnecting → Closed (attempts exhausted)
//	any → Disconnected (Disconnect)
package connection
