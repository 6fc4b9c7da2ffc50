// Package api provides the trading REST client.
//
// Every call goes through Client.Do, which attaches a correlation id
// (x-request-id), waits for a rate limiter slot when one is configured, and
// retries rate-limited, server-side and network failures with exponential
// backoff. Failures are typed by status class:
//
//   - 401/403: *AuthError
//   - 429: *RateLimitError (carries the parsed Retry-After)
//   - other non-2xx: *APIError
//   - transport failures: *NetworkError
//   - rejected input: *ValidationError
//
// Endpoints:
//   - GET    /trading/orders/{id}         order status with positions
//   - POST   /trading/orders/market       open a market order
//   - DELETE /trading/orders/{id}         cancel a pending order
//   - GET    /market-data/rates           current rates, up to 100 instruments
package api
