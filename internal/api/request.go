package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rickgao/tradeapi/internal/metrics"
	"github.com/rickgao/tradeapi/internal/retry"
)

// HeaderRequestID carries the correlation id of a request.
const HeaderRequestID = "x-request-id"

// Request describes one logical API call.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	RequestID string // generated when empty
}

// Do executes req, decoding a successful response body into out. out may be
// nil, and empty or 204 responses leave it untouched.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return &ValidationError{Field: "body", Message: err.Error()}
		}
	}

	policy := retry.Policy{
		Attempts:      c.attempts,
		Delay:         c.retryDelay,
		DisableJitter: !c.jitter,
		ShouldRetry:   ShouldRetry,
		RetryAfter:    RetryAfter,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			c.onRetry(req, attempt, wait, err)
		},
		Sleep: c.sleep,
	}

	body, err := retry.DoValue(ctx, policy, func(ctx context.Context) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}
		return c.doRequest(ctx, req, payload)
	})
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) onRetry(req Request, attempt int, wait time.Duration, err error) {
	reason := retryReason(err)
	metrics.HTTPRetries.WithLabelValues(reason).Inc()

	if reason == "rate_limit" && c.limiter != nil {
		c.limiter.Penalize(wait)
		metrics.RateLimiterPenalties.Inc()
	}

	c.logger.Debug("retrying request",
		"attempt", attempt,
		"wait", wait,
		"method", req.Method,
		"path", req.Path,
		"request_id", req.RequestID,
		"error", err,
	)
}

// doRequest performs a single HTTP attempt.
func (c *Client) doRequest(ctx context.Context, req Request, payload []byte) ([]byte, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}

	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(HeaderRequestID, req.RequestID)
	c.creds.Apply(httpReq.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	metrics.HTTPRequestDuration.WithLabelValues(req.Method).Observe(elapsed.Seconds())
	if err != nil {
		metrics.HTTPRequests.WithLabelValues(req.Method, metrics.StatusClass(0)).Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{Method: req.Method, Path: req.Path, RequestID: req.RequestID, Err: err}
	}
	defer resp.Body.Close()

	metrics.HTTPRequests.WithLabelValues(req.Method, metrics.StatusClass(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, Path: req.Path, RequestID: req.RequestID,
			Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.Path,
			RequestID:  req.RequestID,
			Body:       body,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Method:     req.Method,
			Path:       req.Path,
			RequestID:  req.RequestID,
			Body:       body,
		}
	default:
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
			Body:       body,
			Method:     req.Method,
			Path:       req.Path,
			Duration:   elapsed,
			RequestID:  req.RequestID,
		}
	}
}
