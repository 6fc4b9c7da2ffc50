package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/tradeapi/internal/auth"
	"github.com/rickgao/tradeapi/internal/model"
	"github.com/rickgao/tradeapi/internal/ratelimit"
)

// sleepRecorder replaces real waits between attempts.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func testCreds() *auth.Credentials {
	return &auth.Credentials{APIKey: "api-key", UserKey: "user-key"}
}

func newTestClient(url string, rec *sleepRecorder, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithRetries(3, 100*time.Millisecond),
		WithJitter(false),
		WithSleep(rec.sleep),
	}
	return NewClient(url, testCreds(), append(base, opts...)...)
}

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com/", testCreds())

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.attempts != 3 {
			t.Errorf("attempts = %d, want %d", c.attempts, 3)
		}
		if c.retryDelay != time.Second {
			t.Errorf("retryDelay = %v, want %v", c.retryDelay, time.Second)
		}
		if !c.jitter {
			t.Error("jitter should default to enabled")
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
		if !strings.HasPrefix(c.userAgent, "tradeapi/") {
			t.Errorf("userAgent = %q", c.userAgent)
		}
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		hc := &http.Client{}
		l := ratelimit.New(ratelimit.Config{MaxRequests: 1, Window: time.Second})
		defer l.Dispose()

		c := NewClient("https://api.example.com", nil,
			WithHTTPClient(hc),
			WithTimeout(5*time.Second),
			WithRetries(5, 2*time.Second),
			WithJitter(false),
			WithLogger(logger),
			WithRateLimiter(l),
			WithUserAgent("custom"),
		)
		if c.httpClient != hc || hc.Timeout != 5*time.Second {
			t.Error("HTTP client or timeout not set")
		}
		if c.attempts != 5 || c.retryDelay != 2*time.Second {
			t.Errorf("retries = (%d, %v), want (5, 2s)", c.attempts, c.retryDelay)
		}
		if c.jitter {
			t.Error("jitter should be disabled")
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.limiter != l {
			t.Error("rate limiter not set")
		}
		if c.userAgent != "custom" {
			t.Errorf("userAgent = %q, want custom", c.userAgent)
		}
	})

	t.Run("nil logger keeps default", func(t *testing.T) {
		c := NewClient("https://api.example.com", nil, WithLogger(nil))
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})
}

func TestDo_Headers(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &sleepRecorder{})

	t.Run("generated request id", func(t *testing.T) {
		var out struct{ OK bool }
		if err := c.Do(context.Background(), Request{Path: "/ping"}, &out); err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if !out.OK {
			t.Error("response not decoded")
		}
		if _, err := uuid.Parse(got.Get(HeaderRequestID)); err != nil {
			t.Errorf("%s = %q, not a uuid", HeaderRequestID, got.Get(HeaderRequestID))
		}
		if got.Get(auth.HeaderAPIKey) != "api-key" || got.Get(auth.HeaderUserKey) != "user-key" {
			t.Errorf("credential headers missing: %v", got)
		}
		if !strings.HasPrefix(got.Get("User-Agent"), "tradeapi/") {
			t.Errorf("User-Agent = %q", got.Get("User-Agent"))
		}
	})

	t.Run("caller request id", func(t *testing.T) {
		if err := c.Do(context.Background(), Request{Path: "/ping", RequestID: "corr-1"}, nil); err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if got.Get(HeaderRequestID) != "corr-1" {
			t.Errorf("%s = %q, want corr-1", HeaderRequestID, got.Get(HeaderRequestID))
		}
	})
}

func TestDo_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    map[string]string
		body      string
		wantCalls int32
		check     func(t *testing.T, err error)
	}{
		{
			name:      "unauthorized",
			status:    http.StatusUnauthorized,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) || authErr.StatusCode != 401 {
					t.Errorf("err = %v, want *AuthError 401", err)
				}
			},
		},
		{
			name:      "forbidden",
			status:    http.StatusForbidden,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) || authErr.StatusCode != 403 {
					t.Errorf("err = %v, want *AuthError 403", err)
				}
			},
		},
		{
			name:      "client error not retried",
			status:    http.StatusNotFound,
			body:      `{"message":"order not found"}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("err = %v, want *APIError", err)
				}
				if apiErr.StatusCode != 404 || apiErr.Message != "order not found" {
					t.Errorf("APIError = %+v", apiErr)
				}
				if apiErr.Method != http.MethodGet || apiErr.Path != "/thing" {
					t.Errorf("context = %s %s, want GET /thing", apiErr.Method, apiErr.Path)
				}
				if string(apiErr.Body) != `{"message":"order not found"}` {
					t.Errorf("Body = %s", apiErr.Body)
				}
				if apiErr.RequestID != "req-1" {
					t.Errorf("RequestID = %q, want req-1", apiErr.RequestID)
				}
			},
		},
		{
			name:      "server error retried until exhausted",
			status:    http.StatusBadGateway,
			wantCalls: 3,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != 502 {
					t.Errorf("err = %v, want *APIError 502", err)
				}
				if apiErr.Message != "Bad Gateway" {
					t.Errorf("Message = %q, want status text", apiErr.Message)
				}
			},
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			header:    map[string]string{"Retry-After": "2"},
			wantCalls: 3,
			check: func(t *testing.T, err error) {
				var rl *RateLimitError
				if !errors.As(err, &rl) || rl.RetryAfter != 2*time.Second {
					t.Errorf("err = %v, want *RateLimitError with 2s", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL, &sleepRecorder{})
			err := c.Do(context.Background(), Request{Path: "/thing", RequestID: "req-1"}, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestDo_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &sleepRecorder{})

	out := map[string]string{"untouched": "yes"}
	if err := c.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/x"}, &out); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if out["untouched"] != "yes" {
		t.Error("204 response modified output")
	}
}

func TestDo_BackoffWithoutJitter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(srv.URL, rec)
	if err := c.Do(context.Background(), Request{Path: "/flaky"}, nil); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	waits := rec.recorded()
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestDo_RateLimitPenalizesLimiter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.05")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	l := ratelimit.New(ratelimit.Config{MaxRequests: 100, Window: time.Minute})
	defer l.Dispose()

	rec := &sleepRecorder{}
	c := newTestClient(srv.URL, rec, WithRateLimiter(l))

	before := time.Now()
	if err := c.Do(context.Background(), Request{Path: "/limited"}, nil); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	waits := rec.recorded()
	if len(waits) != 1 || waits[0] != 50*time.Millisecond {
		t.Errorf("waits = %v, want [50ms]", waits)
	}
	if !l.PenaltyUntil().After(before) {
		t.Errorf("PenaltyUntil = %v, want after %v", l.PenaltyUntil(), before)
	}
	if l.Usage() != 2 {
		t.Errorf("Usage = %d, want one slot per attempt", l.Usage())
	}
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(url, rec)

	err := c.Do(context.Background(), Request{Path: "/down", RequestID: "net-1"}, nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
	if netErr.RequestID != "net-1" {
		t.Errorf("RequestID = %q, want net-1", netErr.RequestID)
	}
	if len(rec.recorded()) != 2 {
		t.Errorf("waits = %v, want 2 retries", rec.recorded())
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv.URL, &sleepRecorder{})
	err := c.Do(ctx, Request{Path: "/x"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &RateLimitError{}, true},
		{"server error", &APIError{StatusCode: 500}, true},
		{"bad gateway", &APIError{StatusCode: 502}, true},
		{"client error", &APIError{StatusCode: 400}, false},
		{"network", &NetworkError{Err: io.ErrUnexpectedEOF}, true},
		{"auth", &AuthError{StatusCode: 401}, false},
		{"validation", &ValidationError{Message: "bad"}, false},
		{"other", errors.New("boom"), false},
		{"disposed limiter", ratelimit.ErrDisposed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err); got != tt.want {
				t.Errorf("ShouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"0", 0},
		{"-4", 0},
		{now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second},
		{now.Add(-10 * time.Second).Format(http.TimeFormat), 0},
		{"soon", 0},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.value, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trading/orders/999" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"orderID":999,"statusID":2,"positions":[{"positionID":5,"instrumentID":1001,"units":"3","rate":"1.25","amount":"100"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &sleepRecorder{})
	resp, err := c.GetOrderStatus(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetOrderStatus failed: %v", err)
	}
	if resp.StatusID != model.StatusExecuted || len(resp.Positions) != 1 {
		t.Fatalf("resp = %+v", resp)
	}

	ev := resp.Event()
	if ev.OrderID != 999 || ev.StatusID != model.StatusExecuted {
		t.Errorf("event = %+v", ev)
	}
	if ev.PositionID == nil || *ev.PositionID != 5 {
		t.Errorf("PositionID = %v, want 5", ev.PositionID)
	}
	if ev.InstrumentID != 1001 {
		t.Errorf("InstrumentID = %d, want 1001", ev.InstrumentID)
	}
	if !ev.Rate.Valid || !ev.Rate.Decimal.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("Rate = %v, want 1.25", ev.Rate)
	}
}

func TestPlaceMarketOrder(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/trading/orders/market" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"orderID":321}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &sleepRecorder{})

	t.Run("valid", func(t *testing.T) {
		resp, err := c.PlaceMarketOrder(context.Background(), MarketOrderRequest{
			InstrumentID: 1001,
			IsBuy:        true,
			Amount:       decimal.NewNullDecimal(decimal.NewFromInt(50)),
		})
		if err != nil {
			t.Fatalf("PlaceMarketOrder failed: %v", err)
		}
		if resp.OrderID != 321 {
			t.Errorf("OrderID = %d, want 321", resp.OrderID)
		}
		if body["leverage"] != float64(1) {
			t.Errorf("leverage = %v, want default 1", body["leverage"])
		}
		if body["units"] != nil {
			t.Errorf("units = %v, want null", body["units"])
		}
	})

	invalid := []struct {
		name  string
		order MarketOrderRequest
	}{
		{"no instrument", MarketOrderRequest{Amount: decimal.NewNullDecimal(decimal.NewFromInt(1))}},
		{"neither amount nor units", MarketOrderRequest{InstrumentID: 1}},
		{"both amount and units", MarketOrderRequest{
			InstrumentID: 1,
			Amount:       decimal.NewNullDecimal(decimal.NewFromInt(1)),
			Units:        decimal.NewNullDecimal(decimal.NewFromInt(1)),
		}},
		{"negative amount", MarketOrderRequest{InstrumentID: 1, Amount: decimal.NewNullDecimal(decimal.NewFromInt(-5))}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.PlaceMarketOrder(context.Background(), tt.order)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("err = %v, want *ValidationError", err)
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &sleepRecorder{})
	if err := c.CancelOrder(context.Background(), 77); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if method != http.MethodDelete || path != "/trading/orders/77" {
		t.Errorf("request = %s %s", method, path)
	}

	var vErr *ValidationError
	if err := c.CancelOrder(context.Background(), 0); !errors.As(err, &vErr) {
		t.Errorf("CancelOrder(0) = %v, want *ValidationError", err)
	}
}

func TestGetRates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.URL.Query().Get("instrumentIds"); got != "1001,1002" {
			t.Errorf("instrumentIds = %q", got)
		}
		w.Write([]byte(`{"rates":[{"instrumentID":1001,"ask":"1.1","bid":"1.0","lastExecution":"1.05","date":"2026-01-02T03:04:05Z","priceRateID":"r1"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &sleepRecorder{})

	t.Run("success", func(t *testing.T) {
		rates, err := c.GetRates(context.Background(), []int64{1001, 1002})
		if err != nil {
			t.Fatalf("GetRates failed: %v", err)
		}
		if len(rates) != 1 || rates[0].InstrumentID != 1001 || rates[0].PriceRateID != "r1" {
			t.Fatalf("rates = %+v", rates)
		}
		if !rates[0].Spread().Equal(decimal.RequireFromString("0.1")) {
			t.Errorf("Spread = %s, want 0.1", rates[0].Spread())
		}
	})

	t.Run("validation", func(t *testing.T) {
		tooMany := make([]int64, MaxRatesBatch+1)
		for i := range tooMany {
			tooMany[i] = int64(i + 1)
		}

		before := calls.Load()
		for _, ids := range [][]int64{nil, tooMany, {1, -2}} {
			_, err := c.GetRates(context.Background(), ids)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("GetRates(%d ids) = %v, want *ValidationError", len(ids), err)
			}
		}
		if calls.Load() != before {
			t.Error("validation failures reached the server")
		}
	})
}
