package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/tradeapi/internal/api"
	"github.com/rickgao/tradeapi/internal/model"
)

// fakeSource returns queued responses, then the last one forever.
type fakeSource struct {
	calls     atomic.Int32
	responses []*api.OrderStatusResponse
	errs      []error
}

func (f *fakeSource) GetOrderStatus(ctx context.Context, orderID int64) (*api.OrderStatusResponse, error) {
	i := int(f.calls.Add(1)) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], f.errs[i]
}

func TestPoller_StopsWhenHandlerDone(t *testing.T) {
	src := &fakeSource{
		responses: []*api.OrderStatusResponse{
			nil,
			{OrderID: 7, StatusID: model.StatusPending},
			{OrderID: 7, StatusID: model.StatusExecuted},
		},
		errs: []error{errors.New("boom"), nil, nil},
	}

	var seen []model.OrderStatus
	handler := StatusHandlerFunc(func(ev model.PrivateEvent) bool {
		seen = append(seen, ev.StatusID)
		return ev.StatusID.IsTerminal()
	})

	p := New(Config{Interval: 5 * time.Millisecond}, src, 7, handler, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}

	if len(seen) != 2 || seen[1] != model.StatusExecuted {
		t.Errorf("seen = %v, want [Pending Executed]", seen)
	}
	total, failed := p.Polls()
	if total != 3 || failed != 1 {
		t.Errorf("Polls() = (%d, %d), want (3, 1)", total, failed)
	}
}

func TestPoller_ContextCancel(t *testing.T) {
	src := &fakeSource{
		responses: []*api.OrderStatusResponse{{OrderID: 1, StatusID: model.StatusPending}},
		errs:      []error{nil},
	}
	handler := StatusHandlerFunc(func(model.PrivateEvent) bool { return false })

	p := New(Config{Interval: 10 * time.Millisecond}, src, 1, handler, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want DeadlineExceeded", err)
	}
	if src.calls.Load() < 2 {
		t.Errorf("calls = %d, want repeated polling", src.calls.Load())
	}
}

func TestPoller_WithAPIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orderID":42,"statusID":4,"errorMessage":"market closed"}`))
	}))
	defer server.Close()

	client := api.NewClient(server.URL, nil, api.WithTimeout(5*time.Second))

	var got model.PrivateEvent
	handler := StatusHandlerFunc(func(ev model.PrivateEvent) bool {
		got = ev
		return true
	})

	p := New(DefaultConfig(), client, 42, handler, nil)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got.OrderID != 42 || got.StatusID != model.StatusCancelled || got.Reason() != "market closed" {
		t.Errorf("event = %+v", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{}, &fakeSource{}, 1, StatusHandlerFunc(func(model.PrivateEvent) bool { return true }), nil)
	if p.cfg.Interval != time.Second || p.cfg.Timeout != 5*time.Second {
		t.Errorf("cfg = %+v, want defaults", p.cfg)
	}
}
