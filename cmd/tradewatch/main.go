package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/tradeapi/internal/config"
	"github.com/rickgao/tradeapi/internal/metrics"
	"github.com/rickgao/tradeapi/internal/version"
	"github.com/rickgao/tradeapi/pkg/trading"
)

func main() {
	configPath := flag.String("config", "", "path to config file (environment only when empty)")
	instruments := flag.String("instruments", "", "comma-separated instrument ids to stream")
	snapshot := flag.Bool("snapshot", true, "request a snapshot when subscribing")
	orderID := flag.Int64("order", 0, "order id to wait for")
	orderTimeout := flag.Duration("order-timeout", 0, "order wait timeout (config default when zero)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting tradewatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ids, err := parseIDs(*instruments)
	if err != nil {
		logger.Error("invalid -instruments", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, ids, *snapshot, *orderID, *orderTimeout, logger); err != nil {
		logger.Error("tradewatch failed", "error", err)
		os.Exit(1)
	}

	logger.Info("tradewatch stopped")
}

func run(cfg config.Config, ids []int64, snapshot bool, orderID int64, orderTimeout time.Duration, logger *slog.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	client, err := trading.New(cfg, trading.WithLogger(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	watch(client, logger)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: createHandler(cfg.Metrics.Path, client),
		}

		g.Go(func() error {
			logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}

		if len(ids) > 0 {
			if err := client.SubscribeInstruments(ids, snapshot); err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			logger.Info("streaming rates", "instruments", ids)
		}

		if orderID > 0 {
			ev, err := client.WaitForOrder(ctx, orderID, orderTimeout)
			if err != nil {
				return fmt.Errorf("wait for order %d: %w", orderID, err)
			}
			logger.Info("order executed",
				"order_id", ev.OrderID,
				"instrument_id", ev.InstrumentID,
				"executed_units", ev.ExecutedUnits,
				"rate", ev.Rate.Decimal,
			)
			if len(ids) == 0 {
				cancel()
				return nil
			}
		}

		<-ctx.Done()
		return nil
	})

	return g.Wait()
}

// watch logs session lifecycle and streamed data.
func watch(client *trading.Client, logger *slog.Logger) {
	ev := client.Events()

	ev.Rate.On(func(r trading.Rate) {
		logger.Info("rate",
			"instrument_id", r.InstrumentID,
			"bid", r.Bid,
			"ask", r.Ask,
			"spread", r.Spread(),
		)
	})
	ev.Private.On(func(p trading.PrivateEvent) {
		logger.Info("private event", "order_id", p.OrderID, "status", p.StatusID)
	})
	ev.Reconnecting.On(func(r trading.ReconnectEvent) {
		logger.Warn("session reconnecting", "attempt", r.Attempt, "delay", r.Delay)
	})
	ev.Reconnected.On(func(struct{}) {
		logger.Info("session reconnected")
	})
	ev.Close.On(func(c trading.CloseEvent) {
		logger.Info("session closed", "code", c.Code, "reason", c.Reason)
	})
	ev.Error.On(func(err error) {
		logger.Error("session error", "error", err)
	})
}

// createHandler serves Prometheus metrics and a session health check.
func createHandler(metricsPath string, client *trading.Client) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status  string `json:"status"`
			Session string `json:"session"`
		}{
			Status:  "healthy",
			Session: client.State().String(),
		}
		if !client.IsConnected() {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.FromOSEnv()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return config.Config{}, err
	}
	*cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("validate config: %w", err)
	}
	return *cfg, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("instrument id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
