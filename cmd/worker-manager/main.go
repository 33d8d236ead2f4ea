// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"postcode-workers/internal/app"
	"postcode-workers/internal/common/cache"
	"postcode-workers/internal/common/camunda"
	"postcode-workers/internal/common/config"
	"postcode-workers/internal/common/logger"
	"postcode-workers/internal/common/observability"
	postcodelookup "postcode-workers/internal/workers/address/postcode-lookup"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"app":         cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	zapLog.Info("Starting worker manager...", zap.String("cacheBackend", cfg.Cache.Backend))

	obs, err := observability.New(cfg.App.Name, prometheus.DefaultRegisterer)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	if cfg.Tracing.Enabled {
		tracing, err := observability.NewTracing(observability.TracingOptions{
			ServiceName:    cfg.App.Name,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			zapLog.Fatal("tracing init failed", zap.Error(err))
		}
		defer func() { _ = tracing.Shutdown(context.Background()) }()
	}

	ctx := context.Background()

	// Configuration problems fail fast; only the cache connection is retried.
	freshness, err := app.FreshnessFromConfig(cfg.Cache, time.Now())
	if err != nil {
		zapLog.Fatal("cache freshness config invalid", zap.Error(err))
	}

	// --- Address cache, with retry on the connection ---
	var store *cache.Store
	err = retryWithBackoff(func() error {
		s, err := cache.Open(ctx, cfg, log)
		if err != nil {
			return err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return err
		}
		store = s
		return nil
	}, 10, 2*time.Second, zapLog, "Address cache connection")
	if err != nil {
		zapLog.Fatal("address cache failed after retries", zap.Error(err))
	}
	lookup := app.NewLookupWithStore(cfg, store, freshness, log)
	defer func() { _ = lookup.Close() }()
	zapLog.Info("Address cache connected", zap.String("backend", lookup.Store.Backend()))

	if lookup.Credentials.Key == "" {
		zapLog.Warn("PCA_KEY is not set; lookups that reach the address service will fail with a configuration error")
	}

	// --- Zeebe client ---
	camundaClient, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: cfg.Camunda.UsePlaintext,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig: &camunda.RetryConfig{
			MaxRetries: 10,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer func() { _ = camundaClient.Close() }()
	zapLog.Info("Zeebe client connected successfully")

	// --- Workers ---
	var workers []*camunda.CamundaWorker

	if config.IsWorkerEnabled(cfg, postcodelookup.TaskType) {
		workerCfg := postcodelookup.ConfigFromAppConfig(cfg)
		handler, err := postcodelookup.NewHandler(workerCfg, lookup.Service, log)
		if err != nil {
			zapLog.Fatal("postcode lookup worker config invalid", zap.Error(err))
		}
		workers = append(workers, camunda.NewWorker(
			camundaClient.GetClient(),
			camunda.WorkerOptions{
				TaskType:      postcodelookup.TaskType,
				MaxJobsActive: workerCfg.MaxJobsActive,
				Timeout:       workerCfg.Timeout,
			},
			handler, obs, log,
		))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", postcodelookup.TaskType))
	}

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newHealthMux(lookup.Store, camundaClient),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

type pinger interface {
	Ping(ctx context.Context) error
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func newHealthMux(cache pinger, broker healthChecker) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"cache": "ok", "zeebe": "ok"}
		status := http.StatusOK
		if err := cache.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := broker.HealthCheck(ctx); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		body := map[string]interface{}{"status": "ready", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "not ready"
		}
		writeStatus(w, status, body)
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
