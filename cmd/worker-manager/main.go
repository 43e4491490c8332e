// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"analytics-assistant/internal/api"
	"analytics-assistant/internal/app"
	"analytics-assistant/internal/common/camunda"
	"analytics-assistant/internal/common/config"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/observability"
	"analytics-assistant/pkg/registry"

	aaq "analytics-assistant/internal/workers/ai-conversation/answer-analytics-query"
	rds "analytics-assistant/internal/workers/ai-conversation/route-data-source"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")
	bootLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}
	if err := config.ValidateForWorkers(cfg); err != nil {
		bootLog.Fatal("config invalid for workers", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	shutdownTracing, err := observability.InitTracing(cfg.Tracing)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}

	ctx := context.Background()

	assistantApp, err := app.Build(ctx, cfg, app.Options{Metrics: obs}, log)
	if err != nil {
		zapLog.Fatal("assistant bootstrap failed", zap.Error(err))
	}
	defer assistantApp.Close()

	// --- Backends with retry ---
	for name, check := range assistantApp.ReadinessChecks() {
		check := check
		err := retryWithBackoff(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return check(pingCtx)
		}, 10, 2*time.Second, zapLog, name+" connection")
		if err != nil {
			zapLog.Fatal("backend unavailable after retries", zap.String("backend", name), zap.Error(err))
		}
		zapLog.Info("backend connected", zap.String("backend", name))
	}

	// --- Zeebe ---
	zeebe, err := camunda.Connect(ctx, camunda.NewClientConfig(
		cfg.Camunda.BrokerAddress,
		config.GetDuration(cfg.Camunda.RequestTimeout),
	))
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	checkRegistry(zapLog, aaq.TaskType, rds.TaskType)

	// --- Workers ---
	var workers []worker.JobWorker

	answerHandler := aaq.NewHandler(
		&aaq.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, aaq.TaskType).Timeout)},
		assistantApp.Service, log,
	)
	if w := camunda.StartWorker(zeebe.GetClient(), aaq.TaskType, config.GetWorkerConfig(cfg, aaq.TaskType), answerHandler.Handle, zapLog); w != nil {
		workers = append(workers, w)
	}

	routeHandler := rds.NewHandler(
		&rds.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, rds.TaskType).Timeout)},
		assistantApp.Router, assistantApp.Modes, assistantApp.Planner, log,
	)
	if w := camunda.StartWorker(zeebe.GetClient(), rds.TaskType, config.GetWorkerConfig(cfg, rds.TaskType), routeHandler.Handle, zapLog); w != nil {
		workers = append(workers, w)
	}
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health, Metrics & Answer API ---
	checks := assistantApp.ReadinessChecks()
	checks["zeebe"] = zeebe.HealthCheck
	handler := api.NewHandler(assistantApp.Service, checks, config.GetDuration(config.GetWorkerConfig(cfg, aaq.TaskType).Timeout), log)

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLog.Error("Error flushing traces", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// checkRegistry warns when a started task type is missing from the activity
// registry. A missing registry file is not fatal.
func checkRegistry(log *zap.Logger, taskTypes ...string) {
	path := os.Getenv("ACTIVITY_REGISTRY_PATH")
	if path == "" {
		path = "configs/activity-registry.json"
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	for _, problem := range reg.Validate() {
		log.Warn("activity registry problem", zap.String("problem", problem))
	}
	for _, t := range taskTypes {
		if _, ok := reg.Find(t); !ok {
			log.Warn("task type missing from activity registry", zap.String("taskType", t))
		}
	}
}
