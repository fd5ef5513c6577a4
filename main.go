// Command tabularis-worker runs the analysis orchestrator: it loads the
// dataset registry, connects to Temporal, and serves the stage activities
// plus the admin HTTP surface (health, metrics, stage-event stream).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/activities"
	"github.com/tabularis-ai/tabularis/internal/config"
	"github.com/tabularis-ai/tabularis/internal/dataset"
	"github.com/tabularis-ai/tabularis/internal/health"
	"github.com/tabularis-ai/tabularis/internal/httpapi"
	"github.com/tabularis-ai/tabularis/internal/oracle"
	"github.com/tabularis-ai/tabularis/internal/sandbox"
	"github.com/tabularis-ai/tabularis/internal/streaming"
	temporalzap "github.com/tabularis-ai/tabularis/internal/temporal"
	"github.com/tabularis-ai/tabularis/internal/workflows"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Worker exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot reload: loop budgets and profiler knobs take effect on the next
	// stage without a restart.
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/features.yaml"
	}
	manager := config.NewManager(configPath, cfg, logger)
	if err := manager.Start(ctx); err != nil {
		logger.Warn("Config hot reload unavailable", zap.Error(err))
	}
	defer manager.Stop()

	registry, err := dataset.NewRegistry(logger)
	if err != nil {
		return err
	}
	dataDir := getEnvOrDefault("DATA_DIR", "data")
	if err := dataset.LoadDir(registry, dataDir, logger); err != nil {
		return fmt.Errorf("load datasets: %w", err)
	}

	current := manager.Current()
	oracleClient := oracle.NewHTTPClient(
		current.Oracle.URL,
		time.Duration(current.Oracle.TimeoutSeconds)*time.Second,
		current.Oracle.RequestsPerSecond,
		logger,
	)
	runner := sandbox.NewHTTPRunner(
		current.Sandbox.URL,
		time.Duration(current.Sandbox.BudgetSeconds)*time.Second,
		logger,
	)

	hub := streaming.Get()
	acts := activities.New(oracleClient, runner, registry, hub, manager.Current, logger)

	temporalHost := getEnvOrDefault("TEMPORAL_HOST", "temporal:7233")
	tClient, err := dialTemporal(temporalHost, logger)
	if err != nil {
		return fmt.Errorf("connect temporal: %w", err)
	}
	defer tClient.Close()

	// Admin surface: health, readiness, metrics, stage-event stream.
	checks := health.NewManager(15*time.Second, logger)
	checks.Register(health.NewTemporalChecker(tClient))
	checks.Register(health.NewHTTPChecker("oracle", current.Oracle.URL+"/health", true))
	checks.Register(health.NewHTTPChecker("sandbox", current.Sandbox.URL+"/health", false))
	checks.Start()
	defer checks.Stop()

	mux := http.NewServeMux()
	health.NewHandler(checks).Register(mux)
	httpapi.NewStreamingHandler(hub, logger).Register(mux)
	if current.Observability.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	adminAddr := fmt.Sprintf(":%d", current.Observability.Metrics.Port)
	adminSrv := &http.Server{Addr: adminAddr, Handler: mux}
	go func() {
		logger.Info("Admin HTTP server started", zap.String("addr", adminAddr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	wk := worker.New(tClient, workflows.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     32,
		MaxConcurrentWorkflowTaskExecutionSize: 16,
	})
	wk.RegisterWorkflow(workflows.AnalysisWorkflow)
	wk.RegisterActivity(acts)

	if err := wk.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	logger.Info("Analysis worker started",
		zap.String("task_queue", workflows.TaskQueue),
		zap.Strings("datasets", registry.IDs()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("Shutting down")

	wk.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = adminSrv.Shutdown(shutdownCtx)
	return nil
}

// dialTemporal waits for the endpoint and dials with backoff; the worker
// usually starts before the Temporal container is ready.
func dialTemporal(host string, logger *zap.Logger) (client.Client, error) {
	for i := 1; i <= 30; i++ {
		c, err := net.DialTimeout("tcp", host, 2*time.Second)
		if err == nil {
			_ = c.Close()
			break
		}
		logger.Warn("Waiting for Temporal TCP endpoint", zap.String("host", host), zap.Int("attempt", i))
		time.Sleep(time.Second)
	}

	var lastErr error
	for attempt := 1; attempt <= 10; attempt++ {
		tClient, err := client.Dial(client.Options{
			HostPort: host,
			Logger:   temporalzap.NewZapAdapter(logger),
		})
		if err == nil {
			return tClient, nil
		}
		lastErr = err
		delay := time.Duration(attempt) * time.Second
		if delay > 5*time.Second {
			delay = 5 * time.Second
		}
		logger.Warn("Temporal not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("sleep", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
