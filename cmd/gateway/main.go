// Command tabularis-gateway is the question-submission front door. It
// authenticates clients, starts one AnalysisWorkflow per question, and
// returns the terminal output synchronously.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/auth"
	"github.com/tabularis-ai/tabularis/internal/tracing"
	temporalzap "github.com/tabularis-ai/tabularis/internal/temporal"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Gateway exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	keysFile := getEnvOrDefault("API_KEYS_FILE", "config/api_keys.yaml")
	keys, err := auth.LoadKeys(keysFile)
	if err != nil {
		return fmt.Errorf("load api keys: %w", err)
	}
	authManager := auth.NewManager(signingKey, time.Hour, keys)

	shutdownTracing, err := tracing.Initialize(tracing.Config{
		Enabled:      os.Getenv("TRACING_ENABLED") == "1",
		ServiceName:  "tabularis-gateway",
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	tClient, err := client.Dial(client.Options{
		HostPort: getEnvOrDefault("TEMPORAL_HOST", "temporal:7233"),
		Logger:   temporalzap.NewZapAdapter(logger),
	})
	if err != nil {
		return fmt.Errorf("connect temporal: %w", err)
	}
	defer tClient.Close()

	handler := newQuestionHandler(tClient, logger)
	protect := auth.Middleware(authManager, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/auth/token", newTokenHandler(authManager, logger))
	mux.Handle("/v1/questions", protect(http.HandlerFunc(handler.submit)))

	addr := ":" + getEnvOrDefault("GATEWAY_PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Gateway listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Gateway HTTP server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
