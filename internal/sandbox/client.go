// Package sandbox is the client boundary to the external code-execution
// service. The service owns isolation and enforces the wall-clock budget;
// this client only carries the budget across and maps timeouts onto
// ordinary execution failures so they feed the code-retry loop.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/circuitbreaker"
	ometrics "github.com/tabularis-ai/tabularis/internal/metrics"
)

// Request is one code execution against the named datasets.
type Request struct {
	Code       string   `json:"code"`
	DatasetIDs []string `json:"dataset_ids"`
	// TimeoutSeconds is the wall-clock budget the service must enforce.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Result is the sandbox's verdict. A timeout comes back as a failed result,
// never as an error the workflow would treat differently.
type Result struct {
	Succeeded  bool   `json:"succeeded"`
	OutputType string `json:"output_type"` // analysis | figure
	ResultText string `json:"result_text"`
	FigureJSON string `json:"figure_json"`
	Error      string `json:"error"`
}

// Runner executes synthesized analysis code.
type Runner interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// HTTPRunner talks to the sandbox service over HTTP.
type HTTPRunner struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

// NewHTTPRunner builds a runner. The HTTP timeout is the execution budget
// plus headroom so the service's own limit fires first.
func NewHTTPRunner(baseURL string, budget time.Duration, logger *zap.Logger) *HTTPRunner {
	return &HTTPRunner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: budget + 15*time.Second},
		breaker: circuitbreaker.New("sandbox", circuitbreaker.DefaultConfig(), logger),
		logger:  logger,
	}
}

// Execute runs the code remotely. Transport errors and timeouts are
// returned as failed Results; the error return is reserved for context
// cancellation. Only transport-level faults feed the circuit breaker, a
// clean run of failing user code counts as service health.
func (r *HTTPRunner) Execute(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: marshal request: %w", err)
	}

	var out Result
	err = r.breaker.Execute(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/execute", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := r.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		ometrics.SandboxDuration.Observe(time.Since(start).Seconds())

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read sandbox response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("sandbox returned status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("malformed sandbox response: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		status := "transport_error"
		msg := fmt.Sprintf("sandbox unreachable: %v", err)
		switch {
		case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
			status = "timeout"
			msg = "execution exceeded the wall-clock budget"
		case errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrProbeLimit):
			status = "breaker_open"
			msg = "sandbox unavailable: " + err.Error()
		}
		ometrics.SandboxExecutions.WithLabelValues(status).Inc()
		r.logger.Warn("Sandbox call failed", zap.String("status", status), zap.Error(err))
		return Result{Succeeded: false, Error: msg}, nil
	}

	if out.Succeeded {
		ometrics.SandboxExecutions.WithLabelValues("ok").Inc()
	} else {
		ometrics.SandboxExecutions.WithLabelValues("failed").Inc()
	}
	return out, nil
}

type timeouter interface{ Timeout() bool }

func isTimeout(err error) bool {
	var t timeouter
	return errors.As(err, &t) && t.Timeout()
}
