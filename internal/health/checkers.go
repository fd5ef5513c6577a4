package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.temporal.io/sdk/client"
)

// HTTPChecker probes a dependency's health endpoint.
type HTTPChecker struct {
	name     string
	url      string
	critical bool
	client   *http.Client
}

// NewHTTPChecker builds a checker that GETs url and expects a 2xx.
func NewHTTPChecker(name, url string, critical bool) *HTTPChecker {
	return &HTTPChecker{
		name:     name,
		url:      url,
		critical: critical,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (h *HTTPChecker) Name() string     { return h.name }
func (h *HTTPChecker) IsCritical() bool { return h.critical }

func (h *HTTPChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	res := CheckResult{Component: h.name, Critical: h.critical, Timestamp: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res
	}
	resp, err := h.client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Status = StatusUnhealthy
		res.Error = fmt.Sprintf("status %d", resp.StatusCode)
		return res
	}
	res.Status = StatusHealthy
	return res
}

// TemporalChecker verifies the workflow service is reachable.
type TemporalChecker struct {
	client client.Client
}

// NewTemporalChecker wraps an existing Temporal client.
func NewTemporalChecker(c client.Client) *TemporalChecker {
	return &TemporalChecker{client: c}
}

func (t *TemporalChecker) Name() string     { return "temporal" }
func (t *TemporalChecker) IsCritical() bool { return true }

func (t *TemporalChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	res := CheckResult{Component: "temporal", Critical: true, Timestamp: start}
	_, err := t.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		return res
	}
	res.Status = StatusHealthy
	return res
}
