package oracle

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
	"golang.org/x/time/rate"

	"github.com/tabularis-ai/tabularis/internal/analysis"
	"github.com/tabularis-ai/tabularis/internal/circuitbreaker"
	ometrics "github.com/tabularis-ai/tabularis/internal/metrics"
	"github.com/tabularis-ai/tabularis/internal/profiler"
)

// Client is the reasoning-service boundary used by the stage activities.
// Implementations must be safe for concurrent use across sessions.
type Client interface {
	Classify(ctx context.Context, req ClassifyRequest) (ClassifyDecision, error)
	PlanRequirements(ctx context.Context, req RequirementsRequest) (analysis.Requirements, error)
	SelectColumns(ctx context.Context, req SelectColumnsRequest) ([]profiler.ColumnRef, error)
	ProfileData(ctx context.Context, req ProfileRequest) (analysis.DataProfile, error)
	CheckAlignment(ctx context.Context, req AlignmentRequest) (analysis.AlignmentResult, error)
	Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeDecision, error)
	Validate(ctx context.Context, req ValidateRequest) (analysis.Evaluation, error)
	PlanRemediation(ctx context.Context, req RemediationRequest) (analysis.RemediationPlan, error)
	Explain(ctx context.Context, req ExplainRequest) (ExplainDecision, error)
}

// ClassifyRequest carries the raw question plus a one-line inventory of the
// datasets in scope.
type ClassifyRequest struct {
	Question         string   `json:"question"`
	DatasetSummaries []string `json:"dataset_summaries"`
}

type RequirementsRequest struct {
	Question            string   `json:"question"`
	DatasetSummaries    []string `json:"dataset_summaries"`
	RemediationGuidance string   `json:"remediation_guidance,omitempty"`
}

type SelectColumnsRequest struct {
	Question        string   `json:"question"`
	CompactOverview string   `json:"compact_overview"`
	VariablesNeeded []string `json:"variables_needed"`
	MaxColumns      int      `json:"max_columns"`
}

type ProfileRequest struct {
	Question            string                `json:"question"`
	Requirements        analysis.Requirements `json:"requirements"`
	ProfileArtifact     string                `json:"profile_artifact"`
	RemediationGuidance string                `json:"remediation_guidance,omitempty"`
}

type AlignmentRequest struct {
	Requirements analysis.Requirements `json:"requirements"`
	DataProfile  analysis.DataProfile  `json:"data_profile"`
}

type SynthesizeRequest struct {
	Question            string                `json:"question"`
	Requirements        analysis.Requirements `json:"requirements"`
	DataProfile         analysis.DataProfile  `json:"data_profile"`
	ExecutionContext    map[string]string     `json:"execution_context"`
	PreviousCode        string                `json:"previous_code,omitempty"`
	PreviousError       string                `json:"previous_error,omitempty"`
	RemediationGuidance string                `json:"remediation_guidance,omitempty"`
}

type ValidateRequest struct {
	Question     string                   `json:"question"`
	Requirements analysis.Requirements    `json:"requirements"`
	Execution    analysis.ExecutionResult `json:"execution"`
}

type RemediationRequest struct {
	Question     string                   `json:"question"`
	Evaluation   analysis.Evaluation      `json:"evaluation"`
	Execution    analysis.ExecutionResult `json:"execution"`
	Requirements analysis.Requirements    `json:"requirements"`
	DataProfile  analysis.DataProfile     `json:"data_profile"`
}

// ExplainMode selects which terminal framing the oracle produces.
type ExplainMode string

const (
	ExplainDirect     ExplainMode = "direct"      // conceptual answer, no data access
	ExplainLimitation ExplainMode = "limitation"  // could not proceed; name the gaps
	ExplainFindings   ExplainMode = "findings"    // results, caveats, best-effort notes
)

type ExplainRequest struct {
	Mode                 ExplainMode               `json:"mode"`
	Question             string                    `json:"question"`
	Gaps                 []string                  `json:"gaps,omitempty"`
	Caveats              []string                  `json:"caveats,omitempty"`
	Requirements         *analysis.Requirements    `json:"requirements,omitempty"`
	Execution            *analysis.ExecutionResult `json:"execution,omitempty"`
	Evaluation           *analysis.Evaluation      `json:"evaluation,omitempty"`
	RemediationsExhausted bool                     `json:"remediations_exhausted,omitempty"`
}

// HTTPClient talks to the reasoning service over HTTP, one route per stage.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

// NewHTTPClient builds a client for the given base URL. rps bounds the
// request rate across all concurrent sessions; zero disables limiting.
func NewHTTPClient(baseURL string, timeout time.Duration, rps float64, logger *zap.Logger) *HTTPClient {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		breaker: circuitbreaker.New("oracle", circuitbreaker.DefaultConfig(), logger),
		logger:  logger,
	}
}

func (c *HTTPClient) post(ctx context.Context, stage, path string, body interface{}) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("oracle %s: %w", stage, err)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("oracle %s: marshal request: %w", stage, err)
	}

	var raw []byte
	err = c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			ometrics.OracleRequests.WithLabelValues(stage, "transport_error").Inc()
			return err
		}
		defer resp.Body.Close()

		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			ometrics.OracleRequests.WithLabelValues(stage, "transport_error").Inc()
			return fmt.Errorf("read response: %w", err)
		}
		ometrics.OracleLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			ometrics.OracleRequests.WithLabelValues(stage, "http_error").Inc()
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrProbeLimit) {
			ometrics.OracleRequests.WithLabelValues(stage, "breaker_open").Inc()
		}
		return nil, fmt.Errorf("oracle %s: %w", stage, err)
	}
	ometrics.OracleRequests.WithLabelValues(stage, "ok").Inc()
	return raw, nil
}

// call performs the request and parses the stage decision, tracking schema
// violations separately from transport faults.
func call[T any](c *HTTPClient, ctx context.Context, stage, path string, body interface{}, parse func([]byte) (T, error)) (T, error) {
	var zero T
	raw, err := c.post(ctx, stage, path, body)
	if err != nil {
		return zero, err
	}
	out, err := parse(raw)
	if err != nil {
		ometrics.OracleSchemaViolations.WithLabelValues(stage).Inc()
		c.logger.Warn("Oracle schema violation",
			zap.String("stage", stage),
			zap.Error(err),
		)
		return zero, err
	}
	return out, nil
}

func (c *HTTPClient) Classify(ctx context.Context, req ClassifyRequest) (ClassifyDecision, error) {
	return call(c, ctx, "classify", "/v1/classify", req, parseClassify)
}

func (c *HTTPClient) PlanRequirements(ctx context.Context, req RequirementsRequest) (analysis.Requirements, error) {
	return call(c, ctx, "requirements", "/v1/requirements", req, parseRequirements)
}

func (c *HTTPClient) SelectColumns(ctx context.Context, req SelectColumnsRequest) ([]profiler.ColumnRef, error) {
	return call(c, ctx, "select_columns", "/v1/select_columns", req, parseSelectColumns)
}

func (c *HTTPClient) ProfileData(ctx context.Context, req ProfileRequest) (analysis.DataProfile, error) {
	return call(c, ctx, "profile", "/v1/profile", req, parseProfile)
}

func (c *HTTPClient) CheckAlignment(ctx context.Context, req AlignmentRequest) (analysis.AlignmentResult, error) {
	return call(c, ctx, "alignment", "/v1/alignment", req, parseAlignment)
}

func (c *HTTPClient) Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeDecision, error) {
	return call(c, ctx, "synthesize", "/v1/synthesize", req, parseSynthesize)
}

func (c *HTTPClient) Validate(ctx context.Context, req ValidateRequest) (analysis.Evaluation, error) {
	return call(c, ctx, "validate", "/v1/validate", req, parseValidate)
}

func (c *HTTPClient) PlanRemediation(ctx context.Context, req RemediationRequest) (analysis.RemediationPlan, error) {
	return call(c, ctx, "remediate", "/v1/remediate", req, parseRemediation)
}

func (c *HTTPClient) Explain(ctx context.Context, req ExplainRequest) (ExplainDecision, error) {
	return call(c, ctx, "explain", "/v1/explain", req, parseExplain)
}
