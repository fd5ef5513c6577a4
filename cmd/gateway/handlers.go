package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/analysis"
	"github.com/tabularis-ai/tabularis/internal/auth"
	"github.com/tabularis-ai/tabularis/internal/metrics"
	"github.com/tabularis-ai/tabularis/internal/tracing"
	"github.com/tabularis-ai/tabularis/internal/workflows"
)

// sessionTimeout bounds how long the gateway waits for one question. The
// workflow's own loop budgets finish far sooner in practice.
const sessionTimeout = 10 * time.Minute

type tokenRequest struct {
	ClientID string `json:"client_id"`
	APIKey   string `json:"api_key"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func newTokenHandler(m *auth.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request", http.StatusBadRequest)
			return
		}
		token, err := m.Exchange(req.ClientID, req.APIKey)
		if err != nil {
			logger.Warn("Token exchange rejected", zap.String("client_id", req.ClientID))
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int(time.Hour.Seconds()),
		})
	}
}

type questionRequest struct {
	Question   string   `json:"question"`
	DatasetIDs []string `json:"dataset_ids"`
	SessionID  string   `json:"session_id,omitempty"`
}

type questionResponse struct {
	SessionID  string          `json:"session_id"`
	Kind       string          `json:"kind"`
	Body       string          `json:"body"`
	Code       string          `json:"code,omitempty"`
	ResultText string          `json:"result_text,omitempty"`
	FigureJSON json.RawMessage `json:"figure_json,omitempty"`
	Caveats    []string        `json:"caveats"`
	Confidence float64         `json:"confidence,omitempty"`
}

type questionHandler struct {
	temporal client.Client
	logger   *zap.Logger
}

func newQuestionHandler(c client.Client, logger *zap.Logger) *questionHandler {
	return &questionHandler{temporal: c, logger: logger}
}

// submit starts one analysis session and blocks until its terminal output.
func (h *questionHandler) submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "q_" + uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(r.Context(), sessionTimeout)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "gateway.submit_question")
	defer span.End()

	claims, _ := auth.ClaimsFromContext(r.Context())
	clientID := ""
	if claims != nil {
		clientID = claims.ClientID
	}
	h.logger.Info("Question submitted",
		zap.String("session_id", sessionID),
		zap.String("client_id", clientID),
		zap.Int("datasets", len(req.DatasetIDs)),
	)
	metrics.SessionsStarted.Inc()
	start := time.Now()

	run, err := h.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        sessionID,
		TaskQueue: workflows.TaskQueue,
	}, workflows.AnalysisWorkflow, workflows.AnalysisInput{
		SessionID:  sessionID,
		Question:   req.Question,
		DatasetIDs: req.DatasetIDs,
	})
	if err != nil {
		h.logger.Error("Failed to start session", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "failed to start analysis", http.StatusServiceUnavailable)
		return
	}

	var out analysis.Output
	if err := run.Get(ctx, &out); err != nil {
		// The client went away or timed out: cancel the session so no
		// further oracle calls are spent on an unwanted answer.
		if ctx.Err() != nil {
			cancelCtx, cancelDone := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelDone()
			if cerr := h.temporal.CancelWorkflow(cancelCtx, run.GetID(), run.GetRunID()); cerr != nil {
				h.logger.Warn("Failed to cancel session", zap.String("session_id", sessionID), zap.Error(cerr))
			}
			http.Error(w, "analysis cancelled", statusForContext(ctx.Err()))
			return
		}
		var canceled *temporal.CanceledError
		if errors.As(err, &canceled) {
			http.Error(w, "analysis cancelled", http.StatusRequestTimeout)
			return
		}
		h.logger.Error("Session failed", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "analysis failed", http.StatusInternalServerError)
		return
	}

	metrics.SessionsCompleted.WithLabelValues(string(out.Kind)).Inc()
	metrics.SessionDuration.Observe(time.Since(start).Seconds())
	h.logger.Info("Question answered",
		zap.String("session_id", sessionID),
		zap.String("kind", string(out.Kind)),
		zap.Duration("elapsed", time.Since(start)),
	)

	resp := questionResponse{
		SessionID:  sessionID,
		Kind:       string(out.Kind),
		Body:       out.Body,
		Code:       out.Code,
		ResultText: out.ResultText,
		Caveats:    out.Caveats,
		Confidence: out.Confidence,
	}
	if out.FigureJSON != "" {
		resp.FigureJSON = json.RawMessage(out.FigureJSON)
	}
	if resp.Caveats == nil {
		resp.Caveats = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusForContext(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusRequestTimeout
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
