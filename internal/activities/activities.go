// Package activities implements the stage nodes of the analysis pipeline.
// Each activity is a thin adapter: it assembles the stage's context from
// its input, calls the Reasoning Oracle or the Code Sandbox, and returns a
// typed result. Loop bounds and routing live in the workflow, never here.
package activities

import (
	"time"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/config"
	"github.com/tabularis-ai/tabularis/internal/dataset"
	ometrics "github.com/tabularis-ai/tabularis/internal/metrics"
	"github.com/tabularis-ai/tabularis/internal/oracle"
	"github.com/tabularis-ai/tabularis/internal/sandbox"
	"github.com/tabularis-ai/tabularis/internal/streaming"
)

// Activities bundles the dependencies shared by all stage activities.
type Activities struct {
	oracle   oracle.Client
	runner   sandbox.Runner
	registry *dataset.Registry
	hub      *streaming.Hub
	cfg      func() *config.Config
	logger   *zap.Logger
}

// New builds the activity set. cfg is called per activity invocation so a
// hot-reloaded configuration takes effect on the next stage, not mid-stage.
func New(
	oc oracle.Client,
	runner sandbox.Runner,
	registry *dataset.Registry,
	hub *streaming.Hub,
	cfg func() *config.Config,
	logger *zap.Logger,
) *Activities {
	return &Activities{
		oracle:   oc,
		runner:   runner,
		registry: registry,
		hub:      hub,
		cfg:      cfg,
		logger:   logger,
	}
}

// emit publishes a stage event for dashboard subscribers; it never blocks.
func (a *Activities) emit(sessionID, stage, status, message string) {
	if a.hub == nil {
		return
	}
	a.hub.Publish(streaming.StageEvent{
		SessionID: sessionID,
		Stage:     stage,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func (a *Activities) stageDone(sessionID, stage string, err error) {
	if err != nil {
		ometrics.StagesExecuted.WithLabelValues(stage, "failed").Inc()
		a.emit(sessionID, stage, "failed", err.Error())
		return
	}
	ometrics.StagesExecuted.WithLabelValues(stage, "ok").Inc()
	a.emit(sessionID, stage, "completed", "")
}
