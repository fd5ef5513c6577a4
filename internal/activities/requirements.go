package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/analysis"
	"github.com/tabularis-ai/tabularis/internal/oracle"
)

// PlanRequirements turns the question plus dataset metadata into formal
// analysis requirements. On a remediation cycle the plan's guidance rides
// along so the oracle revises rather than restates.
func (a *Activities) PlanRequirements(ctx context.Context, in PlanRequirementsInput) (analysis.Requirements, error) {
	a.emit(in.SessionID, "plan_requirements", "started", "")

	found, _ := a.registry.Resolve(in.DatasetIDs)
	req, err := a.oracle.PlanRequirements(ctx, oracle.RequirementsRequest{
		Question:            in.Question,
		DatasetSummaries:    summarizeDatasets(found),
		RemediationGuidance: in.RemediationGuidance,
	})
	a.stageDone(in.SessionID, "plan_requirements", err)
	if err != nil {
		return analysis.Requirements{}, err
	}

	a.logger.Info("Requirements planned",
		zap.String("session_id", in.SessionID),
		zap.String("analysis_kind", string(req.AnalysisKind)),
		zap.Int("variables_needed", len(req.VariablesNeeded)),
	)
	return req, nil
}
