package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/analysis"
	"github.com/tabularis-ai/tabularis/internal/oracle"
)

// PlanRemediation diagnoses a failed or invalid cycle and picks the stage
// to re-enter. Errors propagate: the workflow counts this stage against
// the remediation budget and falls through to findings when the plan
// itself cannot be produced.
func (a *Activities) PlanRemediation(ctx context.Context, in PlanRemediationInput) (analysis.RemediationPlan, error) {
	a.emit(in.SessionID, "plan_remediation", "started", "")

	plan, err := a.oracle.PlanRemediation(ctx, oracle.RemediationRequest{
		Question:     in.Question,
		Evaluation:   in.Evaluation,
		Execution:    in.Execution,
		Requirements: in.Requirements,
		DataProfile:  in.Profile,
	})
	a.stageDone(in.SessionID, "plan_remediation", err)
	if err != nil {
		return analysis.RemediationPlan{}, err
	}

	a.logger.Info("Remediation planned",
		zap.String("session_id", in.SessionID),
		zap.String("action", string(plan.Action)),
		zap.String("root_cause", plan.RootCause),
	)
	return plan, nil
}
