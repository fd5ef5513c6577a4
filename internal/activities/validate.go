package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/analysis"
	"github.com/tabularis-ai/tabularis/internal/oracle"
)

// ValidateResults asks the oracle whether the execution output actually
// answers the question. An oracle fault here degrades to an invalid
// verdict so the remediation loop, not the activity, decides what happens
// next.
func (a *Activities) ValidateResults(ctx context.Context, in ValidateResultsInput) (analysis.Evaluation, error) {
	a.emit(in.SessionID, "validate_results", "started", "")

	eval, err := a.oracle.Validate(ctx, oracle.ValidateRequest{
		Question:     in.Question,
		Requirements: in.Requirements,
		Execution:    in.Execution,
	})
	if err != nil {
		if ctx.Err() != nil {
			a.stageDone(in.SessionID, "validate_results", ctx.Err())
			return analysis.Evaluation{}, ctx.Err()
		}
		a.logger.Warn("Validation call failed, treating results as unverified",
			zap.String("session_id", in.SessionID),
			zap.Error(err),
		)
		eval = analysis.Evaluation{
			IsValid:    false,
			Issues:     []string{"result validation unavailable: " + err.Error()},
			Confidence: 0,
		}
		a.stageDone(in.SessionID, "validate_results", nil)
		return eval, nil
	}

	a.stageDone(in.SessionID, "validate_results", nil)
	a.logger.Info("Results validated",
		zap.String("session_id", in.SessionID),
		zap.Bool("valid", eval.IsValid),
		zap.Float64("confidence", eval.Confidence),
	)
	return eval, nil
}
