package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/analysis"
	"github.com/tabularis-ai/tabularis/internal/oracle"
)

// CheckAlignment judges whether the profiled data can answer the planned
// requirements. The verdict drives the only loop that may revisit
// planning, so the oracle's status is validated strictly here.
func (a *Activities) CheckAlignment(ctx context.Context, in CheckAlignmentInput) (analysis.AlignmentResult, error) {
	a.emit(in.SessionID, "check_alignment", "started", "")

	res, err := a.oracle.CheckAlignment(ctx, oracle.AlignmentRequest{
		Requirements: in.Requirements,
		DataProfile:  in.Profile,
	})
	a.stageDone(in.SessionID, "check_alignment", err)
	if err != nil {
		return analysis.AlignmentResult{}, err
	}

	a.logger.Info("Alignment checked",
		zap.String("session_id", in.SessionID),
		zap.String("status", string(res.Status)),
		zap.Int("gaps", len(res.Gaps)),
		zap.Int("caveats", len(res.Caveats)),
	)
	return res, nil
}
