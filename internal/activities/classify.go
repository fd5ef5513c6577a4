package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/oracle"
)

// Classify decides whether the question needs data work or a direct
// conceptual answer. One-shot: a wrong call here is corrected downstream by
// the alignment stage's cannot_proceed path, never by re-classifying.
func (a *Activities) Classify(ctx context.Context, in ClassifyInput) (ClassifyResult, error) {
	a.emit(in.SessionID, "classify", "started", "")

	found, _ := a.registry.Resolve(in.DatasetIDs)
	decision, err := a.oracle.Classify(ctx, oracle.ClassifyRequest{
		Question:         in.Question,
		DatasetSummaries: summarizeDatasets(found),
	})
	a.stageDone(in.SessionID, "classify", err)
	if err != nil {
		return ClassifyResult{}, err
	}

	a.logger.Info("Question classified",
		zap.String("session_id", in.SessionID),
		zap.Bool("needs_analysis", decision.NeedsAnalysis),
	)
	return ClassifyResult{NeedsAnalysis: decision.NeedsAnalysis, Reasoning: decision.Reasoning}, nil
}
