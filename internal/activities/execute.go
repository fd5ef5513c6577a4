package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/analysis"
	"github.com/tabularis-ai/tabularis/internal/oracle"
	"github.com/tabularis-ai/tabularis/internal/sandbox"
)

// ExecuteAnalysis synthesizes analysis code and runs it in the sandbox.
// Every failure mode, including an unusable synthesis response and a
// sandbox timeout, comes back as a failed ExecutionResult so the workflow
// can spend a bounded retry on it. The error return is reserved for
// cancellation.
func (a *Activities) ExecuteAnalysis(ctx context.Context, in ExecuteAnalysisInput) (analysis.ExecutionResult, error) {
	a.emit(in.SessionID, "synthesize_execute", "started", "")

	found, _ := a.registry.Resolve(in.DatasetIDs)
	decision, err := a.oracle.Synthesize(ctx, oracle.SynthesizeRequest{
		Question:            in.Question,
		Requirements:        in.Requirements,
		DataProfile:         in.Profile,
		ExecutionContext:    executionContext(found),
		PreviousCode:        in.PreviousCode,
		PreviousError:       in.PreviousError,
		RemediationGuidance: in.RemediationGuidance,
	})
	if err != nil {
		if ctx.Err() != nil {
			a.stageDone(in.SessionID, "synthesize_execute", ctx.Err())
			return analysis.ExecutionResult{}, ctx.Err()
		}
		a.logger.Warn("Code synthesis failed",
			zap.String("session_id", in.SessionID),
			zap.Error(err),
		)
		res := analysis.ExecutionResult{
			Succeeded: false,
			Code:      in.PreviousCode,
			Error:     "code synthesis failed: " + err.Error(),
		}
		a.stageDone(in.SessionID, "synthesize_execute", nil)
		return res, nil
	}

	run, err := a.runner.Execute(ctx, sandbox.Request{
		Code:           decision.Code,
		DatasetIDs:     in.DatasetIDs,
		TimeoutSeconds: in.BudgetSeconds,
	})
	if err != nil {
		a.stageDone(in.SessionID, "synthesize_execute", err)
		return analysis.ExecutionResult{}, err
	}

	res := analysis.ExecutionResult{
		Succeeded:  run.Succeeded,
		Code:       decision.Code,
		OutputType: analysis.OutputType(run.OutputType),
		ResultText: run.ResultText,
		FigureJSON: run.FigureJSON,
		Error:      run.Error,
	}
	a.stageDone(in.SessionID, "synthesize_execute", nil)
	a.logger.Info("Analysis executed",
		zap.String("session_id", in.SessionID),
		zap.Bool("succeeded", res.Succeeded),
		zap.String("output_type", string(res.OutputType)),
	)
	return res, nil
}
