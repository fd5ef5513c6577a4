package activities

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/oracle"
)

// Explain produces the terminal answer text for any of the three exit
// framings. This is the pipeline's sink: if the oracle itself fails, a
// deterministic local rendering of the session state is returned instead,
// so every session that reaches a terminal stage produces output.
func (a *Activities) Explain(ctx context.Context, in ExplainInput) (ExplainResult, error) {
	a.emit(in.SessionID, "explain", "started", "")

	decision, err := a.oracle.Explain(ctx, oracle.ExplainRequest{
		Mode:                  oracle.ExplainMode(in.Mode),
		Question:              in.Question,
		Gaps:                  in.Gaps,
		Caveats:               in.Caveats,
		Requirements:          in.Requirements,
		Execution:             in.Execution,
		Evaluation:            in.Evaluation,
		RemediationsExhausted: in.RemediationsExhausted,
	})
	if err != nil {
		if ctx.Err() != nil {
			a.stageDone(in.SessionID, "explain", ctx.Err())
			return ExplainResult{}, ctx.Err()
		}
		a.logger.Warn("Explanation call failed, using built-in fallback",
			zap.String("session_id", in.SessionID),
			zap.String("mode", string(in.Mode)),
			zap.Error(err),
		)
		a.stageDone(in.SessionID, "explain", nil)
		return ExplainResult{Answer: fallbackAnswer(in), Degraded: true}, nil
	}

	a.stageDone(in.SessionID, "explain", nil)
	a.logger.Info("Answer explained",
		zap.String("session_id", in.SessionID),
		zap.String("mode", string(in.Mode)),
	)
	return ExplainResult{Answer: decision.Answer}, nil
}

// fallbackAnswer renders the session state without oracle help. Plain and
// complete beats eloquent here: the caveats and gaps must survive even
// when the reasoning service is down.
func fallbackAnswer(in ExplainInput) string {
	var b strings.Builder
	switch in.Mode {
	case ExplainLimitation:
		b.WriteString("This question could not be answered with the available data.")
		if len(in.Gaps) > 0 {
			b.WriteString("\n\nBlocking gaps:\n")
			for _, g := range in.Gaps {
				fmt.Fprintf(&b, "- %s\n", g)
			}
		}
	case ExplainFindings:
		if in.Execution != nil && in.Execution.Succeeded {
			b.WriteString("Analysis results:\n")
			b.WriteString(in.Execution.ResultText)
		} else {
			b.WriteString("The analysis did not produce usable results.")
			if in.Execution != nil && in.Execution.Error != "" {
				fmt.Fprintf(&b, " Last error: %s", in.Execution.Error)
			}
		}
		if in.RemediationsExhausted {
			b.WriteString("\n\nThe remediation budget was exhausted; these are best-effort findings.")
		}
	default: // direct conceptual answer, no data ran
		fmt.Fprintf(&b, "Unable to generate a full explanation for: %q. ", in.Question)
		b.WriteString("The reasoning service did not return a usable answer; please retry.")
	}
	if len(in.Caveats) > 0 {
		b.WriteString("\n\nCaveats:\n")
		for _, c := range in.Caveats {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
