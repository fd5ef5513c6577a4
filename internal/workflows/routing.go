package workflows

import (
	"github.com/tabularis-ai/tabularis/internal/analysis"
)

// The route functions are pure: verdict plus counters in, next stage plus
// counter effects out. The workflow applies the effects; nothing here
// mutates state, which keeps every transition table-testable.

// RouteClassify picks the first branch of the pipeline.
func RouteClassify(needsAnalysis bool) Stage {
	if needsAnalysis {
		return StagePlanRequirements
	}
	return StageExplainDirect
}

// AlignmentRoute is the outcome of applying an alignment verdict under
// the iteration budget.
type AlignmentRoute struct {
	Next Stage
	// LoopBack reports that an alignment iteration was consumed.
	LoopBack bool
	// Exhausted reports that the budget cut a revise verdict short.
	Exhausted bool
}

// RouteAlignment maps the verdict to the next stage. Revise verdicts loop
// back only while iterations remain; once the budget is spent an unresolved
// revise verdict ends the session as a limitation explanation, carrying the
// gaps, the same exit cannot_proceed takes.
func RouteAlignment(status analysis.AlignmentStatus, iterations, max int) AlignmentRoute {
	switch status {
	case analysis.AlignmentAligned, analysis.AlignmentProceedWithCaveats:
		return AlignmentRoute{Next: StageSynthesizeExecute}
	case analysis.AlignmentReviseRequirements:
		if iterations < max {
			return AlignmentRoute{Next: StagePlanRequirements, LoopBack: true}
		}
		return AlignmentRoute{Next: StageExplainLimitation, Exhausted: true}
	case analysis.AlignmentReviseUnderstanding:
		if iterations < max {
			return AlignmentRoute{Next: StageProfileData, LoopBack: true}
		}
		return AlignmentRoute{Next: StageExplainLimitation, Exhausted: true}
	default: // cannot_proceed and anything unrecognized
		return AlignmentRoute{Next: StageExplainLimitation}
	}
}

// ExecutionRoute is the outcome of one execution attempt under the retry
// budget.
type ExecutionRoute struct {
	Next Stage
	// Retry reports that a code attempt was consumed for an in-place
	// re-synthesis.
	Retry bool
}

// RouteExecution sends failures back into synthesis while attempts
// remain. Once the retry budget is spent the failed result still goes to
// validation, which decides whether the failure is terminal or remediable.
// Re-entry after remediation does not pass through here with a fresh
// failure, so the attempt counter is only ever spent on immediate retries.
func RouteExecution(succeeded bool, attempts, max int) ExecutionRoute {
	if !succeeded && attempts < max {
		return ExecutionRoute{Next: StageSynthesizeExecute, Retry: true}
	}
	return ExecutionRoute{Next: StageValidateResults}
}

// RouteValidation sends valid results to findings and everything else to
// remediation.
func RouteValidation(isValid bool) Stage {
	if isValid {
		return StageExplainFindings
	}
	return StagePlanRemediation
}

// RemediationRoute is the outcome of a remediation plan under the total
// budget.
type RemediationRoute struct {
	Next Stage
	// Forced reports that the budget (or an unusable plan) forced
	// best-effort findings instead of another cycle.
	Forced bool
}

// RouteRemediation applies the plan's action. total is the remediation
// count after the plan that produced the action, so a session at the
// ceiling exits to findings regardless of what the plan asked for.
func RouteRemediation(action analysis.RemediationAction, total, max int) RemediationRoute {
	if total >= max {
		return RemediationRoute{Next: StageExplainFindings, Forced: true}
	}
	switch action {
	case analysis.RemediateRewriteCode:
		return RemediationRoute{Next: StageSynthesizeExecute}
	case analysis.RemediateReviseRequests:
		return RemediationRoute{Next: StagePlanRequirements}
	case analysis.RemediateReexamineData:
		return RemediationRoute{Next: StageProfileData}
	default:
		return RemediationRoute{Next: StageExplainFindings, Forced: true}
	}
}
