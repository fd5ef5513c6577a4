package workflows

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/tabularis-ai/tabularis/internal/activities"
	"github.com/tabularis-ai/tabularis/internal/analysis"
	ometrics "github.com/tabularis-ai/tabularis/internal/metrics"
)

// maxStageDispatches is a hard ceiling on stage executions per session.
// The loop budgets make this unreachable; it exists so a routing bug can
// never burn oracle calls forever.
const maxStageDispatches = 64

// AnalysisWorkflow drives one question through the pipeline. All oracle
// and sandbox work happens in activities with SDK retries disabled: a
// failed stage is a domain outcome the routing table spends a bounded
// loop on, not a transient to paper over. The workflow ends with exactly
// one terminal Output, or with an error and none if it is cancelled.
func AnalysisWorkflow(ctx workflow.Context, input AnalysisInput) (analysis.Output, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting AnalysisWorkflow",
		"session_id", input.SessionID,
		"datasets", len(input.DatasetIDs),
	)

	cfgCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	var cfg activities.WorkflowConfig
	if err := workflow.ExecuteActivity(cfgCtx, "GetWorkflowConfig").Get(ctx, &cfg); err != nil {
		return analysis.Output{}, fmt.Errorf("load workflow config: %w", err)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	state := &SessionState{Stage: StageClassify}
	var out *analysis.Output

	for dispatches := 0; out == nil; dispatches++ {
		if dispatches >= maxStageDispatches {
			return analysis.Output{}, fmt.Errorf("session %s exceeded %d stage dispatches", input.SessionID, maxStageDispatches)
		}

		switch state.Stage {

		case StageClassify:
			var cls activities.ClassifyResult
			err := workflow.ExecuteActivity(ctx, "Classify", activities.ClassifyInput{
				SessionID:  input.SessionID,
				Question:   input.Question,
				DatasetIDs: input.DatasetIDs,
			}).Get(ctx, &cls)
			if err != nil {
				if temporal.IsCanceledError(err) {
					return analysis.Output{}, err
				}
				logger.Warn("Classification failed, answering conceptually", "error", err)
				state.AddCaveats("the question could not be classified against the data; this answer does not use the datasets")
				state.Stage = StageExplainDirect
				continue
			}
			state.Stage = RouteClassify(cls.NeedsAnalysis)

		case StagePlanRequirements:
			var req analysis.Requirements
			err := workflow.ExecuteActivity(ctx, "PlanRequirements", activities.PlanRequirementsInput{
				SessionID:           input.SessionID,
				Question:            input.Question,
				DatasetIDs:          input.DatasetIDs,
				RemediationGuidance: state.RemediationGuidance,
			}).Get(ctx, &req)
			if err != nil {
				if temporal.IsCanceledError(err) {
					return analysis.Output{}, err
				}
				state.Gaps = []string{"analysis requirements could not be planned: " + err.Error()}
				state.Stage = StageExplainLimitation
				continue
			}
			state.Requirements = req
			state.RemediationGuidance = ""
			state.Stage = StageProfileData

		case StageProfileData:
			var res activities.ProfileDataResult
			err := workflow.ExecuteActivity(ctx, "ProfileData", activities.ProfileDataInput{
				SessionID:           input.SessionID,
				Question:            input.Question,
				Requirements:        state.Requirements,
				DatasetIDs:          input.DatasetIDs,
				RemediationGuidance: state.RemediationGuidance,
			}).Get(ctx, &res)
			if err != nil {
				if temporal.IsCanceledError(err) {
					return analysis.Output{}, err
				}
				state.Gaps = []string{"the datasets could not be profiled: " + err.Error()}
				state.Stage = StageExplainLimitation
				continue
			}
			state.Profile = res.Profile
			state.RemediationGuidance = ""
			state.Stage = StageCheckAlignment

		case StageCheckAlignment:
			var res analysis.AlignmentResult
			err := workflow.ExecuteActivity(ctx, "CheckAlignment", activities.CheckAlignmentInput{
				SessionID:    input.SessionID,
				Requirements: state.Requirements,
				Profile:      state.Profile,
			}).Get(ctx, &res)
			if err != nil {
				if temporal.IsCanceledError(err) {
					return analysis.Output{}, err
				}
				state.Gaps = []string{"requirements could not be checked against the data: " + err.Error()}
				state.Stage = StageExplainLimitation
				continue
			}
			state.Alignment = res
			state.AddCaveats(res.Caveats...)

			route := RouteAlignment(res.Status, state.AlignmentIterations, cfg.MaxAlignmentIterations)
			if route.LoopBack {
				state.AlignmentIterations++
				state.RemediationGuidance = "address these alignment gaps: " + strings.Join(res.Gaps, "; ")
			}
			if route.Exhausted {
				ometrics.LoopExhaustions.WithLabelValues("alignment").Inc()
				state.AddCaveats(fmt.Sprintf("data alignment concerns remained unresolved after %d revisions", state.AlignmentIterations))
			}
			if route.Next == StageExplainLimitation {
				state.Gaps = res.Gaps
			}
			state.Stage = route.Next

		case StageSynthesizeExecute:
			in := activities.ExecuteAnalysisInput{
				SessionID:           input.SessionID,
				Question:            input.Question,
				Requirements:        state.Requirements,
				Profile:             state.Profile,
				DatasetIDs:          input.DatasetIDs,
				RemediationGuidance: state.RemediationGuidance,
				BudgetSeconds:       cfg.SandboxBudgetSeconds,
			}
			if state.Execution.Code != "" {
				in.PreviousCode = state.Execution.Code
				if !state.Execution.Succeeded {
					in.PreviousError = state.Execution.Error
				}
			}
			var res analysis.ExecutionResult
			if err := workflow.ExecuteActivity(ctx, "ExecuteAnalysis", in).Get(ctx, &res); err != nil {
				return analysis.Output{}, err
			}
			state.Execution = res
			state.RemediationGuidance = ""

			route := RouteExecution(res.Succeeded, state.CodeAttempts, cfg.MaxCodeAttempts)
			if route.Retry {
				state.CodeAttempts++
				logger.Info("Execution failed, retrying synthesis",
					"attempt", state.CodeAttempts,
					"error", res.Error,
				)
			}
			if !res.Succeeded && !route.Retry {
				ometrics.LoopExhaustions.WithLabelValues("code").Inc()
			}
			state.Stage = route.Next

		case StageValidateResults:
			var eval analysis.Evaluation
			if err := workflow.ExecuteActivity(ctx, "ValidateResults", activities.ValidateResultsInput{
				SessionID:    input.SessionID,
				Question:     input.Question,
				Requirements: state.Requirements,
				Execution:    state.Execution,
			}).Get(ctx, &eval); err != nil {
				return analysis.Output{}, err
			}
			state.Evaluation = eval
			state.Stage = RouteValidation(eval.IsValid)

		case StagePlanRemediation:
			state.TotalRemediations++
			var plan analysis.RemediationPlan
			err := workflow.ExecuteActivity(ctx, "PlanRemediation", activities.PlanRemediationInput{
				SessionID:    input.SessionID,
				Question:     input.Question,
				Evaluation:   state.Evaluation,
				Execution:    state.Execution,
				Requirements: state.Requirements,
				Profile:      state.Profile,
			}).Get(ctx, &plan)
			if err != nil {
				if temporal.IsCanceledError(err) {
					return analysis.Output{}, err
				}
				state.AddCaveats("a remediation plan could not be produced; reporting best-effort findings")
				state.Stage = StageExplainFindings
				continue
			}
			state.Remediation = plan

			route := RouteRemediation(plan.Action, state.TotalRemediations, cfg.MaxTotalRemediations)
			if route.Forced {
				state.RemediationsExhausted = true
				ometrics.LoopExhaustions.WithLabelValues("remediation").Inc()
				state.AddCaveats(fmt.Sprintf("the remediation budget (%d) was spent without a clean result; findings are best effort", cfg.MaxTotalRemediations))
			} else {
				state.RemediationGuidance = plan.Guidance
			}
			state.Stage = route.Next

		case StageExplainDirect:
			res, err := explain(ctx, activities.ExplainInput{
				SessionID: input.SessionID,
				Mode:      activities.ExplainDirect,
				Question:  input.Question,
				Caveats:   state.Caveats,
			})
			if err != nil {
				return analysis.Output{}, err
			}
			out = &analysis.Output{
				Kind:    analysis.OutputKindExplanation,
				Body:    res.Answer,
				Caveats: state.Caveats,
			}

		case StageExplainLimitation:
			res, err := explain(ctx, activities.ExplainInput{
				SessionID: input.SessionID,
				Mode:      activities.ExplainLimitation,
				Question:  input.Question,
				Gaps:      state.Gaps,
				Caveats:   state.Caveats,
			})
			if err != nil {
				return analysis.Output{}, err
			}
			// A limitation is still an explanation of the question; the
			// error kind is reserved for executions that failed outright.
			out = &analysis.Output{
				Kind:    analysis.OutputKindExplanation,
				Body:    res.Answer,
				Caveats: state.Caveats,
			}

		case StageExplainFindings:
			res, err := explain(ctx, activities.ExplainInput{
				SessionID:             input.SessionID,
				Mode:                  activities.ExplainFindings,
				Question:              input.Question,
				Caveats:               state.Caveats,
				Requirements:          &state.Requirements,
				Execution:             &state.Execution,
				Evaluation:            &state.Evaluation,
				RemediationsExhausted: state.RemediationsExhausted,
			})
			if err != nil {
				return analysis.Output{}, err
			}
			out = &analysis.Output{
				Kind:       findingsKind(state.Execution),
				Body:       res.Answer,
				Code:       state.Execution.Code,
				ResultText: state.Execution.ResultText,
				FigureJSON: state.Execution.FigureJSON,
				Caveats:    state.Caveats,
				Confidence: state.Evaluation.Confidence,
			}

		default:
			return analysis.Output{}, fmt.Errorf("session %s reached unknown stage %q", input.SessionID, state.Stage)
		}
	}

	logger.Info("AnalysisWorkflow complete",
		"session_id", input.SessionID,
		"output_kind", string(out.Kind),
		"alignment_iterations", state.AlignmentIterations,
		"code_attempts", state.CodeAttempts,
		"total_remediations", state.TotalRemediations,
	)
	return *out, nil
}

func explain(ctx workflow.Context, in activities.ExplainInput) (activities.ExplainResult, error) {
	var res activities.ExplainResult
	err := workflow.ExecuteActivity(ctx, "Explain", in).Get(ctx, &res)
	return res, err
}

// findingsKind maps the last execution onto the terminal output union.
func findingsKind(exec analysis.ExecutionResult) analysis.OutputKind {
	if !exec.Succeeded {
		return analysis.OutputKindError
	}
	if exec.OutputType == analysis.OutputFigure {
		return analysis.OutputKindVisualization
	}
	return analysis.OutputKindAnalysis
}
