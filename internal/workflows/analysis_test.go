package workflows

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/tabularis-ai/tabularis/internal/activities"
	"github.com/tabularis-ai/tabularis/internal/analysis"
)

var testInput = AnalysisInput{
	SessionID:  "test-session",
	Question:   "Is there a correlation between age and income?",
	DatasetIDs: []string{"ds_1"},
}

var testConfig = activities.WorkflowConfig{
	MaxAlignmentIterations: 2,
	MaxCodeAttempts:        2,
	MaxTotalRemediations:   3,
	CompactThreshold:       30,
	MaxDetailed:            40,
	SandboxBudgetSeconds:   60,
}

// pipelineStubs is the stage behavior for one workflow test. Each field
// defaults to the happy path; tests override the stages they exercise.
type pipelineStubs struct {
	classify  func(context.Context, activities.ClassifyInput) (activities.ClassifyResult, error)
	plan      func(activities.PlanRequirementsInput) (analysis.Requirements, error)
	profile   func(activities.ProfileDataInput) (activities.ProfileDataResult, error)
	align     func(activities.CheckAlignmentInput) (analysis.AlignmentResult, error)
	execute   func(activities.ExecuteAnalysisInput) (analysis.ExecutionResult, error)
	validate  func(activities.ValidateResultsInput) (analysis.Evaluation, error)
	remediate func(activities.PlanRemediationInput) (analysis.RemediationPlan, error)
	explain   func(activities.ExplainInput) (activities.ExplainResult, error)
}

func happyStubs() *pipelineStubs {
	return &pipelineStubs{
		classify: func(context.Context, activities.ClassifyInput) (activities.ClassifyResult, error) {
			return activities.ClassifyResult{NeedsAnalysis: true, Reasoning: "needs data"}, nil
		},
		plan: func(activities.PlanRequirementsInput) (analysis.Requirements, error) {
			return analysis.Requirements{
				VariablesNeeded: []string{"age", "income"},
				AnalysisKind:    analysis.KindCorrelation,
				SuccessCriteria: "a correlation coefficient with significance",
			}, nil
		},
		profile: func(activities.ProfileDataInput) (activities.ProfileDataResult, error) {
			return activities.ProfileDataResult{
				Profile: analysis.DataProfile{
					AvailableColumns: []string{"age", "income"},
					IsSuitable:       true,
					Artifact:         "age: numeric\nincome: numeric",
				},
				DetailedColumns: 2,
			}, nil
		},
		align: func(activities.CheckAlignmentInput) (analysis.AlignmentResult, error) {
			return analysis.AlignmentResult{Status: analysis.AlignmentAligned}, nil
		},
		execute: func(activities.ExecuteAnalysisInput) (analysis.ExecutionResult, error) {
			return analysis.ExecutionResult{
				Succeeded:  true,
				Code:       "result = df.corr()",
				OutputType: analysis.OutputAnalysis,
				ResultText: "r=0.42, p=0.001",
			}, nil
		},
		validate: func(activities.ValidateResultsInput) (analysis.Evaluation, error) {
			return analysis.Evaluation{IsValid: true, Confidence: 0.9}, nil
		},
		remediate: func(activities.PlanRemediationInput) (analysis.RemediationPlan, error) {
			return analysis.RemediationPlan{
				RootCause: "none",
				Action:    analysis.RemediateRewriteCode,
				Guidance:  "retry",
			}, nil
		},
		explain: func(in activities.ExplainInput) (activities.ExplainResult, error) {
			return activities.ExplainResult{Answer: "mode=" + string(in.Mode)}, nil
		},
	}
}

func (s *pipelineStubs) register(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(
		func(ctx context.Context) (activities.WorkflowConfig, error) { return testConfig, nil },
		activity.RegisterOptions{Name: "GetWorkflowConfig"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.ClassifyInput) (activities.ClassifyResult, error) {
			return s.classify(ctx, in)
		},
		activity.RegisterOptions{Name: "Classify"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.PlanRequirementsInput) (analysis.Requirements, error) {
			return s.plan(in)
		},
		activity.RegisterOptions{Name: "PlanRequirements"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.ProfileDataInput) (activities.ProfileDataResult, error) {
			return s.profile(in)
		},
		activity.RegisterOptions{Name: "ProfileData"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.CheckAlignmentInput) (analysis.AlignmentResult, error) {
			return s.align(in)
		},
		activity.RegisterOptions{Name: "CheckAlignment"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.ExecuteAnalysisInput) (analysis.ExecutionResult, error) {
			return s.execute(in)
		},
		activity.RegisterOptions{Name: "ExecuteAnalysis"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.ValidateResultsInput) (analysis.Evaluation, error) {
			return s.validate(in)
		},
		activity.RegisterOptions{Name: "ValidateResults"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.PlanRemediationInput) (analysis.RemediationPlan, error) {
			return s.remediate(in)
		},
		activity.RegisterOptions{Name: "PlanRemediation"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.ExplainInput) (activities.ExplainResult, error) {
			return s.explain(in)
		},
		activity.RegisterOptions{Name: "Explain"},
	)
}

func runWorkflow(t *testing.T, stubs *pipelineStubs) (analysis.Output, error) {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	stubs.register(env)

	env.ExecuteWorkflow(AnalysisWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	if err := env.GetWorkflowError(); err != nil {
		return analysis.Output{}, err
	}
	var out analysis.Output
	require.NoError(t, env.GetWorkflowResult(&out))
	return out, nil
}

func TestAnalysisWorkflowHappyPath(t *testing.T) {
	out, err := runWorkflow(t, happyStubs())
	require.NoError(t, err)

	assert.Equal(t, analysis.OutputKindAnalysis, out.Kind)
	assert.Equal(t, "mode=findings", out.Body)
	assert.Equal(t, "r=0.42, p=0.001", out.ResultText)
	assert.Equal(t, "result = df.corr()", out.Code)
	assert.InDelta(t, 0.9, out.Confidence, 1e-9)
	assert.Empty(t, out.Caveats)
}

func TestAnalysisWorkflowExplainOnly(t *testing.T) {
	stubs := happyStubs()
	var planCalls int32
	stubs.classify = func(context.Context, activities.ClassifyInput) (activities.ClassifyResult, error) {
		return activities.ClassifyResult{NeedsAnalysis: false, Reasoning: "conceptual"}, nil
	}
	stubs.plan = func(activities.PlanRequirementsInput) (analysis.Requirements, error) {
		atomic.AddInt32(&planCalls, 1)
		return analysis.Requirements{}, nil
	}

	out, err := runWorkflow(t, stubs)
	require.NoError(t, err)

	assert.Equal(t, analysis.OutputKindExplanation, out.Kind)
	assert.Equal(t, "mode=direct", out.Body)
	assert.Zero(t, atomic.LoadInt32(&planCalls), "explain-only must never touch planning")
}

func TestAnalysisWorkflowCannotProceed(t *testing.T) {
	stubs := happyStubs()
	var execCalls int32
	var explained activities.ExplainInput
	stubs.align = func(activities.CheckAlignmentInput) (analysis.AlignmentResult, error) {
		return analysis.AlignmentResult{
			Status: analysis.AlignmentCannotProceed,
			Gaps:   []string{"required column income is absent from every dataset"},
		}, nil
	}
	stubs.execute = func(activities.ExecuteAnalysisInput) (analysis.ExecutionResult, error) {
		atomic.AddInt32(&execCalls, 1)
		return analysis.ExecutionResult{}, nil
	}
	stubs.explain = func(in activities.ExplainInput) (activities.ExplainResult, error) {
		explained = in
		return activities.ExplainResult{Answer: "mode=" + string(in.Mode)}, nil
	}

	out, err := runWorkflow(t, stubs)
	require.NoError(t, err)

	assert.Equal(t, analysis.OutputKindExplanation, out.Kind,
		"a limitation is still an explanation, not an error")
	assert.Equal(t, "mode=limitation", out.Body)
	assert.Equal(t, activities.ExplainLimitation, explained.Mode)
	assert.Contains(t, explained.Gaps, "required column income is absent from every dataset")
	assert.Zero(t, atomic.LoadInt32(&execCalls), "no code may run once alignment blocks")
}

func TestAnalysisWorkflowCodeRetriesThenRemediation(t *testing.T) {
	stubs := happyStubs()
	var execCalls, validateCalls, remediations int32
	stubs.execute = func(in activities.ExecuteAnalysisInput) (analysis.ExecutionResult, error) {
		n := atomic.AddInt32(&execCalls, 1)
		if n <= 3 {
			// First attempt plus the two in-place retries all fail.
			if n > 1 {
				// Retries must carry the failed code for repair.
				assert.NotEmpty(t, in.PreviousCode)
				assert.NotEmpty(t, in.PreviousError)
			}
			return analysis.ExecutionResult{
				Succeeded: false,
				Code:      "result = df.corr(",
				Error:     "SyntaxError: unexpected EOF",
			}, nil
		}
		// Post-remediation attempt succeeds.
		assert.Equal(t, "fix the unbalanced parenthesis", in.RemediationGuidance)
		return analysis.ExecutionResult{
			Succeeded:  true,
			Code:       "result = df.corr()",
			OutputType: analysis.OutputAnalysis,
			ResultText: "r=0.42",
		}, nil
	}
	stubs.validate = func(in activities.ValidateResultsInput) (analysis.Evaluation, error) {
		atomic.AddInt32(&validateCalls, 1)
		if !in.Execution.Succeeded {
			return analysis.Evaluation{
				IsValid: false,
				Issues:  []string{"execution failed: SyntaxError: unexpected EOF"},
			}, nil
		}
		return analysis.Evaluation{IsValid: true, Confidence: 0.9}, nil
	}
	stubs.remediate = func(in activities.PlanRemediationInput) (analysis.RemediationPlan, error) {
		atomic.AddInt32(&remediations, 1)
		// Remediation diagnoses the validator's verdict, so it must run
		// after validation and see its issues.
		assert.Equal(t, int32(1), atomic.LoadInt32(&validateCalls),
			"the failed execution must be validated before remediation")
		assert.Contains(t, in.Evaluation.Issues, "execution failed: SyntaxError: unexpected EOF")
		return analysis.RemediationPlan{
			RootCause: "syntax error in generated code",
			Action:    analysis.RemediateRewriteCode,
			Guidance:  "fix the unbalanced parenthesis",
		}, nil
	}

	out, err := runWorkflow(t, stubs)
	require.NoError(t, err)

	assert.Equal(t, analysis.OutputKindAnalysis, out.Kind)
	assert.Equal(t, int32(4), atomic.LoadInt32(&execCalls),
		"one attempt, two bounded retries, one remediation re-entry")
	assert.Equal(t, int32(2), atomic.LoadInt32(&validateCalls),
		"the exhausted failure and the clean rerun are both validated")
	assert.Equal(t, int32(1), atomic.LoadInt32(&remediations))
}

func TestAnalysisWorkflowRemediationBudget(t *testing.T) {
	stubs := happyStubs()
	var remediations int32
	var explained activities.ExplainInput
	stubs.validate = func(activities.ValidateResultsInput) (analysis.Evaluation, error) {
		return analysis.Evaluation{
			IsValid: false,
			Issues:  []string{"correlation of 1.2 is impossible"},
		}, nil
	}
	stubs.remediate = func(activities.PlanRemediationInput) (analysis.RemediationPlan, error) {
		atomic.AddInt32(&remediations, 1)
		return analysis.RemediationPlan{
			RootCause: "result out of range",
			Action:    analysis.RemediateRewriteCode,
			Guidance:  "normalize before correlating",
		}, nil
	}
	stubs.explain = func(in activities.ExplainInput) (activities.ExplainResult, error) {
		explained = in
		return activities.ExplainResult{Answer: "mode=" + string(in.Mode)}, nil
	}

	out, err := runWorkflow(t, stubs)
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&remediations), "remediation budget is three, total")
	assert.Equal(t, activities.ExplainFindings, explained.Mode)
	assert.True(t, explained.RemediationsExhausted)
	assert.NotEmpty(t, out.Caveats, "forced findings must carry the exhaustion caveat")
}

func TestAnalysisWorkflowAlignmentBudget(t *testing.T) {
	stubs := happyStubs()
	var planCalls, alignCalls, execCalls int32
	var explained activities.ExplainInput
	stubs.align = func(activities.CheckAlignmentInput) (analysis.AlignmentResult, error) {
		atomic.AddInt32(&alignCalls, 1)
		return analysis.AlignmentResult{
			Status:  analysis.AlignmentReviseRequirements,
			Gaps:    []string{"success criteria too strict for the available data"},
			Caveats: []string{"analysis scope was narrowed"},
		}, nil
	}
	stubs.plan = func(in activities.PlanRequirementsInput) (analysis.Requirements, error) {
		if atomic.AddInt32(&planCalls, 1) > 1 {
			// Loop-backs carry the gaps as guidance for the replan.
			assert.Contains(t, in.RemediationGuidance, "success criteria too strict")
		}
		return analysis.Requirements{AnalysisKind: analysis.KindCorrelation}, nil
	}
	stubs.execute = func(activities.ExecuteAnalysisInput) (analysis.ExecutionResult, error) {
		atomic.AddInt32(&execCalls, 1)
		return analysis.ExecutionResult{}, nil
	}
	stubs.explain = func(in activities.ExplainInput) (activities.ExplainResult, error) {
		explained = in
		return activities.ExplainResult{Answer: "mode=" + string(in.Mode)}, nil
	}

	out, err := runWorkflow(t, stubs)
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&planCalls), "initial plan plus two bounded revisions")
	assert.Equal(t, int32(3), atomic.LoadInt32(&alignCalls))
	assert.Zero(t, atomic.LoadInt32(&execCalls),
		"an unresolved revise verdict must never reach execution")
	assert.Equal(t, analysis.OutputKindExplanation, out.Kind)
	assert.Equal(t, activities.ExplainLimitation, explained.Mode)
	assert.Contains(t, explained.Gaps, "success criteria too strict for the available data")
	assert.Contains(t, out.Caveats, "analysis scope was narrowed")
}

func TestAnalysisWorkflowCaveatPreservation(t *testing.T) {
	stubs := happyStubs()
	caveat := "income data only covers 2019-2023"
	stubs.align = func(activities.CheckAlignmentInput) (analysis.AlignmentResult, error) {
		return analysis.AlignmentResult{
			Status:  analysis.AlignmentProceedWithCaveats,
			Caveats: []string{caveat},
		}, nil
	}

	out, err := runWorkflow(t, stubs)
	require.NoError(t, err)

	assert.Equal(t, analysis.OutputKindAnalysis, out.Kind)
	assert.Contains(t, out.Caveats, caveat, "alignment caveats must survive to the terminal output")
}

func TestAnalysisWorkflowClassifyFailureDegrades(t *testing.T) {
	stubs := happyStubs()
	var planCalls int32
	stubs.classify = func(context.Context, activities.ClassifyInput) (activities.ClassifyResult, error) {
		return activities.ClassifyResult{}, errors.New("oracle returned garbage")
	}
	stubs.plan = func(activities.PlanRequirementsInput) (analysis.Requirements, error) {
		atomic.AddInt32(&planCalls, 1)
		return analysis.Requirements{}, nil
	}

	out, err := runWorkflow(t, stubs)
	require.NoError(t, err)

	assert.Equal(t, analysis.OutputKindExplanation, out.Kind)
	assert.NotEmpty(t, out.Caveats, "degraded classification must be disclosed")
	assert.Zero(t, atomic.LoadInt32(&planCalls))
}

func TestAnalysisWorkflowCancellation(t *testing.T) {
	stubs := happyStubs()
	stubs.classify = func(ctx context.Context, in activities.ClassifyInput) (activities.ClassifyResult, error) {
		<-ctx.Done()
		return activities.ClassifyResult{}, ctx.Err()
	}

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	stubs.register(env)
	env.RegisterDelayedCallback(func() { env.CancelWorkflow() }, time.Second)

	env.ExecuteWorkflow(AnalysisWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError(), "a cancelled session has no terminal output")
}
