package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tabularis-ai/tabularis/internal/analysis"
)

func TestRouteClassify(t *testing.T) {
	assert.Equal(t, StagePlanRequirements, RouteClassify(true))
	assert.Equal(t, StageExplainDirect, RouteClassify(false))
}

func TestRouteAlignment(t *testing.T) {
	const max = 2
	cases := []struct {
		name       string
		status     analysis.AlignmentStatus
		iterations int
		want       AlignmentRoute
	}{
		{
			name:   "aligned proceeds",
			status: analysis.AlignmentAligned,
			want:   AlignmentRoute{Next: StageSynthesizeExecute},
		},
		{
			name:   "caveats still proceed",
			status: analysis.AlignmentProceedWithCaveats,
			want:   AlignmentRoute{Next: StageSynthesizeExecute},
		},
		{
			name:   "revise requirements loops back",
			status: analysis.AlignmentReviseRequirements,
			want:   AlignmentRoute{Next: StagePlanRequirements, LoopBack: true},
		},
		{
			name:       "revise requirements at budget exits as limitation",
			status:     analysis.AlignmentReviseRequirements,
			iterations: max,
			want:       AlignmentRoute{Next: StageExplainLimitation, Exhausted: true},
		},
		{
			name:       "revise data loops back under budget",
			status:     analysis.AlignmentReviseUnderstanding,
			iterations: 1,
			want:       AlignmentRoute{Next: StageProfileData, LoopBack: true},
		},
		{
			name:       "revise data at budget exits as limitation",
			status:     analysis.AlignmentReviseUnderstanding,
			iterations: max,
			want:       AlignmentRoute{Next: StageExplainLimitation, Exhausted: true},
		},
		{
			name:   "cannot proceed exits",
			status: analysis.AlignmentCannotProceed,
			want:   AlignmentRoute{Next: StageExplainLimitation},
		},
		{
			name:   "unknown verdict exits rather than loops",
			status: analysis.AlignmentStatus("garbled"),
			want:   AlignmentRoute{Next: StageExplainLimitation},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RouteAlignment(tc.status, tc.iterations, max))
		})
	}
}

func TestRouteExecution(t *testing.T) {
	const max = 2

	assert.Equal(t, ExecutionRoute{Next: StageValidateResults}, RouteExecution(true, 0, max))
	// Success never consumes an attempt, even late in the session.
	assert.Equal(t, ExecutionRoute{Next: StageValidateResults}, RouteExecution(true, max, max))

	assert.Equal(t, ExecutionRoute{Next: StageSynthesizeExecute, Retry: true}, RouteExecution(false, 0, max))
	assert.Equal(t, ExecutionRoute{Next: StageSynthesizeExecute, Retry: true}, RouteExecution(false, 1, max))
	// An exhausted failure still goes to validation, which decides whether
	// it is terminal or remediable.
	assert.Equal(t, ExecutionRoute{Next: StageValidateResults}, RouteExecution(false, 2, max))
}

func TestRouteValidation(t *testing.T) {
	assert.Equal(t, StageExplainFindings, RouteValidation(true))
	assert.Equal(t, StagePlanRemediation, RouteValidation(false))
}

func TestRouteRemediation(t *testing.T) {
	const max = 3
	cases := []struct {
		name   string
		action analysis.RemediationAction
		total  int
		want   RemediationRoute
	}{
		{"rewrite code re-enters execution", analysis.RemediateRewriteCode, 1, RemediationRoute{Next: StageSynthesizeExecute}},
		{"revise requirements re-enters planning", analysis.RemediateReviseRequests, 1, RemediationRoute{Next: StagePlanRequirements}},
		{"reexamine data re-enters profiling", analysis.RemediateReexamineData, 2, RemediationRoute{Next: StageProfileData}},
		{"budget exhausted forces findings", analysis.RemediateRewriteCode, 3, RemediationRoute{Next: StageExplainFindings, Forced: true}},
		{"over budget forces findings", analysis.RemediateReexamineData, 4, RemediationRoute{Next: StageExplainFindings, Forced: true}},
		{"unknown action forces findings", analysis.RemediationAction("shrug"), 1, RemediationRoute{Next: StageExplainFindings, Forced: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RouteRemediation(tc.action, tc.total, max))
		})
	}
}

func TestAddCaveatsDeduplicates(t *testing.T) {
	s := &SessionState{}
	s.AddCaveats("a", "b")
	s.AddCaveats("b", "", "c", "a")
	assert.Equal(t, []string{"a", "b", "c"}, s.Caveats)
}
