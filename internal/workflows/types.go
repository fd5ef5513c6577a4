// Package workflows contains the deterministic session driver. All stage
// work happens in activities; this package owns only routing, loop
// budgets, and the session state those decisions read.
package workflows

import (
	"github.com/tabularis-ai/tabularis/internal/analysis"
)

// TaskQueue is the Temporal task queue shared by the worker and gateway.
const TaskQueue = "analysis-task-queue"

// Stage identifies one node of the analysis pipeline.
type Stage string

const (
	StageClassify          Stage = "classify"
	StageExplainDirect     Stage = "explain_direct"
	StagePlanRequirements  Stage = "plan_requirements"
	StageProfileData       Stage = "profile_data"
	StageCheckAlignment    Stage = "check_alignment"
	StageSynthesizeExecute Stage = "synthesize_execute"
	StageValidateResults   Stage = "validate_results"
	StagePlanRemediation   Stage = "plan_remediation"
	StageExplainFindings   Stage = "explain_findings"
	// StageExplainLimitation reports why the analysis could not proceed.
	StageExplainLimitation Stage = "explain_limitation"
	// StageDone is the sentinel the driver loop exits on.
	StageDone Stage = "done"
)

// AnalysisInput starts one session.
type AnalysisInput struct {
	SessionID  string   `json:"session_id"`
	Question   string   `json:"question"`
	DatasetIDs []string `json:"dataset_ids"`
}

// SessionState is everything routing decisions read. The three counters
// only ever increase, and each has a hard ceiling enforced by the route
// functions.
type SessionState struct {
	Stage Stage

	// AlignmentIterations counts loop-backs from Check-Alignment into
	// planning or profiling. Forward progress does not count.
	AlignmentIterations int
	// CodeAttempts counts in-place execution retries after a failure.
	// Re-entry via a remediation plan does not count.
	CodeAttempts int
	// TotalRemediations counts Plan-Remediation executions.
	TotalRemediations int

	Requirements analysis.Requirements
	Profile      analysis.DataProfile
	Alignment    analysis.AlignmentResult
	Execution    analysis.ExecutionResult
	Evaluation   analysis.Evaluation
	Remediation  analysis.RemediationPlan

	// Caveats accumulates alignment caveats and budget-exhaustion notes.
	// Every terminal output carries all of them.
	Caveats []string
	// Gaps from the last blocking alignment verdict, for the limitation
	// framing.
	Gaps []string

	// RemediationGuidance is consumed by the next re-entered stage and
	// cleared afterward.
	RemediationGuidance string
	// RemediationsExhausted is set when the budget forces findings.
	RemediationsExhausted bool
}

// AddCaveats appends caveats not already present, preserving order.
func (s *SessionState) AddCaveats(caveats ...string) {
	for _, c := range caveats {
		if c == "" {
			continue
		}
		dup := false
		for _, have := range s.Caveats {
			if have == c {
				dup = true
				break
			}
		}
		if !dup {
			s.Caveats = append(s.Caveats, c)
		}
	}
}
