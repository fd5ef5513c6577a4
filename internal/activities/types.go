package activities

import (
	"github.com/tabularis-ai/tabularis/internal/analysis"
)

// WorkflowConfig is the snapshot of loop bounds and profiling knobs the
// workflow reads before dispatching stages. It is fetched through an
// activity so the deterministic workflow code never touches files or env.
type WorkflowConfig struct {
	MaxAlignmentIterations int `json:"max_alignment_iterations"`
	MaxCodeAttempts        int `json:"max_code_attempts"`
	MaxTotalRemediations   int `json:"max_total_remediations"`
	CompactThreshold       int `json:"compact_threshold"`
	MaxDetailed            int `json:"max_detailed"`
	SandboxBudgetSeconds   int `json:"sandbox_budget_seconds"`
}

// ClassifyInput carries the raw question into the Classify stage.
type ClassifyInput struct {
	SessionID  string   `json:"session_id"`
	Question   string   `json:"question"`
	DatasetIDs []string `json:"dataset_ids"`
}

// ClassifyResult is the Classify stage's one-shot decision.
type ClassifyResult struct {
	NeedsAnalysis bool   `json:"needs_analysis"`
	Reasoning     string `json:"reasoning"`
}

// PlanRequirementsInput feeds Plan-Requirements, optionally with a
// remediation hint from a previous failed cycle.
type PlanRequirementsInput struct {
	SessionID           string   `json:"session_id"`
	Question            string   `json:"question"`
	DatasetIDs          []string `json:"dataset_ids"`
	RemediationGuidance string   `json:"remediation_guidance,omitempty"`
}

// ProfileDataInput feeds Profile-Data.
type ProfileDataInput struct {
	SessionID           string                `json:"session_id"`
	Question            string                `json:"question"`
	Requirements        analysis.Requirements `json:"requirements"`
	DatasetIDs          []string              `json:"dataset_ids"`
	RemediationGuidance string                `json:"remediation_guidance,omitempty"`
}

// ProfileDataResult is the profile plus accounting the tests assert on.
type ProfileDataResult struct {
	Profile analysis.DataProfile `json:"profile"`
	// DetailedColumns is how many columns received a detailed profile.
	DetailedColumns int `json:"detailed_columns"`
	// SelectionUsed reports whether the two-tier selection step ran.
	SelectionUsed bool `json:"selection_used"`
	// ArtifactCost is the token-equivalent cost of the artifact.
	ArtifactCost int `json:"artifact_cost"`
}

// CheckAlignmentInput feeds Check-Alignment.
type CheckAlignmentInput struct {
	SessionID    string                `json:"session_id"`
	Requirements analysis.Requirements `json:"requirements"`
	Profile      analysis.DataProfile  `json:"profile"`
}

// ExecuteAnalysisInput feeds one Synthesize-Execute attempt. PreviousCode
// and PreviousError are set on retries so the oracle repairs rather than
// regenerates.
type ExecuteAnalysisInput struct {
	SessionID           string                `json:"session_id"`
	Question            string                `json:"question"`
	Requirements        analysis.Requirements `json:"requirements"`
	Profile             analysis.DataProfile  `json:"profile"`
	DatasetIDs          []string              `json:"dataset_ids"`
	PreviousCode        string                `json:"previous_code,omitempty"`
	PreviousError       string                `json:"previous_error,omitempty"`
	RemediationGuidance string                `json:"remediation_guidance,omitempty"`
	BudgetSeconds       int                   `json:"budget_seconds"`
}

// ValidateResultsInput feeds Validate-Results.
type ValidateResultsInput struct {
	SessionID    string                   `json:"session_id"`
	Question     string                   `json:"question"`
	Requirements analysis.Requirements    `json:"requirements"`
	Execution    analysis.ExecutionResult `json:"execution"`
}

// PlanRemediationInput feeds Plan-Remediation.
type PlanRemediationInput struct {
	SessionID    string                   `json:"session_id"`
	Question     string                   `json:"question"`
	Evaluation   analysis.Evaluation      `json:"evaluation"`
	Execution    analysis.ExecutionResult `json:"execution"`
	Requirements analysis.Requirements    `json:"requirements"`
	Profile      analysis.DataProfile     `json:"profile"`
}

// ExplainMode mirrors the oracle's terminal framings.
type ExplainMode string

const (
	ExplainDirect     ExplainMode = "direct"
	ExplainLimitation ExplainMode = "limitation"
	ExplainFindings   ExplainMode = "findings"
)

// ExplainInput feeds either terminal stage. Only the fields the mode
// contracts for are set.
type ExplainInput struct {
	SessionID             string                    `json:"session_id"`
	Mode                  ExplainMode               `json:"mode"`
	Question              string                    `json:"question"`
	Gaps                  []string                  `json:"gaps,omitempty"`
	Caveats               []string                  `json:"caveats,omitempty"`
	Requirements          *analysis.Requirements    `json:"requirements,omitempty"`
	Execution             *analysis.ExecutionResult `json:"execution,omitempty"`
	Evaluation            *analysis.Evaluation      `json:"evaluation,omitempty"`
	RemediationsExhausted bool                      `json:"remediations_exhausted,omitempty"`
}

// ExplainResult is the terminal answer text. Degraded marks the built-in
// fallback used when the oracle itself failed.
type ExplainResult struct {
	Answer   string `json:"answer"`
	Degraded bool   `json:"degraded"`
}
