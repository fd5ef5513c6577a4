// Package analysis defines the closed data model shared by the stage
// activities and the analysis workflow: requirements, profiles, alignment
// verdicts, execution results, evaluations, remediation plans, and the
// terminal output union.
package analysis

import "fmt"

// AnalysisKind categorizes what sort of analysis the question requires.
type AnalysisKind string

const (
	KindDescriptive    AnalysisKind = "descriptive"
	KindCorrelation    AnalysisKind = "correlation"
	KindHypothesisTest AnalysisKind = "hypothesis_test"
	KindRegression     AnalysisKind = "regression"
	KindDataMerging    AnalysisKind = "data_merging"
	KindVisualization  AnalysisKind = "visualization"
	KindOther          AnalysisKind = "other"
)

// ValidAnalysisKind reports whether k is a member of the closed enum.
func ValidAnalysisKind(k AnalysisKind) bool {
	switch k {
	case KindDescriptive, KindCorrelation, KindHypothesisTest,
		KindRegression, KindDataMerging, KindVisualization, KindOther:
		return true
	}
	return false
}

// Requirements is the formal statement of what the analysis needs,
// produced by Plan-Requirements.
type Requirements struct {
	VariablesNeeded []string     `json:"variables_needed"`
	Constraints     []string     `json:"constraints"`
	AnalysisKind    AnalysisKind `json:"analysis_kind"`
	SuccessCriteria string       `json:"success_criteria"`
}

// DataProfile is the oracle's assessment of the available data against the
// requirements, produced by Profile-Data.
type DataProfile struct {
	AvailableColumns []string          `json:"available_columns"`
	MissingColumns   []string          `json:"missing_columns"`
	QualityNotes     map[string]string `json:"quality_notes"`
	IsSuitable       bool              `json:"is_suitable"`

	// Artifact is the rendered profile text (compact overview plus detailed
	// profiles) that downstream stages hand back to the oracle.
	Artifact string `json:"artifact,omitempty"`
}

// AlignmentStatus is the verdict of Check-Alignment.
type AlignmentStatus string

const (
	AlignmentAligned             AlignmentStatus = "aligned"
	AlignmentProceedWithCaveats  AlignmentStatus = "proceed_with_caveats"
	AlignmentReviseRequirements  AlignmentStatus = "revise_requirements"
	AlignmentReviseUnderstanding AlignmentStatus = "revise_data_understanding"
	AlignmentCannotProceed       AlignmentStatus = "cannot_proceed"
)

// ValidAlignmentStatus reports whether s is a member of the closed enum.
func ValidAlignmentStatus(s AlignmentStatus) bool {
	switch s {
	case AlignmentAligned, AlignmentProceedWithCaveats, AlignmentReviseRequirements,
		AlignmentReviseUnderstanding, AlignmentCannotProceed:
		return true
	}
	return false
}

// AlignmentResult records whether the profiled data can satisfy the
// requirements. Caveats survive to the final output whenever execution
// proceeds despite them.
type AlignmentResult struct {
	Status  AlignmentStatus `json:"status"`
	Gaps    []string        `json:"gaps"`
	Caveats []string        `json:"caveats"`
}

// OutputType classifies the payload of a sandbox execution.
type OutputType string

const (
	OutputAnalysis OutputType = "analysis"
	OutputFigure   OutputType = "figure"
)

// ExecutionResult is the outcome of one Synthesize-Execute attempt.
type ExecutionResult struct {
	Succeeded  bool       `json:"succeeded"`
	Code       string     `json:"code"`
	OutputType OutputType `json:"output_type,omitempty"`
	ResultText string     `json:"result_text,omitempty"`
	FigureJSON string     `json:"figure_json,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Evaluation is the verdict of Validate-Results.
type Evaluation struct {
	IsValid    bool     `json:"is_valid"`
	Issues     []string `json:"issues"`
	Confidence float64  `json:"confidence"`
}

// RemediationAction names the corrective action chosen after a failed
// validation.
type RemediationAction string

const (
	RemediateRewriteCode    RemediationAction = "rewrite_code"
	RemediateReviseRequests RemediationAction = "revise_requirements"
	RemediateReexamineData  RemediationAction = "reexamine_data"
)

// ValidRemediationAction reports whether a is a member of the closed enum.
func ValidRemediationAction(a RemediationAction) bool {
	switch a {
	case RemediateRewriteCode, RemediateReviseRequests, RemediateReexamineData:
		return true
	}
	return false
}

// RemediationPlan is the diagnosis produced by Plan-Remediation.
type RemediationPlan struct {
	RootCause string            `json:"root_cause"`
	Action    RemediationAction `json:"action"`
	Guidance  string            `json:"guidance"`
}

// OutputKind tags the terminal output union.
type OutputKind string

const (
	OutputKindExplanation   OutputKind = "explanation"
	OutputKindAnalysis      OutputKind = "analysis"
	OutputKindVisualization OutputKind = "visualization"
	OutputKindError         OutputKind = "error"
)

// Output is the terminal result of one question's session. Exactly one is
// produced per question, by Explain-Only or Explain-Findings.
type Output struct {
	Kind       OutputKind `json:"kind"`
	Body       string     `json:"body"`
	Code       string     `json:"code,omitempty"`
	ResultText string     `json:"result_text,omitempty"`
	FigureJSON string     `json:"figure_json,omitempty"`
	Caveats    []string   `json:"caveats"`
	Confidence float64    `json:"confidence,omitempty"`
}

// Validate checks the enum fields of a Requirements value.
func (r Requirements) Validate() error {
	if !ValidAnalysisKind(r.AnalysisKind) {
		return fmt.Errorf("unknown analysis kind %q", r.AnalysisKind)
	}
	return nil
}

// Validate checks the enum fields of an AlignmentResult value.
func (a AlignmentResult) Validate() error {
	if !ValidAlignmentStatus(a.Status) {
		return fmt.Errorf("unknown alignment status %q", a.Status)
	}
	return nil
}

// Validate checks the enum fields of a RemediationPlan value.
func (p RemediationPlan) Validate() error {
	if !ValidRemediationAction(p.Action) {
		return fmt.Errorf("unknown remediation action %q", p.Action)
	}
	return nil
}
