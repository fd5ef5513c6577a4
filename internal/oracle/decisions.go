// Package oracle is the client boundary to the external reasoning service.
// Every stage has a closed decision type; responses that do not match the
// stage's schema yield ErrSchema, which the workflow routes through the
// same bounded loops as domain failures. Nothing here retries.
package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tabularis-ai/tabularis/internal/analysis"
	"github.com/tabularis-ai/tabularis/internal/profiler"
)

// ErrSchema marks a reasoning-service response that violated the stage's
// expected schema. It is a stage failure, never a crash.
var ErrSchema = errors.New("oracle response violates stage schema")

func schemaErr(stage string, cause error) error {
	return fmt.Errorf("%w: stage %s: %v", ErrSchema, stage, cause)
}

// decodeStrict unmarshals into v rejecting unknown fields.
func decodeStrict(stage string, raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return schemaErr(stage, err)
	}
	return nil
}

// ClassifyDecision answers whether the question needs data work at all.
type ClassifyDecision struct {
	NeedsAnalysis bool
	Reasoning     string
}

type classifyWire struct {
	NeedsAnalysis *bool  `json:"needs_analysis"`
	Reasoning     string `json:"reasoning"`
}

func parseClassify(raw []byte) (ClassifyDecision, error) {
	var w classifyWire
	if err := decodeStrict("classify", raw, &w); err != nil {
		return ClassifyDecision{}, err
	}
	if w.NeedsAnalysis == nil {
		return ClassifyDecision{}, schemaErr("classify", errors.New("needs_analysis missing"))
	}
	return ClassifyDecision{NeedsAnalysis: *w.NeedsAnalysis, Reasoning: w.Reasoning}, nil
}

type requirementsWire struct {
	VariablesNeeded []string `json:"variables_needed"`
	Constraints     []string `json:"constraints"`
	AnalysisKind    *string  `json:"analysis_kind"`
	SuccessCriteria string   `json:"success_criteria"`
}

func parseRequirements(raw []byte) (analysis.Requirements, error) {
	var w requirementsWire
	if err := decodeStrict("requirements", raw, &w); err != nil {
		return analysis.Requirements{}, err
	}
	if w.AnalysisKind == nil {
		return analysis.Requirements{}, schemaErr("requirements", errors.New("analysis_kind missing"))
	}
	req := analysis.Requirements{
		VariablesNeeded: w.VariablesNeeded,
		Constraints:     w.Constraints,
		AnalysisKind:    analysis.AnalysisKind(*w.AnalysisKind),
		SuccessCriteria: w.SuccessCriteria,
	}
	if err := req.Validate(); err != nil {
		return analysis.Requirements{}, schemaErr("requirements", err)
	}
	return req, nil
}

type selectColumnsWire struct {
	Columns []struct {
		DatasetID string `json:"dataset_id"`
		Column    string `json:"column"`
	} `json:"columns"`
}

func parseSelectColumns(raw []byte) ([]profiler.ColumnRef, error) {
	var w selectColumnsWire
	if err := decodeStrict("select_columns", raw, &w); err != nil {
		return nil, err
	}
	if w.Columns == nil {
		return nil, schemaErr("select_columns", errors.New("columns missing"))
	}
	refs := make([]profiler.ColumnRef, len(w.Columns))
	for i, c := range w.Columns {
		refs[i] = profiler.ColumnRef{DatasetID: c.DatasetID, Column: c.Column}
	}
	return refs, nil
}

type profileWire struct {
	AvailableColumns []string          `json:"available_columns"`
	MissingColumns   []string          `json:"missing_columns"`
	QualityNotes     map[string]string `json:"quality_notes"`
	IsSuitable       *bool             `json:"is_suitable"`
}

func parseProfile(raw []byte) (analysis.DataProfile, error) {
	var w profileWire
	if err := decodeStrict("profile", raw, &w); err != nil {
		return analysis.DataProfile{}, err
	}
	if w.IsSuitable == nil {
		return analysis.DataProfile{}, schemaErr("profile", errors.New("is_suitable missing"))
	}
	return analysis.DataProfile{
		AvailableColumns: w.AvailableColumns,
		MissingColumns:   w.MissingColumns,
		QualityNotes:     w.QualityNotes,
		IsSuitable:       *w.IsSuitable,
	}, nil
}

type alignmentWire struct {
	Status  *string  `json:"status"`
	Gaps    []string `json:"gaps"`
	Caveats []string `json:"caveats"`
}

func parseAlignment(raw []byte) (analysis.AlignmentResult, error) {
	var w alignmentWire
	if err := decodeStrict("alignment", raw, &w); err != nil {
		return analysis.AlignmentResult{}, err
	}
	if w.Status == nil {
		return analysis.AlignmentResult{}, schemaErr("alignment", errors.New("status missing"))
	}
	res := analysis.AlignmentResult{
		Status:  analysis.AlignmentStatus(*w.Status),
		Gaps:    w.Gaps,
		Caveats: w.Caveats,
	}
	if err := res.Validate(); err != nil {
		return analysis.AlignmentResult{}, schemaErr("alignment", err)
	}
	return res, nil
}

// SynthesizeDecision carries generated analysis code.
type SynthesizeDecision struct {
	Code     string
	Approach string
}

type synthesizeWire struct {
	Code     *string `json:"code"`
	Approach string  `json:"approach"`
}

func parseSynthesize(raw []byte) (SynthesizeDecision, error) {
	var w synthesizeWire
	if err := decodeStrict("synthesize", raw, &w); err != nil {
		return SynthesizeDecision{}, err
	}
	if w.Code == nil || *w.Code == "" {
		return SynthesizeDecision{}, schemaErr("synthesize", errors.New("code missing or empty"))
	}
	return SynthesizeDecision{Code: *w.Code, Approach: w.Approach}, nil
}

type validateWire struct {
	IsValid    *bool    `json:"is_valid"`
	Issues     []string `json:"issues"`
	Confidence *float64 `json:"confidence"`
}

func parseValidate(raw []byte) (analysis.Evaluation, error) {
	var w validateWire
	if err := decodeStrict("validate", raw, &w); err != nil {
		return analysis.Evaluation{}, err
	}
	if w.IsValid == nil {
		return analysis.Evaluation{}, schemaErr("validate", errors.New("is_valid missing"))
	}
	conf := 0.5
	if w.Confidence != nil {
		conf = *w.Confidence
	}
	if conf < 0 || conf > 1 {
		return analysis.Evaluation{}, schemaErr("validate", fmt.Errorf("confidence %v out of [0,1]", conf))
	}
	return analysis.Evaluation{IsValid: *w.IsValid, Issues: w.Issues, Confidence: conf}, nil
}

type remediationWire struct {
	RootCause string  `json:"root_cause"`
	Action    *string `json:"action"`
	Guidance  string  `json:"guidance"`
}

func parseRemediation(raw []byte) (analysis.RemediationPlan, error) {
	var w remediationWire
	if err := decodeStrict("remediate", raw, &w); err != nil {
		return analysis.RemediationPlan{}, err
	}
	if w.Action == nil {
		return analysis.RemediationPlan{}, schemaErr("remediate", errors.New("action missing"))
	}
	plan := analysis.RemediationPlan{
		RootCause: w.RootCause,
		Action:    analysis.RemediationAction(*w.Action),
		Guidance:  w.Guidance,
	}
	if err := plan.Validate(); err != nil {
		return analysis.RemediationPlan{}, schemaErr("remediate", err)
	}
	return plan, nil
}

// ExplainDecision is the plain-language answer text for either terminal
// stage.
type ExplainDecision struct {
	Answer string
}

type explainWire struct {
	Answer *string `json:"answer"`
}

func parseExplain(raw []byte) (ExplainDecision, error) {
	var w explainWire
	if err := decodeStrict("explain", raw, &w); err != nil {
		return ExplainDecision{}, err
	}
	if w.Answer == nil || *w.Answer == "" {
		return ExplainDecision{}, schemaErr("explain", errors.New("answer missing or empty"))
	}
	return ExplainDecision{Answer: *w.Answer}, nil
}
