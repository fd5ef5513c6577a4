package activities

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/dataset"
	ometrics "github.com/tabularis-ai/tabularis/internal/metrics"
	"github.com/tabularis-ai/tabularis/internal/oracle"
	"github.com/tabularis-ai/tabularis/internal/profiler"
)

// ProfileData runs the two-tier Column Profiler and asks the oracle to
// assess the resulting artifact against the requirements. The selection
// step runs exactly once, and only when the combined column count exceeds
// the compact threshold.
func (a *Activities) ProfileData(ctx context.Context, in ProfileDataInput) (ProfileDataResult, error) {
	a.emit(in.SessionID, "profile_data", "started", "")

	cfg := a.cfg()
	pcfg := profiler.Config{
		CompactThreshold: cfg.Profiler.CompactThreshold,
		MaxDetailed:      cfg.Profiler.MaxDetailed,
		TopK:             cfg.Profiler.TopK,
		MaxSamples:       cfg.Profiler.MaxSamples,
	}

	found, missingIDs := a.registry.Resolve(in.DatasetIDs)
	if len(found) == 0 {
		err := fmt.Errorf("no datasets available for profiling (unknown ids: %s)", strings.Join(missingIDs, ", "))
		a.stageDone(in.SessionID, "profile_data", err)
		return ProfileDataResult{}, err
	}

	plan := profiler.BuildPlan(found, pcfg)
	var (
		artifact      string
		nDetailed     int
		selectionUsed bool
	)
	if !plan.TwoTier {
		artifact = profiler.DetailedProfile(found, nil, pcfg)
		nDetailed = plan.TotalColumns
	} else {
		compact := a.compactOverview(found)
		selectionUsed = true
		refs := a.selectColumns(ctx, in, found, compact, pcfg)
		artifact = compact + "\n\n" + profiler.DetailedProfile(found, refs, pcfg)
		nDetailed = len(refs)
	}
	ometrics.ProfiledColumnsDetailed.Observe(float64(nDetailed))

	profile, err := a.oracle.ProfileData(ctx, oracle.ProfileRequest{
		Question:            in.Question,
		Requirements:        in.Requirements,
		ProfileArtifact:     artifact,
		RemediationGuidance: in.RemediationGuidance,
	})
	a.stageDone(in.SessionID, "profile_data", err)
	if err != nil {
		return ProfileDataResult{}, err
	}
	profile.Artifact = artifact

	// Structurally absent required columns are a matter of record, not
	// oracle judgment: union them in so alignment always sees them.
	profile.MissingColumns = unionStrings(profile.MissingColumns,
		missingRequired(found, in.Requirements.VariablesNeeded))
	for _, id := range missingIDs {
		profile.MissingColumns = unionStrings(profile.MissingColumns,
			[]string{fmt.Sprintf("dataset:%s", id)})
	}

	a.logger.Info("Data profiled",
		zap.String("session_id", in.SessionID),
		zap.Int("total_columns", plan.TotalColumns),
		zap.Int("detailed_columns", nDetailed),
		zap.Bool("two_tier", plan.TwoTier),
		zap.Bool("suitable", profile.IsSuitable),
	)
	return ProfileDataResult{
		Profile:         profile,
		DetailedColumns: nDetailed,
		SelectionUsed:   selectionUsed,
		ArtifactCost:    plan.Cost(nDetailed),
	}, nil
}

// compactOverview builds (or reuses) the per-dataset compact overviews.
// Datasets are immutable after load, so cached overviews never go stale.
func (a *Activities) compactOverview(found []*dataset.Dataset) string {
	parts := make([]string, 0, len(found))
	for _, ds := range found {
		key := "compact:" + ds.ID
		if cached, ok := a.registry.CachedProfile(key); ok {
			ometrics.ProfileCacheHits.Inc()
			parts = append(parts, cached)
			continue
		}
		overview := profiler.CompactOverview([]*dataset.Dataset{ds})
		a.registry.StoreProfile(key, overview)
		parts = append(parts, overview)
	}
	return strings.Join(parts, "\n\n")
}

// selectColumns asks the oracle for the detailed-profile subset, falling
// back to the deterministic ranking when the response is unusable. Either
// way the result is clamped to existing columns and the budget.
func (a *Activities) selectColumns(
	ctx context.Context,
	in ProfileDataInput,
	found []*dataset.Dataset,
	compact string,
	pcfg profiler.Config,
) []profiler.ColumnRef {
	refs, err := a.oracle.SelectColumns(ctx, oracle.SelectColumnsRequest{
		Question:        in.Question,
		CompactOverview: compact,
		VariablesNeeded: in.Requirements.VariablesNeeded,
		MaxColumns:      pcfg.MaxDetailed,
	})
	if err != nil {
		a.logger.Warn("Column selection failed, using ranked fallback",
			zap.String("session_id", in.SessionID),
			zap.Error(err),
		)
		return profiler.FallbackSelection(found, in.Requirements.VariablesNeeded, pcfg.MaxDetailed)
	}
	clamped := profiler.ClampSelection(found, refs, pcfg.MaxDetailed)
	if len(clamped) == 0 {
		return profiler.FallbackSelection(found, in.Requirements.VariablesNeeded, pcfg.MaxDetailed)
	}
	return clamped
}

// missingRequired returns required column names absent from every dataset.
func missingRequired(found []*dataset.Dataset, required []string) []string {
	var missing []string
	for _, name := range required {
		present := false
		for _, ds := range found {
			if ds.Column(name) != nil {
				present = true
				break
			}
		}
		if !present {
			missing = append(missing, name)
		}
	}
	return missing
}

func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			base = append(base, s)
		}
	}
	return base
}
