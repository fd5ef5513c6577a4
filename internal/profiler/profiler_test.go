package profiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabularis-ai/tabularis/internal/dataset"
)

func numericColumn(name string, vals ...float64) dataset.Column {
	return dataset.Column{
		Name:   name,
		Kind:   dataset.KindNumeric,
		Floats: vals,
		Null:   make([]bool, len(vals)),
	}
}

func categoricalColumn(name string, vals ...string) dataset.Column {
	return dataset.Column{
		Name:    name,
		Kind:    dataset.KindCategorical,
		Strings: vals,
		Null:    make([]bool, len(vals)),
	}
}

// wideDataset builds one dataset with n numeric columns.
func wideDataset(id string, n int) *dataset.Dataset {
	cols := make([]dataset.Column, n)
	for i := range cols {
		cols[i] = numericColumn(fmt.Sprintf("col_%03d", i), 1, 2, 3)
	}
	return dataset.NewDataset(id, id, 3, cols)
}

func TestBuildPlanThreshold(t *testing.T) {
	cfg := DefaultConfig()

	narrow := BuildPlan([]*dataset.Dataset{wideDataset("a", 30)}, cfg)
	assert.Equal(t, 30, narrow.TotalColumns)
	assert.False(t, narrow.TwoTier, "at the threshold stays single-tier")

	wide := BuildPlan([]*dataset.Dataset{wideDataset("a", 20), wideDataset("b", 11)}, cfg)
	assert.Equal(t, 31, wide.TotalColumns)
	assert.True(t, wide.TwoTier, "the threshold applies across datasets combined")
}

func TestPlanCostIsBoundedForWideData(t *testing.T) {
	cfg := DefaultConfig()

	for _, n := range []int{31, 100, 500, 5000} {
		plan := BuildPlan([]*dataset.Dataset{wideDataset("a", n)}, cfg)
		require.True(t, plan.TwoTier)
		cost := plan.Cost(cfg.MaxDetailed)
		assert.Equal(t, n*CompactCostPerColumn+cfg.MaxDetailed*DetailedCostPerColumn, cost)
		// Full detail on every column must always cost more once two-tier
		// kicks in, otherwise the strategy would be pointless.
		assert.Less(t, cost, n*DetailedCostPerColumn)
	}
}

func TestCompactOverviewCoversEveryColumn(t *testing.T) {
	ds := dataset.NewDataset("sales", "sales", 4, []dataset.Column{
		numericColumn("amount", 10, 20, 30, 40),
		categoricalColumn("region", "north", "north", "south", "east"),
		{
			Name:    "owner",
			Kind:    dataset.KindText,
			Strings: []string{"ann", "", "bob", "cal"},
			Null:    []bool{false, true, false, false},
		},
	})

	out := CompactOverview([]*dataset.Dataset{ds})
	assert.Contains(t, out, `Dataset "sales"`)
	assert.Contains(t, out, "amount (numeric)")
	assert.Contains(t, out, "mean=25.0")
	assert.Contains(t, out, `mode="north"`)
	assert.Contains(t, out, "missing=25.0%")
	for _, name := range ds.ColumnNames() {
		assert.Contains(t, out, name)
	}
}

func TestDetailedProfileSelectedSubset(t *testing.T) {
	ds := wideDataset("wide", 50)
	selected := []ColumnRef{
		{DatasetID: "wide", Column: "col_000"},
		{DatasetID: "wide", Column: "col_049"},
		{DatasetID: "wide", Column: "no_such_column"},
		{DatasetID: "missing_ds", Column: "col_001"},
	}

	out := DetailedProfile([]*dataset.Dataset{ds}, selected, DefaultConfig())
	assert.Contains(t, out, "col_000")
	assert.Contains(t, out, "col_049")
	assert.NotContains(t, out, "col_010", "unselected columns stay out of the detailed tier")
	assert.NotContains(t, out, "no_such_column")
}

func TestDetailedProfileNumericStats(t *testing.T) {
	ds := dataset.NewDataset("d", "d", 5, []dataset.Column{
		numericColumn("age", 20, 30, 40, 50, 60),
	})

	out := DetailedProfile([]*dataset.Dataset{ds}, nil, DefaultConfig())
	assert.Contains(t, out, "range: [20.00, 60.00]")
	assert.Contains(t, out, "mean: 40.00")
	assert.Contains(t, out, "unique: 5")
}

func TestSmartSampleNumericEdgesFirst(t *testing.T) {
	col := numericColumn("v", 5, 1, 9, 3, 7, 2, 8)
	samples := SmartSampleNumeric(&col, 5)

	require.NotEmpty(t, samples)
	assert.Equal(t, 1.0, samples[0], "minimum comes first")
	assert.Equal(t, 9.0, samples[1], "maximum comes second")
	assert.LessOrEqual(t, len(samples), 5)
}

func TestSmartSampleValuesIncludesRareValue(t *testing.T) {
	// "rare_d" and beyond live in the low-frequency tail; head/mid/tail
	// sampling alone would only ever see "common".
	vals := []string{}
	for i := 0; i < 20; i++ {
		vals = append(vals, "common")
	}
	vals = append(vals, "rare_a", "rare_b", "rare_c", "rare_d", "common")
	col := categoricalColumn("status", vals...)

	samples := SmartSampleValues(&col, 5)
	require.NotEmpty(t, samples)
	assert.Equal(t, "common", samples[0])
	rareSeen := false
	for _, s := range samples {
		if strings.HasPrefix(s, "rare_") {
			rareSeen = true
		}
	}
	assert.True(t, rareSeen, "sampling must reach the rare end of the distribution")
}

func TestSmartSampleValuesDeduplicates(t *testing.T) {
	col := categoricalColumn("c", "x", "x", "x")
	samples := SmartSampleValues(&col, 5)
	assert.Equal(t, []string{"x"}, samples)
}

func TestFallbackSelectionBias(t *testing.T) {
	missing := dataset.Column{
		Name:    "notes",
		Kind:    dataset.KindText,
		Strings: []string{"a", "", ""},
		Null:    []bool{false, true, true},
	}
	ds := dataset.NewDataset("d", "d", 3, []dataset.Column{
		categoricalColumn("color", "r", "g", "b"),
		numericColumn("income", 1, 2, 3),
		missing,
		categoricalColumn("user_id", "u1", "u2", "u3"),
	})

	refs := FallbackSelection([]*dataset.Dataset{ds}, []string{"income"}, 3)
	require.Len(t, refs, 3)
	// Required and numeric beats missing beats id-pattern beats plain.
	assert.Equal(t, "income", refs[0].Column)
	assert.Equal(t, "notes", refs[1].Column)
	assert.Equal(t, "user_id", refs[2].Column)
}

func TestFallbackSelectionRespectsMax(t *testing.T) {
	cfg := DefaultConfig()
	refs := FallbackSelection([]*dataset.Dataset{wideDataset("a", 200)}, nil, cfg.MaxDetailed)
	assert.Len(t, refs, cfg.MaxDetailed)
}

func TestClampSelection(t *testing.T) {
	ds := wideDataset("a", 10)
	proposed := []ColumnRef{
		{DatasetID: "a", Column: "col_001"},
		{DatasetID: "a", Column: "col_001"}, // duplicate
		{DatasetID: "a", Column: "invented_by_oracle"},
		{DatasetID: "ghost", Column: "col_002"},
		{DatasetID: "a", Column: "col_003"},
		{DatasetID: "a", Column: "col_004"},
	}

	out := ClampSelection([]*dataset.Dataset{ds}, proposed, 2)
	assert.Equal(t, []ColumnRef{
		{DatasetID: "a", Column: "col_001"},
		{DatasetID: "a", Column: "col_003"},
	}, out)
}
