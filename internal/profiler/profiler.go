// Package profiler implements the adaptive two-tier dataset profiling used
// by the Profile-Data stage. Narrow dataset sets (at or below the compact
// threshold) get a detailed profile for every column. Wide sets get a
// compact one-line overview of every column plus detailed profiles for a
// bounded, oracle-selected subset, keeping the artifact cost at
// total_columns*CompactCostPerColumn + max_detailed*DetailedCostPerColumn
// no matter how wide the data grows.
package profiler

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tabularis-ai/tabularis/internal/dataset"
)

// Token-equivalent cost per column for each tier. These are accounting
// units, not exact tokenizer output; they bound what the oracle is shown.
const (
	CompactCostPerColumn  = 10
	DetailedCostPerColumn = 70
)

// Config carries the profiling knobs.
type Config struct {
	// CompactThreshold is the total column count above which profiling
	// switches to the two-tier strategy.
	CompactThreshold int
	// MaxDetailed bounds how many columns receive a detailed profile in
	// two-tier mode.
	MaxDetailed int
	// TopK is how many most-frequent values a detailed categorical profile
	// lists.
	TopK int
	// MaxSamples is how many raw sample values a detailed profile includes.
	MaxSamples int
}

// DefaultConfig returns the design constants from the source system.
func DefaultConfig() Config {
	return Config{CompactThreshold: 30, MaxDetailed: 40, TopK: 3, MaxSamples: 5}
}

// ColumnRef names one column of one dataset.
type ColumnRef struct {
	DatasetID string `json:"dataset_id"`
	Column    string `json:"column"`
}

// Plan is the tier decision for a set of datasets.
type Plan struct {
	TotalColumns int
	// TwoTier is true when the column count exceeds the compact threshold
	// and a selection step is required.
	TwoTier bool
}

// BuildPlan computes the tier decision for the datasets in scope.
func BuildPlan(datasets []*dataset.Dataset, cfg Config) Plan {
	total := 0
	for _, ds := range datasets {
		total += ds.Width()
	}
	return Plan{TotalColumns: total, TwoTier: total > cfg.CompactThreshold}
}

// Cost returns the token-equivalent cost of an artifact built under this
// plan with nDetailed detailed columns.
func (p Plan) Cost(nDetailed int) int {
	if !p.TwoTier {
		return p.TotalColumns * DetailedCostPerColumn
	}
	return p.TotalColumns*CompactCostPerColumn + nDetailed*DetailedCostPerColumn
}

// CompactOverview renders the one-line-per-column overview of every column
// in every dataset: name, declared type, cardinality, missingness, and a
// mean (numeric) or mode (categorical).
func CompactOverview(datasets []*dataset.Dataset) string {
	var b strings.Builder
	for _, ds := range datasets {
		fmt.Fprintf(&b, "Dataset %q (%s): %d rows x %d columns\n", ds.ID, ds.Name, ds.Rows, ds.Width())
		for i := range ds.Columns {
			col := &ds.Columns[i]
			parts := []string{fmt.Sprintf("%s (%s)", col.Name, col.Kind)}
			parts = append(parts, fmt.Sprintf("unique=%d", cardinality(col)))
			if col.IsNumeric() {
				if m, ok := mean(col); ok {
					parts = append(parts, fmt.Sprintf("mean=%.1f", m))
				}
			} else if mode, n := modeValue(col); n > 0 {
				parts = append(parts, fmt.Sprintf("mode=%q", truncate(mode, 20)))
			}
			if f := col.MissingFraction(); f > 0 {
				parts = append(parts, fmt.Sprintf("missing=%.1f%%", f*100))
			}
			fmt.Fprintf(&b, "  %s\n", strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// DetailedProfile renders full per-column profiles for the selected
// columns. A nil selection profiles every column of every dataset.
func DetailedProfile(datasets []*dataset.Dataset, selected []ColumnRef, cfg Config) string {
	if selected == nil {
		for _, ds := range datasets {
			for _, name := range ds.ColumnNames() {
				selected = append(selected, ColumnRef{DatasetID: ds.ID, Column: name})
			}
		}
	}

	byID := make(map[string]*dataset.Dataset, len(datasets))
	for _, ds := range datasets {
		byID[ds.ID] = ds
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Detailed profile (%d columns):\n", len(selected))
	for _, ref := range selected {
		ds := byID[ref.DatasetID]
		if ds == nil {
			continue
		}
		col := ds.Column(ref.Column)
		if col == nil {
			continue
		}
		writeColumnProfile(&b, ds, col, cfg)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeColumnProfile(b *strings.Builder, ds *dataset.Dataset, col *dataset.Column, cfg Config) {
	fmt.Fprintf(b, "  - %s (%s) [%s]\n", col.Name, col.Kind, ds.ID)
	if n := col.MissingCount(); n > 0 {
		fmt.Fprintf(b, "    missing: %d (%.1f%%)\n", n, col.MissingFraction()*100)
	}
	fmt.Fprintf(b, "    unique: %d\n", cardinality(col))

	if col.IsNumeric() {
		lo, hi, ok := numericRange(col)
		if ok {
			fmt.Fprintf(b, "    range: [%.2f, %.2f]\n", lo, hi)
		}
		if m, ok := mean(col); ok {
			fmt.Fprintf(b, "    mean: %.2f, std: %.2f\n", m, stddev(col, m))
		}
		samples := SmartSampleNumeric(col, cfg.MaxSamples)
		if len(samples) > 0 {
			strs := make([]string, len(samples))
			for i, v := range samples {
				strs[i] = fmt.Sprintf("%.2f", v)
			}
			fmt.Fprintf(b, "    sample (min/max/spread): [%s]\n", strings.Join(strs, ", "))
		}
		return
	}

	if top := topValues(col, cfg.TopK); len(top) > 0 {
		parts := make([]string, len(top))
		for i, tv := range top {
			parts[i] = fmt.Sprintf("%q (%d)", truncate(tv.value, 30), tv.count)
		}
		fmt.Fprintf(b, "    top: %s\n", strings.Join(parts, ", "))
	}
	samples := SmartSampleValues(col, cfg.MaxSamples)
	if len(samples) > 0 {
		parts := make([]string, len(samples))
		for i, s := range samples {
			parts[i] = fmt.Sprintf("%q", truncate(s, 50))
		}
		fmt.Fprintf(b, "    sample (head/mid/tail/rare): %s\n", strings.Join(parts, ", "))
	}
}

// SmartSampleNumeric picks min, max, and evenly spread interior values from
// the sorted non-null data. Edges come first because outliers and format
// drift cluster there.
func SmartSampleNumeric(col *dataset.Column, max int) []float64 {
	vals := nonNullFloats(col)
	if len(vals) == 0 || max <= 0 {
		return nil
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	samples := []float64{sorted[0]}
	if len(sorted) > 1 {
		samples = append(samples, sorted[len(sorted)-1])
	}
	for i := 1; len(samples) < max && i < len(sorted)-1; i++ {
		idx := i * len(sorted) / max
		if idx > 0 && idx < len(sorted)-1 {
			samples = append(samples, sorted[idx])
		}
	}
	if len(samples) > max {
		samples = samples[:max]
	}
	return samples
}

// SmartSampleValues draws raw values from the head, middle, and tail of a
// non-numeric column plus one value from the rare end of its frequency
// distribution. Mixed formats show up at the edges; uniform or head-only
// sampling misses them.
func SmartSampleValues(col *dataset.Column, max int) []string {
	var vals []string
	for i, s := range col.Strings {
		if !col.Null[i] {
			vals = append(vals, s)
		}
	}
	if len(vals) == 0 || max <= 0 {
		return nil
	}

	picks := []string{vals[0]}
	if len(vals) > 1 {
		picks = append(picks, vals[len(vals)/2])
	}
	if len(vals) > 2 {
		picks = append(picks, vals[len(vals)-1])
	}
	if rare, ok := rareValue(col); ok {
		picks = append(picks, rare)
	}

	// Deduplicate preserving order.
	seen := make(map[string]bool, len(picks))
	out := picks[:0]
	for _, p := range picks {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// rareValue returns a value from the bottom quintile of the frequency
// distribution, if the column has enough distinct values to have one.
func rareValue(col *dataset.Column) (string, bool) {
	counts := valueCounts(col)
	if len(counts) <= 3 {
		return "", false
	}
	idx := int(float64(len(counts)) * 0.8)
	if idx >= len(counts) {
		idx = len(counts) - 1
	}
	return counts[idx].value, true
}

type valueCount struct {
	value string
	count int
}

// valueCounts returns distinct values ordered by descending frequency,
// ties broken by value for determinism.
func valueCounts(col *dataset.Column) []valueCount {
	m := make(map[string]int)
	for i, s := range col.Strings {
		if !col.Null[i] {
			m[s]++
		}
	}
	out := make([]valueCount, 0, len(m))
	for v, n := range m {
		out = append(out, valueCount{value: v, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].value < out[j].value
	})
	return out
}

func topValues(col *dataset.Column, k int) []valueCount {
	counts := valueCounts(col)
	if len(counts) > k {
		counts = counts[:k]
	}
	return counts
}

func modeValue(col *dataset.Column) (string, int) {
	counts := valueCounts(col)
	if len(counts) == 0 {
		return "", 0
	}
	return counts[0].value, counts[0].count
}

func cardinality(col *dataset.Column) int {
	if col.IsNumeric() {
		m := make(map[float64]bool)
		for i, f := range col.Floats {
			if !col.Null[i] {
				m[f] = true
			}
		}
		return len(m)
	}
	m := make(map[string]bool)
	for i, s := range col.Strings {
		if !col.Null[i] {
			m[s] = true
		}
	}
	return len(m)
}

func nonNullFloats(col *dataset.Column) []float64 {
	var vals []float64
	for i, f := range col.Floats {
		if !col.Null[i] {
			vals = append(vals, f)
		}
	}
	return vals
}

func mean(col *dataset.Column) (float64, bool) {
	vals := nonNullFloats(col)
	if len(vals) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}

func stddev(col *dataset.Column, m float64) float64 {
	vals := nonNullFloats(col)
	if len(vals) < 2 {
		return 0
	}
	ss := 0.0
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

func numericRange(col *dataset.Column) (lo, hi float64, ok bool) {
	vals := nonNullFloats(col)
	if len(vals) == 0 {
		return 0, 0, false
	}
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
