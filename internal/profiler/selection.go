package profiler

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tabularis-ai/tabularis/internal/dataset"
)

var idPattern = regexp.MustCompile(`(?i)(^|_)(id|key|code|uuid)$`)

// FallbackSelection ranks columns deterministically when the oracle's
// selection is unavailable or malformed, using the same bias the oracle is
// asked for: columns the requirements name, columns with missing data,
// numeric columns, and join-key-looking names.
func FallbackSelection(datasets []*dataset.Dataset, required []string, max int) []ColumnRef {
	req := make(map[string]bool, len(required))
	for _, name := range required {
		req[strings.ToLower(name)] = true
	}

	type scored struct {
		ref   ColumnRef
		score int
		order int
	}
	var all []scored
	order := 0
	for _, ds := range datasets {
		for i := range ds.Columns {
			col := &ds.Columns[i]
			s := 0
			if req[strings.ToLower(col.Name)] {
				s += 8
			}
			if col.MissingFraction() > 0 {
				s += 4
			}
			if col.IsNumeric() {
				s += 2
			}
			if idPattern.MatchString(col.Name) {
				s += 1
			}
			all = append(all, scored{
				ref:   ColumnRef{DatasetID: ds.ID, Column: col.Name},
				score: s,
				order: order,
			})
			order++
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if len(all) > max {
		all = all[:max]
	}
	out := make([]ColumnRef, len(all))
	for i, s := range all {
		out[i] = s.ref
	}
	return out
}

// ClampSelection filters an oracle-proposed selection down to columns that
// actually exist and at most max entries, preserving order and dropping
// duplicates.
func ClampSelection(datasets []*dataset.Dataset, proposed []ColumnRef, max int) []ColumnRef {
	byID := make(map[string]*dataset.Dataset, len(datasets))
	for _, ds := range datasets {
		byID[ds.ID] = ds
	}
	seen := make(map[ColumnRef]bool, len(proposed))
	var out []ColumnRef
	for _, ref := range proposed {
		if len(out) >= max {
			break
		}
		ds := byID[ref.DatasetID]
		if ds == nil || ds.Column(ref.Column) == nil || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}
