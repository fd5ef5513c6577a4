package activities

import (
	"fmt"
	"strings"

	"github.com/tabularis-ai/tabularis/internal/dataset"
)

// summarizeDatasets renders a one-line inventory per dataset for the
// classify and requirements stages. These stages never see row data; the
// profiler owns anything deeper.
func summarizeDatasets(datasets []*dataset.Dataset) []string {
	lines := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		names := ds.ColumnNames()
		shown := names
		suffix := ""
		if len(names) > 12 {
			shown = names[:12]
			suffix = fmt.Sprintf(", ... (%d more)", len(names)-12)
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %d rows x %d columns: %s%s",
			ds.ID, ds.Name, ds.Rows, ds.Width(), strings.Join(shown, ", "), suffix))
	}
	return lines
}

// executionContext describes the sandbox environment for code generation:
// exact dataset names, access pattern, and expected output variables.
func executionContext(datasets []*dataset.Dataset) map[string]string {
	ids := make([]string, len(datasets))
	for i, ds := range datasets {
		ids[i] = ds.ID
	}
	return map[string]string{
		"datasets":         strings.Join(ids, ", "),
		"access_pattern":   "datasets['dataset_id']",
		"output_variables": "result (analysis payload) or fig (figure)",
	}
}
