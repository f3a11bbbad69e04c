// Package tabular implements on-demand analysis of CSV datasets: a code
// model writes a small analysis script against the loaded tables and a
// sandboxed interpreter executes it.
package tabular

import (
	"fmt"
	"strings"
)

// Dataset is one loaded CSV table. Column order follows the file header;
// cell values are typed (int64, float64 or string) by the loader.
type Dataset struct {
	// Name is the dataset key, the CSV filename as it appears in the inputs
	// directory (e.g. "sales.csv").
	Name string

	// Columns holds the header names in file order.
	Columns []string

	// Rows holds one map per data row, keyed by column name. The value
	// types are the interpreter-native scalars int64, float64 and string.
	Rows []map[string]any
}

// sampleRows formats up to n leading rows for the code model's context,
// one row per line in column order.
func (d Dataset) sampleRows(n int) string {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		cells := make([]string, len(d.Columns))
		for j, col := range d.Columns {
			cells[j] = fmt.Sprintf("%v", d.Rows[i][col])
		}
		b.WriteString(strings.Join(cells, ", "))
		b.WriteString("\n")
	}
	return b.String()
}
