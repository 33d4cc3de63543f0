package util

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Table lays out rows of cells in aligned columns for terminal output.
type Table struct {
	sb     *strings.Builder
	writer *tabwriter.Writer
}

// NewTable returns a Table that separates columns by at least padding spaces.
func NewTable(padding int) *Table {
	sb := &strings.Builder{}
	return &Table{
		sb:     sb,
		writer: tabwriter.NewWriter(sb, 1, 1, padding, ' ', 0),
	}
}

// Row adds one line with a column per cell.
func (t *Table) Row(cells ...interface{}) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprint(cell)
	}
	// Writes to a strings.Builder can't fail.
	_, _ = fmt.Fprintln(t.writer, strings.Join(parts, "\t"))
}

// Field adds a "label: value" line; labels of consecutive fields are aligned.
func (t *Table) Field(label string, value interface{}) {
	t.Row(label+":", value)
}

func (t *Table) String() string {
	_ = t.writer.Flush()
	return t.sb.String()
}
