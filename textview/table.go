// Package textview renders reader results for terminals: aligned tables and
// annotated object dumps.
package textview

import (
	"fmt"
	"io"
	"strings"
)

// Column describes one table column. Format, when set, decorates a cell
// after its width has been measured.
type Column struct {
	Header string
	Blank  string
	Format func(string) string
}

type Table struct {
	columns []Column
	rows    [][]string
	widths  []int
}

func NewTable(cols ...Column) *Table {
	t := &Table{
		columns: cols,
		widths:  make([]int, len(cols)),
	}
	for i := range t.columns {
		if t.columns[i].Blank == "" {
			t.columns[i].Blank = "-"
		}
		t.widths[i] = visibleLength(t.columns[i].Header)
	}
	return t
}

// AddRow appends a row; missing and empty cells show the column's blank value
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(cells) && cells[i] != "" {
			row[i] = cells[i]
		} else {
			row[i] = t.columns[i].Blank
		}
		t.widths[i] = max(t.widths[i], visibleLength(row[i]))
	}
	t.rows = append(t.rows, row)
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) line(cells []string, format bool) string {
	out := make([]string, len(cells))
	for i, cell := range cells {
		padded := cell + strings.Repeat(" ", t.widths[i]-visibleLength(cell))
		if format && t.columns[i].Format != nil && cell != t.columns[i].Blank {
			padded = t.columns[i].Format(cell) + padded[len(cell):]
		}
		out[i] = padded
	}
	return strings.TrimRight(strings.Join(out, "  "), " ")
}

func (t *Table) Render(w io.Writer) error {
	headers := make([]string, len(t.columns))
	rule := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = col.Header
		rule[i] = strings.Repeat("-", t.widths[i])
	}
	if _, err := fmt.Fprintln(w, t.line(headers, false)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, t.line(rule, false)); err != nil {
		return err
	}
	for _, row := range t.rows {
		if _, err := fmt.Fprintln(w, t.line(row, true)); err != nil {
			return err
		}
	}
	return nil
}

// visibleLength counts runes outside ANSI escape sequences
func visibleLength(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\033':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			n++
		}
	}
	return n
}
