// Package table renders aligned text tables for the command line tools.
package table

import (
	"fmt"
	"io"
	"strings"
)

// FormatFunc colorizes a cell after its width has been measured.
type FormatFunc func(value string) string

type Column struct {
	Header string
	// Right aligns the column, for numbers
	Right  bool
	Format FormatFunc
}

// Table collects rows and renders them with columns padded to the widest
// visible cell. Escape sequences do not count towards the width.
type Table struct {
	columns []Column
	rows    [][]string
	widths  []int
}

// Blank is shown for empty cells.
const Blank = "-"

func New(cols ...Column) *Table {
	t := &Table{columns: cols, widths: make([]int, len(cols))}
	for i, c := range cols {
		t.widths[i] = VisibleLength(c.Header)
	}
	return t
}

// Add appends a row. Missing cells are blank, extra cells are dropped.
func (t *Table) Add(cells ...string) {
	row := make([]string, len(t.columns))
	for i := range row {
		row[i] = Blank
		if i < len(cells) && cells[i] != "" {
			row[i] = cells[i]
		}
		if n := VisibleLength(row[i]); n > t.widths[i] {
			t.widths[i] = n
		}
	}
	t.rows = append(t.rows, row)
}

// Addf appends a row of formatted cells, one verb per cell.
func (t *Table) Addf(format string, args ...interface{}) {
	t.Add(strings.Split(fmt.Sprintf(format, args...), "\t")...)
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Render(w io.Writer) error {
	header := make([]string, len(t.columns))
	rule := make([]string, len(t.columns))
	for i, c := range t.columns {
		header[i] = t.pad(i, c.Header, false)
		rule[i] = strings.Repeat("-", t.widths[i])
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(header, " "), " ")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Join(rule, " ")); err != nil {
		return err
	}

	for _, row := range t.rows {
		out := make([]string, len(row))
		for i, cell := range row {
			out[i] = t.pad(i, cell, true)
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(out, " "), " ")); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) String() string {
	var sb strings.Builder
	t.Render(&sb)
	return sb.String()
}

func (t *Table) pad(i int, s string, format bool) string {
	c := t.columns[i]
	fill := strings.Repeat(" ", max(0, t.widths[i]-VisibleLength(s)))
	if format && c.Format != nil {
		s = c.Format(s)
	}
	if c.Right {
		return fill + s
	}
	return s + fill
}

// VisibleLength counts runes outside ANSI escape sequences.
func VisibleLength(s string) int {
	n := 0
	escape := false
	for _, r := range s {
		switch {
		case r == '\033':
			escape = true
		case escape:
			if r == 'm' {
				escape = false
			}
		default:
			n++
		}
	}
	return n
}
