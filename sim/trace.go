package sim

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Trace accumulates one row of named cell values per cycle and renders
// them as a waveform table — the per-cycle trace log spec.md §6 names as
// one of the two externally consumable artifacts.
type Trace struct {
	Names []string
	Rows  [][]string
}

// NewTrace watches the given IO paths.
func NewTrace(names ...string) *Trace {
	return &Trace{Names: names}
}

// Capture snapshots the watched paths' current values as one row.
func (tr *Trace) Capture(s *Simulator) {
	row := make([]string, len(tr.Names))
	for i, n := range tr.Names {
		if v := s.Peek(n); v != nil {
			row[i] = FormatStateData(v)
		} else {
			row[i] = "?"
		}
	}
	tr.Rows = append(tr.Rows, row)
}

// WriteTo renders the accumulated rows as a table, one row per captured
// cycle.
func (tr *Trace) WriteTo(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := table.Row{"cycle"}
	for _, n := range tr.Names {
		header = append(header, n)
	}
	t.AppendHeader(header)

	for i, row := range tr.Rows {
		r := table.Row{i}
		for _, v := range row {
			r = append(r, v)
		}
		t.AppendRow(r)
	}
	t.Render()
}
