package loader

import (
	"fmt"
	"strings"
)

// UnnamedPrefix marks generated names of header cells that were empty.
const UnnamedPrefix = "Unnamed: "

// Table is one sheet of parsed tabular data. Every row has len(Header)
// cells.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// NewTable builds a table from raw records. The first record that is not
// blank becomes the header; blank header cells are named "Unnamed: <i>" and
// blank rows are dropped.
func NewTable(name string, records [][]string) Table {
	t := Table{Name: name}
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		if t.Header == nil {
			t.Header = make([]string, len(rec))
			for i, cell := range rec {
				cell = strings.TrimSpace(cell)
				if cell == "" {
					cell = fmt.Sprintf("%s%d", UnnamedPrefix, i)
				}
				t.Header[i] = cell
			}
			continue
		}
		row := make([]string, len(t.Header))
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Unnamed counts header cells that carry a generated or literal "Unnamed"
// name.
func (t Table) Unnamed() int {
	n := 0
	for _, h := range t.Header {
		if strings.Contains(strings.ToLower(h), "unnamed") {
			n++
		}
	}
	return n
}

// Column returns the cells of column i.
func (t Table) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Index returns the position of the named column, or -1.
func (t Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
