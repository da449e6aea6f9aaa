package sampler

import "github.com/lox/uboat/internal/board"

// Domain is the set of outcome values a report is keyed on, ascending.
type Domain []int

// CellDomain returns 1..6, every hit count a search with at least one draw can
// produce.
func CellDomain() Domain {
	d := make(Domain, board.Cells)
	for i := range d {
		d[i] = i + 1
	}
	return d
}

// Contains reports whether v is part of the domain.
func (d Domain) Contains(v int) bool {
	for _, x := range d {
		if x == v {
			return true
		}
	}
	return false
}
