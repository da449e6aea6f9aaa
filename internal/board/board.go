// Package board holds the state of a single sonar search: six cells laid out
// as two rows of three, each either hit or untouched.
package board

import (
	"errors"
	"fmt"
)

const (
	Rows  = 2
	Cols  = 3
	Cells = Rows * Cols
)

// ErrInvalidIndex is returned when a cell index falls outside 1..6.
var ErrInvalidIndex = errors.New("invalid cell index")

// Board is a 2x3 grid of cells. The zero value is an empty board.
type Board struct {
	grid [Rows][Cols]bool
}

// New returns a board with every cell unmarked.
func New() *Board {
	return &Board{}
}

// Coords maps a 1-based cell index to its (row, col) position.
//
//	1 2 3
//	4 5 6
func Coords(index int) (row, col int, err error) {
	if index < 1 || index > Cells {
		return 0, 0, fmt.Errorf("%w: %d (want 1-%d)", ErrInvalidIndex, index, Cells)
	}
	i := index - 1
	return i / Cols, i % Cols, nil
}

// Index is the inverse of Coords.
func Index(row, col int) (int, error) {
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrInvalidIndex, row, col)
	}
	return row*Cols + col + 1, nil
}

// Mark sets the cell as hit. Marking a cell that is already hit is a no-op.
func (b *Board) Mark(index int) error {
	row, col, err := Coords(index)
	if err != nil {
		return err
	}
	b.grid[row][col] = true
	return nil
}

// IsMarked reports whether the cell has been hit.
func (b *Board) IsMarked(index int) (bool, error) {
	row, col, err := Coords(index)
	if err != nil {
		return false, err
	}
	return b.grid[row][col], nil
}

// CountMarked returns the number of hit cells, 0..6.
func (b *Board) CountMarked() int {
	count := 0
	for _, row := range b.grid {
		for _, hit := range row {
			if hit {
				count++
			}
		}
	}
	return count
}

// Cells returns the hit state of every cell in index order (element 0 is cell 1).
func (b *Board) Cells() [Cells]bool {
	var out [Cells]bool
	for r := range Rows {
		for c := range Cols {
			out[r*Cols+c] = b.grid[r][c]
		}
	}
	return out
}

// String renders the board as two rows, X for a hit and the cell number otherwise.
func (b *Board) String() string {
	buf := make([]byte, 0, Cells*2+1)
	for r := range Rows {
		if r > 0 {
			buf = append(buf, '\n')
		}
		for c := range Cols {
			if c > 0 {
				buf = append(buf, ' ')
			}
			if b.grid[r][c] {
				buf = append(buf, 'X')
			} else {
				buf = append(buf, byte('1'+r*Cols+c))
			}
		}
	}
	return string(buf)
}
