// Package layout maps between LED channels and their position on the board.
package layout

import "github.com/coreman2200/keyglow/internal/led"

type Dim struct{ Rows, Cols int }

// Order describes how the channels are wired across the grid.
type Order struct {
	// ColFlipEveryRow reverses odd rows (serpentine wiring).
	ColFlipEveryRow bool
}

type Layout struct {
	Dim   Dim
	Order Order
}

// Default is the 9x16 matrix of the controller: channel = row*16 + col.
var Default = Layout{Dim: Dim{Rows: 9, Cols: 16}}

// Channel maps row,col -> channel. ok is false outside the grid.
func (l Layout) Channel(row, col int) (led.Channel, bool) {
	if row < 0 || col < 0 || row >= l.Dim.Rows || col >= l.Dim.Cols {
		return 0, false
	}
	if row%2 == 1 && l.Order.ColFlipEveryRow {
		col = l.Dim.Cols - 1 - col
	}
	ch := led.Channel(row*l.Dim.Cols + col)
	return ch, ch.Valid()
}

// Position is the inverse of Channel.
func (l Layout) Position(ch led.Channel) (row, col int, ok bool) {
	if int(ch) >= l.Count() {
		return 0, 0, false
	}
	row, col = int(ch)/l.Dim.Cols, int(ch)%l.Dim.Cols
	if row%2 == 1 && l.Order.ColFlipEveryRow {
		col = l.Dim.Cols - 1 - col
	}
	return row, col, true
}

func (l Layout) Count() int {
	return l.Dim.Rows * l.Dim.Cols
}
