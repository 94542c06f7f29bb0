// Package ledtest holds bench test patterns that walk the LED matrix to
// check wiring and the channel layout.
package ledtest

import (
	"fmt"

	"github.com/coreman2200/keyglow/internal/illum"
	"github.com/coreman2200/keyglow/internal/layout"
	"github.com/coreman2200/keyglow/internal/led"
)

type Kind string

const (
	IndexSweep    Kind = "index_sweep"
	RowSweep      Kind = "row_sweep"
	ColumnSweep   Kind = "column_sweep"
	FunctionLayer Kind = "function_layer"
)

var Kinds = []Kind{IndexSweep, RowSweep, ColumnSweep, FunctionLayer}

func Parse(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("ledtest: unknown pattern %q", s)
}

type Runner struct {
	kind  Kind
	level uint8
	step  int
}

func NewRunner(kind Kind, level uint8) *Runner { return &Runner{kind: kind, level: level} }

func (r *Runner) Kind() Kind { return r.kind }

// Step draws the next frame into buf; returns false when complete.
func (r *Runner) Step(l layout.Layout, buf *led.Buffer) bool {
	buf.Clear()
	switch r.kind {
	case IndexSweep:
		if r.step >= l.Count() {
			return false
		}
		buf[r.step] = r.level
	case RowSweep:
		if r.step >= l.Dim.Rows {
			return false
		}
		for col := 0; col < l.Dim.Cols; col++ {
			if ch, ok := l.Channel(r.step, col); ok {
				buf[ch] = r.level
			}
		}
	case ColumnSweep:
		if r.step >= l.Dim.Cols {
			return false
		}
		for row := 0; row < l.Dim.Rows; row++ {
			if ch, ok := l.Channel(row, r.step); ok {
				buf[ch] = r.level
			}
		}
	case FunctionLayer:
		if r.step >= len(illum.FunctionLayer) {
			return false
		}
		buf[illum.FunctionLayer[r.step]] = r.level
	default:
		return false
	}
	r.step++
	return true
}
