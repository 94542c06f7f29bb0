package ledtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/keyglow/internal/illum"
	"github.com/coreman2200/keyglow/internal/layout"
	"github.com/coreman2200/keyglow/internal/led"
)

func run(t *testing.T, k Kind) [][]led.Channel {
	t.Helper()
	r := NewRunner(k, 200)
	var buf led.Buffer
	var frames [][]led.Channel
	for r.Step(layout.Default, &buf) {
		frames = append(frames, buf.Lit())
		require.Less(t, len(frames), 1000)
	}
	return frames
}

func TestIndexSweep(t *testing.T) {
	frames := run(t, IndexSweep)
	require.Len(t, frames, led.ChannelCount)
	for i, f := range frames {
		assert.Equal(t, []led.Channel{led.Channel(i)}, f)
	}
}

func TestRowAndColumnSweep(t *testing.T) {
	rows := run(t, RowSweep)
	require.Len(t, rows, 9)
	assert.Len(t, rows[0], 16)
	assert.Equal(t, led.Channel(16), rows[1][0])

	cols := run(t, ColumnSweep)
	require.Len(t, cols, 16)
	assert.Len(t, cols[0], 9)
}

func TestFunctionLayerWalk(t *testing.T) {
	frames := run(t, FunctionLayer)
	require.Len(t, frames, len(illum.FunctionLayer))
	assert.Equal(t, []led.Channel{illum.EscChannel}, frames[0])
}

func TestParse(t *testing.T) {
	k, err := Parse("row_sweep")
	require.NoError(t, err)
	assert.Equal(t, RowSweep, k)
	_, err = Parse("plane_z")
	assert.Error(t, err)
}
