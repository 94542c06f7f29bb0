package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/keyglow/internal/led"
)

func TestDefaultCoversAllChannels(t *testing.T) {
	assert.Equal(t, led.ChannelCount, Default.Count())
	ch, ok := Default.Channel(1, 0)
	require.True(t, ok)
	assert.Equal(t, led.Channel(16), ch)
	_, ok = Default.Channel(9, 0)
	assert.False(t, ok)
	_, ok = Default.Channel(0, -1)
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	for _, l := range []Layout{Default, {Dim: Default.Dim, Order: Order{ColFlipEveryRow: true}}} {
		for c := 0; c < l.Count(); c++ {
			row, col, ok := l.Position(led.Channel(c))
			require.True(t, ok)
			back, ok := l.Channel(row, col)
			require.True(t, ok)
			assert.Equal(t, led.Channel(c), back)
		}
	}
}

func TestSerpentine(t *testing.T) {
	l := Layout{Dim: Dim{Rows: 2, Cols: 4}, Order: Order{ColFlipEveryRow: true}}
	ch, _ := l.Channel(1, 0)
	assert.Equal(t, led.Channel(7), ch)
}
