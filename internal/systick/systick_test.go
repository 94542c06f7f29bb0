package systick

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestMillisFollowsClock(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c := New(clk)
	assert.Equal(t, uint32(0), c.Millis())

	clk.Advance(40 * time.Millisecond)
	assert.Equal(t, uint32(40), c.Millis())
	assert.Equal(t, uint8(40), c.Millis8())
}

func TestMillis8Wraps(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c := New(clk)
	clk.Advance(300 * time.Millisecond)
	assert.Equal(t, uint32(300), c.Millis())
	assert.Equal(t, uint8(44), c.Millis8())
}
