// Package systick provides the free-running millisecond counter the firmware
// timing code works against.
package systick

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Counter counts milliseconds since it was created.
type Counter struct {
	clock clockwork.Clock
	start time.Time
}

func New(clock clockwork.Clock) *Counter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Counter{clock: clock, start: clock.Now()}
}

// Millis returns the elapsed milliseconds, wrapping at 2^32.
func (c *Counter) Millis() uint32 {
	return uint32(c.clock.Since(c.start).Milliseconds())
}

// Millis8 is Millis truncated to the 8-bit view used by rate limiters.
func (c *Counter) Millis8() uint8 { return uint8(c.Millis()) }

func (c *Counter) Clock() clockwork.Clock { return c.clock }
