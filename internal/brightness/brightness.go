// Package brightness holds the shared luminosity scalar and the rate limiter
// that gates adjustments to it.
package brightness

import (
	"github.com/coreman2200/keyglow/internal/mathx"
	"github.com/coreman2200/keyglow/internal/metrics"
)

const (
	Min uint8 = 10
	Max uint8 = 245
	// Off is only ever set explicitly; adjustments never land on it.
	Off uint8 = 0

	DefaultStep     uint8 = 10
	DefaultDebounce uint8 = 30

	wrapMask = 0x7F
)

// Limiter accepts at most one event per threshold ticks of an 8-bit wrapping
// millisecond counter. Differences are taken modulo 128 so the comparison
// survives counter overflow.
type Limiter struct {
	Threshold uint8

	last  uint8
	armed bool
}

// Allow reports whether an adjustment at now is accepted and, if so, records
// now as the last accepted tick. The first call after boot is always accepted.
func (l *Limiter) Allow(now uint8) bool {
	if l.armed && (now-l.last)&wrapMask < l.Threshold {
		return false
	}
	l.last = now
	l.armed = true
	return true
}

// Last returns the last accepted tick and whether one was accepted yet.
func (l *Limiter) Last() (uint8, bool) { return l.last, l.armed }

// Controller owns the luminosity value.
type Controller struct {
	Step    uint8
	limiter Limiter
	lum     uint8
}

// New returns a controller at initial luminosity (clamped unless Off).
func New(initial, step, debounce uint8) *Controller {
	if initial != Off {
		initial = mathx.Clamp(initial, Min, Max)
	}
	return &Controller{
		Step:    step,
		limiter: Limiter{Threshold: debounce},
		lum:     initial,
	}
}

func (c *Controller) Value() uint8 { return c.lum }

// Limiter exposes the rate limiter state.
func (c *Controller) Limiter() *Limiter { return &c.limiter }

// Increase raises the luminosity by one step if the rate limiter accepts now.
func (c *Controller) Increase(now uint8) bool { return c.adjust(int(c.Step), now) }

// Decrease lowers the luminosity by one step if the rate limiter accepts now.
func (c *Controller) Decrease(now uint8) bool { return c.adjust(-int(c.Step), now) }

func (c *Controller) adjust(delta int, now uint8) bool {
	if !c.limiter.Allow(now) {
		metrics.BrightnessRejected.Inc()
		return false
	}
	c.lum = uint8(mathx.Clamp(int(c.lum)+delta, int(Min), int(Max)))
	return true
}

// SetOff forces the luminosity to Off.
func (c *Controller) SetOff() { c.lum = Off }
