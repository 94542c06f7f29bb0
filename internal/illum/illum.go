// Package illum renders the keyboard illumination presets into the LED frame
// buffer.
package illum

import (
	"fmt"

	"github.com/coreman2200/keyglow/internal/led"
)

type Preset uint8

const (
	AllLit Preset = iota
	FunctionLayerOnly
)

func (p Preset) String() string {
	switch p {
	case AllLit:
		return "all"
	case FunctionLayerOnly:
		return "function"
	}
	return fmt.Sprintf("Preset(%d)", uint8(p))
}

// EscChannel is the channel under the Esc key.
const EscChannel led.Channel = 16

// FunctionLayer lists the channels of the keys that carry a function-layer
// binding.
var FunctionLayer = []led.Channel{
	16, 32, 48, 64, 80, 96, 112, 7, 0, 33, 49,
	65, 81, 97, 113, 85, 70, 86, 102, 99, 103, 38,
}

func init() {
	if !EscChannel.Valid() {
		panic("illum: esc channel out of range")
	}
	for _, c := range FunctionLayer {
		if !c.Valid() {
			panic(fmt.Sprintf("illum: function layer channel %d out of range", c))
		}
	}
}

// Subsystem is the part of the LED subsystem the engine draws into.
type Subsystem interface {
	Buffer() *led.Buffer
	SendPage(page uint8)
}

// Luminosity supplies the current brightness scalar.
type Luminosity interface {
	Value() uint8
	SetOff()
}

// Engine tracks the active preset and the Esc highlight overlay. Every
// mutation leaves the buffer showing the visible state and queues the page.
type Engine struct {
	leds      Subsystem
	lum       Luminosity
	preset    Preset
	highlight bool
}

func NewEngine(leds Subsystem, lum Luminosity) *Engine {
	return &Engine{leds: leds, lum: lum}
}

func (e *Engine) Preset() Preset     { return e.preset }
func (e *Engine) Highlighted() bool { return e.highlight }

// Render redraws the visible state at the current luminosity.
func (e *Engine) Render() {
	buf := e.leds.Buffer()
	lum := e.lum.Value()
	buf.Clear()
	switch {
	case e.highlight:
		buf[EscChannel] = lum
	case e.preset == AllLit:
		buf.Fill(lum)
	default:
		for _, c := range FunctionLayer {
			buf[c] = lum
		}
	}
	e.leds.SendPage(led.BrightnessPage)
}

// Toggle flips between AllLit and FunctionLayerOnly. While the highlight is
// held the new preset is remembered but the overlay stays visible.
func (e *Engine) Toggle() {
	if e.preset == AllLit {
		e.preset = FunctionLayerOnly
	} else {
		e.preset = AllLit
	}
	e.Render()
}

// HighlightOn lights only the Esc key. The preset flag is not touched.
func (e *Engine) HighlightOn() {
	e.highlight = true
	e.Render()
}

// HighlightOff restores the active preset at the current luminosity.
func (e *Engine) HighlightOff() {
	e.highlight = false
	e.Render()
}

// AllOff drops the luminosity to zero and blanks every channel. The preset is
// kept; the next brightness increase brings it back at the minimum level.
func (e *Engine) AllOff() {
	e.lum.SetOff()
	e.leds.Buffer().Clear()
	e.leds.SendPage(led.BrightnessPage)
}

// Propagate re-renders after an accepted luminosity change.
func (e *Engine) Propagate() { e.Render() }
