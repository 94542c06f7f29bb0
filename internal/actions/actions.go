// Package actions implements the keyboard capabilities bound by the keymap:
// the illumination presets, brightness control and the key blocking helpers.
package actions

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/coreman2200/keyglow/internal/brightness"
	"github.com/coreman2200/keyglow/internal/capability"
	"github.com/coreman2200/keyglow/internal/illum"
)

// Clock is the free-running millisecond counter, truncated to 8 bits.
type Clock interface {
	Millis8() uint8
}

// Output receives key events that should reach the host.
type Output interface {
	USBCodeSend(ev capability.KeyEvent)
}

// OutputFunc adapts a function to Output.
type OutputFunc func(capability.KeyEvent)

func (f OutputFunc) USBCodeSend(ev capability.KeyEvent) { f(ev) }

type Deps struct {
	Engine  *illum.Engine
	Lum     *brightness.Controller
	Clock   Clock
	Output  Output
	// Console receives the informational lines shown on the debug console.
	Console io.Writer
	Log     zerolog.Logger
}

// Set holds the state owned by the capabilities themselves.
type Set struct {
	d       Deps
	blocked uint8
}

// Blocked returns the usb code currently held back by blockHold, 0 if none.
func (s *Set) Blocked() uint8 { return s.blocked }

// Register installs every capability into reg.
func Register(reg *capability.Registry, d Deps) (*Set, error) {
	s := &Set{d: d}
	s.d.Log = d.Log.With().Str("component", "actions").Logger()
	if s.d.Console == nil {
		s.d.Console = io.Discard
	}
	for _, c := range s.capabilities() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register %s: %w", c.Name(), err)
		}
	}
	return s, nil
}

func (s *Set) capabilities() []capability.Capability {
	usb := []string{"usbCode"}
	return []capability.Capability{
		capability.Func{ID: "action1", Fn: s.action1},
		capability.Func{ID: "blockHold", ArgNames: usb, Fn: s.blockHold},
		capability.Func{ID: "blockKey", ArgNames: usb, Fn: s.blockKey},
		capability.Func{ID: "updateLeds", Fn: s.updateLeds},
		capability.Func{ID: "lightEsc", Fn: s.lightEsc},
		capability.Func{ID: "increaseLuminosity", Fn: s.increase},
		capability.Func{ID: "decreaseLuminosity", Fn: s.decrease},
		capability.Func{ID: "turnAllLedsOff", Fn: s.allOff},
	}
}

func is(ev capability.KeyEvent, st capability.State) bool {
	return ev.Type == capability.Normal && ev.State == st
}

func (s *Set) action1(capability.KeyEvent) {
	s.d.Log.Info().Msg("Action1")
	fmt.Fprintln(s.d.Console, "Action1")
}

func (s *Set) blockHold(ev capability.KeyEvent) {
	if ev.Type != capability.Normal {
		return
	}
	key := ev.Args[0]
	switch ev.State {
	case capability.Press, capability.Hold:
		if s.blocked == 0 {
			s.blocked = key
			s.d.Log.Info().Str("usbCode", fmt.Sprintf("%#04x", key)).Msg("blocking key")
			fmt.Fprintf(s.d.Console, "Blocking Key: %#04x\n", key)
		}
	case capability.Off, capability.Release:
		if s.blocked != 0 && key == s.blocked {
			s.d.Log.Info().Str("usbCode", fmt.Sprintf("%#04x", key)).Msg("unblocking key")
			fmt.Fprintf(s.d.Console, "Unblocking Key: %#04x\n", key)
			s.blocked = 0
		}
	}
}

func (s *Set) blockKey(ev capability.KeyEvent) {
	if ev.Args[0] == s.blocked {
		return
	}
	if s.d.Output != nil {
		s.d.Output.USBCodeSend(ev)
	}
}

func (s *Set) updateLeds(ev capability.KeyEvent) {
	if is(ev, capability.Press) {
		s.d.Engine.Toggle()
	}
}

func (s *Set) lightEsc(ev capability.KeyEvent) {
	switch {
	case is(ev, capability.Press):
		s.d.Engine.HighlightOn()
	case is(ev, capability.Release):
		s.d.Engine.HighlightOff()
	}
}

func (s *Set) increase(ev capability.KeyEvent) { s.adjust(ev, s.d.Lum.Increase) }
func (s *Set) decrease(ev capability.KeyEvent) { s.adjust(ev, s.d.Lum.Decrease) }

// adjust applies a rate-limited brightness step on Hold only. Press and
// Release do not consume the limiter window.
func (s *Set) adjust(ev capability.KeyEvent, step func(now uint8) bool) {
	if !is(ev, capability.Hold) {
		return
	}
	now := s.d.Clock.Millis8()
	if !step(now) {
		s.d.Log.Trace().Uint8("now", now).Msg("brightness change rate limited")
		return
	}
	s.d.Log.Debug().Uint8("luminosity", s.d.Lum.Value()).Msg("brightness changed")
	s.d.Engine.Propagate()
}

func (s *Set) allOff(ev capability.KeyEvent) {
	if is(ev, capability.Press) {
		s.d.Engine.AllOff()
	}
}
