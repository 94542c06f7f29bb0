package actions

import (
	"bytes"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/keyglow/internal/brightness"
	"github.com/coreman2200/keyglow/internal/capability"
	"github.com/coreman2200/keyglow/internal/illum"
	"github.com/coreman2200/keyglow/internal/led"
	"github.com/coreman2200/keyglow/internal/systick"
)

type harness struct {
	clk     *clockwork.FakeClock
	leds    *led.Subsystem
	rec     *led.Recorder
	lum     *brightness.Controller
	engine  *illum.Engine
	set     *Set
	d       *capability.Dispatcher
	console *bytes.Buffer
	logs    *bytes.Buffer
	sent    []capability.KeyEvent
}

func newHarness(t *testing.T, lum uint8) *harness {
	t.Helper()
	h := &harness{clk: clockwork.NewFakeClock(), rec: &led.Recorder{}, console: &bytes.Buffer{}, logs: &bytes.Buffer{}}
	h.leds = led.NewSubsystem(h.rec, led.Limit{}, zerolog.Nop())
	require.NoError(t, h.leds.Setup())
	h.lum = brightness.New(lum, brightness.DefaultStep, brightness.DefaultDebounce)
	h.engine = illum.NewEngine(h.leds, h.lum)

	reg := capability.NewRegistry()
	set, err := Register(reg, Deps{
		Engine:  h.engine,
		Lum:     h.lum,
		Clock:   systick.New(h.clk),
		Output:  OutputFunc(func(ev capability.KeyEvent) { h.sent = append(h.sent, ev) }),
		Console: h.console,
		Log:     zerolog.New(h.logs),
	})
	require.NoError(t, err)
	h.set = set
	h.d = capability.NewDispatcher(reg, h.console, zerolog.Nop())
	return h
}

func (h *harness) key(t *testing.T, name string, st capability.State, args ...byte) {
	t.Helper()
	require.NoError(t, h.d.Dispatch(name, capability.KeyEvent{State: st, Type: capability.Normal, Args: args}))
}

func (h *harness) flush(t *testing.T) led.Page {
	t.Helper()
	h.leds.Service()
	p, ok := h.rec.Last()
	require.True(t, ok)
	return p
}

func TestAllCapabilitiesListed(t *testing.T) {
	h := newHarness(t, 100)
	require.NoError(t, h.d.ListCapabilities())
	assert.Equal(t, "action1()\n"+
		"blockHold(usbCode)\n"+
		"blockKey(usbCode)\n"+
		"decreaseLuminosity()\n"+
		"increaseLuminosity()\n"+
		"lightEsc()\n"+
		"turnAllLedsOff()\n"+
		"updateLeds()\n", h.console.String())
	assert.Equal(t, 0, h.leds.Pending(), "queries have no side effects")
}

func TestDecreaseEndToEnd(t *testing.T) {
	h := newHarness(t, 245)
	h.engine.Render()
	h.flush(t)

	h.key(t, "decreaseLuminosity", capability.Hold)
	assert.Equal(t, uint8(235), h.lum.Value())
	p := h.flush(t)
	assert.Len(t, p.Channels.Lit(), led.ChannelCount)
	assert.Equal(t, uint8(235), p.Channels[0])

	h.clk.Advance(10 * time.Millisecond)
	h.key(t, "decreaseLuminosity", capability.Hold)
	assert.Equal(t, uint8(235), h.lum.Value())
	assert.Equal(t, 0, h.leds.Pending())

	h.clk.Advance(30 * time.Millisecond)
	h.key(t, "decreaseLuminosity", capability.Hold)
	assert.Equal(t, uint8(225), h.lum.Value())
	p = h.flush(t)
	assert.Equal(t, uint8(225), p.Channels[143])
}

func TestBrightnessIgnoresPressAndRelease(t *testing.T) {
	h := newHarness(t, 100)
	h.key(t, "increaseLuminosity", capability.Press)
	h.key(t, "increaseLuminosity", capability.Release)
	assert.Equal(t, uint8(100), h.lum.Value())

	// Press did not start a rate-limit window.
	h.key(t, "increaseLuminosity", capability.Hold)
	assert.Equal(t, uint8(110), h.lum.Value())
}

func TestBrightnessConverges(t *testing.T) {
	h := newHarness(t, 100)
	for i := 0; i < 30; i++ {
		h.key(t, "increaseLuminosity", capability.Hold)
		h.clk.Advance(30 * time.Millisecond)
	}
	assert.Equal(t, brightness.Max, h.lum.Value())
	for i := 0; i < 30; i++ {
		h.key(t, "decreaseLuminosity", capability.Hold)
		h.clk.Advance(30 * time.Millisecond)
	}
	assert.Equal(t, brightness.Min, h.lum.Value())
}

func TestToggleFunctionLayer(t *testing.T) {
	h := newHarness(t, 100)
	h.key(t, "updateLeds", capability.Press)
	p := h.flush(t)
	assert.Len(t, p.Channels.Lit(), len(illum.FunctionLayer))
	for _, c := range illum.FunctionLayer {
		assert.Equal(t, uint8(100), p.Channels[c])
	}

	h.key(t, "updateLeds", capability.Hold)
	h.key(t, "updateLeds", capability.Release)
	assert.Equal(t, illum.FunctionLayerOnly, h.engine.Preset())

	h.key(t, "updateLeds", capability.Press)
	p = h.flush(t)
	assert.Len(t, p.Channels.Lit(), led.ChannelCount)
}

func TestBrightnessWhileHighlightKeepsOverlay(t *testing.T) {
	h := newHarness(t, 100)
	h.key(t, "lightEsc", capability.Press)
	h.key(t, "increaseLuminosity", capability.Hold)
	p := h.flush(t)
	assert.Equal(t, []led.Channel{illum.EscChannel}, p.Channels.Lit())
	assert.Equal(t, uint8(110), p.Channels[illum.EscChannel])

	h.key(t, "lightEsc", capability.Release)
	p = h.flush(t)
	assert.Len(t, p.Channels.Lit(), led.ChannelCount)
	assert.Equal(t, uint8(110), p.Channels[0])
}

func TestHighlightCyclesRestorePreset(t *testing.T) {
	h := newHarness(t, 80)
	h.key(t, "updateLeds", capability.Press)
	want := h.flush(t).Channels

	for i := 0; i < 3; i++ {
		h.key(t, "lightEsc", capability.Press)
		p := h.flush(t)
		assert.Equal(t, []led.Channel{illum.EscChannel}, p.Channels.Lit())
		h.key(t, "lightEsc", capability.Release)
		assert.Equal(t, want, h.flush(t).Channels)
	}
}

func TestTurnAllLedsOff(t *testing.T) {
	for _, toggled := range []bool{false, true} {
		h := newHarness(t, 200)
		if toggled {
			h.key(t, "updateLeds", capability.Press)
		}
		h.key(t, "turnAllLedsOff", capability.Press)
		p := h.flush(t)
		assert.Empty(t, p.Channels.Lit())
		assert.Equal(t, brightness.Off, h.lum.Value())
	}
}

func TestBlockHold(t *testing.T) {
	h := newHarness(t, 100)
	h.key(t, "blockKey", capability.Press, 0x29)
	require.Len(t, h.sent, 1)

	h.key(t, "blockHold", capability.Press, 0x29)
	assert.Equal(t, uint8(0x29), h.set.Blocked())
	assert.Contains(t, h.logs.String(), "blocking key")
	assert.Contains(t, h.console.String(), "Blocking Key: 0x29\n")

	// a second code cannot take over while one is held
	h.key(t, "blockHold", capability.Hold, 0x2A)
	assert.Equal(t, uint8(0x29), h.set.Blocked())

	h.key(t, "blockKey", capability.Press, 0x29)
	assert.Len(t, h.sent, 1, "blocked code is swallowed")
	h.key(t, "blockKey", capability.Press, 0x04)
	assert.Len(t, h.sent, 2)

	h.key(t, "blockHold", capability.Release, 0x2A)
	assert.Equal(t, uint8(0x29), h.set.Blocked(), "only the blocked code unblocks")
	h.key(t, "blockHold", capability.Release, 0x29)
	assert.Zero(t, h.set.Blocked())
	assert.Contains(t, h.logs.String(), "unblocking key")
	assert.Contains(t, h.console.String(), "Unblocking Key: 0x29\n")

	h.key(t, "blockKey", capability.Release, 0x29)
	require.Len(t, h.sent, 3)
	assert.Equal(t, capability.Release, h.sent[2].State)
	assert.Equal(t, []byte{0x29}, h.sent[2].Args)
}

func TestBlockHoldIgnoresOtherStateTypes(t *testing.T) {
	h := newHarness(t, 100)
	require.NoError(t, h.d.Dispatch("blockHold", capability.KeyEvent{State: capability.Press, Type: capability.Layer, Args: []byte{0x29}}))
	assert.Zero(t, h.set.Blocked())
}

func TestAction1Logs(t *testing.T) {
	h := newHarness(t, 100)
	h.key(t, "action1", capability.Press)
	assert.Contains(t, h.logs.String(), "Action1")
	assert.Equal(t, "Action1\n", h.console.String())
}
