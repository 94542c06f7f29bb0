package matrix

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/keyglow/internal/capability"
)

type event struct {
	name string
	ev   capability.KeyEvent
}

type sinkFunc func(string, capability.Event) error

func (f sinkFunc) Dispatch(name string, ev capability.Event) error { return f(name, ev) }

func newSim(t *testing.T) (*Sim, *[]event) {
	t.Helper()
	var got []event
	sink := sinkFunc(func(name string, ev capability.Event) error {
		got = append(got, event{name, ev.(capability.KeyEvent)})
		return nil
	})
	km := Keymap{
		"esc":  {Capability: "lightEsc"},
		"fn":   {Capability: "updateLeds"},
		"caps": {Capability: "blockKey", Args: []byte{0x39}},
	}
	return NewSim(km, sink, zerolog.Nop()), &got
}

func states(evs []event) []capability.State {
	var out []capability.State
	for _, e := range evs {
		out = append(out, e.ev.State)
	}
	return out
}

func TestPressHoldRelease(t *testing.T) {
	s, got := newSim(t)
	require.NoError(t, s.Down("esc"))
	s.Scan(0)
	s.Scan(1)
	s.Scan(2)
	require.NoError(t, s.Up("esc"))
	s.Scan(3)
	s.Scan(4)

	assert.Equal(t, []capability.State{
		capability.Press, capability.Hold, capability.Hold, capability.Hold, capability.Release,
	}, states(*got))
	for _, e := range *got {
		assert.Equal(t, "lightEsc", e.name)
		assert.Equal(t, capability.Normal, e.ev.Type)
	}
}

func TestArgsFromKeymap(t *testing.T) {
	s, got := newSim(t)
	require.NoError(t, s.Down("caps"))
	s.Scan(0)
	require.Len(t, *got, 1)
	assert.Equal(t, "blockKey", (*got)[0].name)
	assert.Equal(t, []byte{0x39}, (*got)[0].ev.Args)
}

func TestUnknownKey(t *testing.T) {
	s, _ := newSim(t)
	assert.ErrorIs(t, s.Down("nope"), ErrUnknownKey)
}

func TestRepeatedDownIsOnePress(t *testing.T) {
	s, got := newSim(t)
	require.NoError(t, s.Down("fn"))
	require.NoError(t, s.Down("fn"))
	s.Scan(0)
	assert.Equal(t, []capability.State{capability.Press}, states(*got))
	assert.Equal(t, []string{"fn"}, s.Held())

	require.NoError(t, s.Up("esc"))
	s.Scan(1)
	assert.Equal(t, []capability.State{capability.Press, capability.Hold}, states(*got), "release of an idle key is ignored")
}

func TestTapWithinOneScan(t *testing.T) {
	s, got := newSim(t)
	require.NoError(t, s.Down("fn"))
	require.NoError(t, s.Up("fn"))
	s.Scan(0)
	assert.Equal(t, []capability.State{capability.Press, capability.Release}, states(*got))
	assert.Empty(t, s.Held())
}

func TestSetKeymapKeepsHeldKeys(t *testing.T) {
	s, got := newSim(t)
	require.NoError(t, s.Down("esc"))
	s.Scan(0)
	s.SetKeymap(Keymap{"esc": {Capability: "action1"}})
	s.Scan(1)
	require.Len(t, *got, 2)
	assert.Equal(t, "lightEsc", (*got)[1].name, "a held key keeps the binding it was pressed under")
	assert.Equal(t, []string{"esc"}, s.Keymap().Keys())

	require.NoError(t, s.Up("esc"))
	s.Scan(2)
	require.NoError(t, s.Down("esc"))
	s.Scan(3)
	require.Len(t, *got, 5)
	assert.Equal(t, "lightEsc", (*got)[3].name)
	assert.Equal(t, capability.Release, (*got)[3].ev.State)
	assert.Equal(t, "action1", (*got)[4].name)
	assert.Equal(t, capability.Press, (*got)[4].ev.State)
}

func TestReleaseKeyDroppedByReload(t *testing.T) {
	s, got := newSim(t)
	require.NoError(t, s.Down("esc"))
	s.Scan(0)
	s.SetKeymap(Keymap{"fn": {Capability: "updateLeds"}})

	require.NoError(t, s.Up("esc"))
	s.Scan(1)
	assert.Empty(t, s.Held())
	require.Len(t, *got, 3)
	assert.Equal(t, []capability.State{capability.Press, capability.Hold, capability.Release}, states(*got))
	assert.Equal(t, "lightEsc", (*got)[2].name)

	assert.ErrorIs(t, s.Up("esc"), ErrUnknownKey, "an idle key outside the keymap is still unknown")

	s.SetKeymap(Keymap{"esc": {Capability: "action1"}})
	s.Scan(2)
	assert.Len(t, *got, 3, "no hold without a press after the key returns")
}
