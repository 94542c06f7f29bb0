// Package capability defines the key event model and dispatches events to
// named capabilities.
package capability

import "fmt"

type State uint8

const (
	Off     State = 0x00
	Press   State = 0x01
	Hold    State = 0x02
	Release State = 0x03
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Press:
		return "press"
	case Hold:
		return "hold"
	case Release:
		return "release"
	}
	return fmt.Sprintf("State(%#x)", uint8(s))
}

type StateType uint8

const (
	Normal StateType = 0x00
	LED    StateType = 0x01
	Analog StateType = 0x02
	Layer  StateType = 0x03
)

func (t StateType) String() string {
	switch t {
	case Normal:
		return "normal"
	case LED:
		return "led"
	case Analog:
		return "analog"
	case Layer:
		return "layer"
	}
	return fmt.Sprintf("StateType(%#x)", uint8(t))
}

// querySentinel is the raw (state, stateType) pair the keymap uses to ask a
// capability to describe itself.
const querySentinel = 0xFF

// Event is either a Query or a KeyEvent.
type Event interface{ isEvent() }

// Query asks a capability to print its name and argument layout.
type Query struct{}

// KeyEvent is a key transition routed to a capability.
type KeyEvent struct {
	State State
	Type  StateType
	Args  []byte
}

func (Query) isEvent()    {}
func (KeyEvent) isEvent() {}

func (e KeyEvent) String() string {
	return fmt.Sprintf("%s/%s %x", e.State, e.Type, e.Args)
}

// Decode converts the raw keymap triple into an Event. The sentinel pair is
// recognised before args are looked at.
func Decode(state, stateType byte, args []byte) Event {
	if state == querySentinel && stateType == querySentinel {
		return Query{}
	}
	return KeyEvent{State: State(state), Type: StateType(stateType), Args: args}
}
