// Package matrix provides a simulated key matrix for bench runs: key
// transitions are injected from the console or the control socket and turned
// into capability events on the next scan.
package matrix

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/keyglow/internal/capability"
)

var ErrUnknownKey = errors.New("matrix: key not in keymap")

// Binding ties a key to a capability and its argument bytes.
type Binding struct {
	Capability string
	Args       []byte
}

// Keymap maps key names to bindings.
type Keymap map[string]Binding

// Keys returns the key names, sorted.
func (k Keymap) Keys() []string {
	out := make([]string, 0, len(k))
	for n := range k {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Sink receives the events produced by a scan.
type Sink interface {
	Dispatch(name string, ev capability.Event) error
}

type transition struct {
	key  string
	down bool
}

// Sim is a matrix whose switches are driven by Down and Up.
type Sim struct {
	log  zerolog.Logger
	sink Sink

	mu      sync.Mutex
	keymap  Keymap
	pending []transition

	// held keeps the binding each key was pressed under, so Hold and
	// Release reach the same capability as the Press across a reload.
	held   map[string]Binding
	order  []string
	budget uint
}

func NewSim(keymap Keymap, sink Sink, log zerolog.Logger) *Sim {
	return &Sim{
		log:    log.With().Str("component", "matrix").Logger(),
		sink:   sink,
		keymap: keymap,
		held:   map[string]Binding{},
	}
}

func (s *Sim) Setup() error {
	s.log.Debug().Int("keys", len(s.keymap)).Msg("sim matrix ready")
	return nil
}

// SetKeymap swaps the keymap. Keys held under the old map stay bound to
// their old capability until released.
func (s *Sim) SetKeymap(k Keymap) {
	s.mu.Lock()
	s.keymap = k
	s.mu.Unlock()
}

func (s *Sim) Keymap() Keymap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keymap
}

// Down queues a key press for the next scan.
func (s *Sim) Down(key string) error { return s.queue(key, true) }

// Up queues a key release for the next scan. A held key can be released
// even when the current keymap no longer names it.
func (s *Sim) Up(key string) error { return s.queue(key, false) }

func (s *Sim) queue(key string, down bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keymap[key]; !ok && (down || !s.heldOrPending(key)) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	s.pending = append(s.pending, transition{key: key, down: down})
	return nil
}

func (s *Sim) heldOrPending(key string) bool {
	if _, ok := s.held[key]; ok {
		return true
	}
	for _, tr := range s.pending {
		if tr.key == key && tr.down {
			return true
		}
	}
	return false
}

type emission struct {
	key   string
	b     Binding
	state capability.State
}

// Scan emits Hold for every key held since an earlier scan, then Press and
// Release for the transitions queued since the last scan.
func (s *Sim) Scan(tick uint16) {
	s.mu.Lock()
	var out []emission
	for _, k := range s.order {
		out = append(out, emission{k, s.held[k], capability.Hold})
	}
	for _, tr := range s.pending {
		b, held := s.held[tr.key]
		switch {
		case tr.down && !held:
			nb, ok := s.keymap[tr.key]
			if !ok {
				continue
			}
			s.held[tr.key] = nb
			s.order = append(s.order, tr.key)
			out = append(out, emission{tr.key, nb, capability.Press})
		case !tr.down && held:
			delete(s.held, tr.key)
			s.order = remove(s.order, tr.key)
			out = append(out, emission{tr.key, b, capability.Release})
		}
	}
	s.pending = nil
	s.mu.Unlock()

	for _, e := range out {
		s.emit(e)
	}
}

func (s *Sim) emit(e emission) {
	ev := capability.KeyEvent{State: e.state, Type: capability.Normal, Args: e.b.Args}
	if err := s.sink.Dispatch(e.b.Capability, ev); err != nil {
		s.log.Warn().Err(err).Str("key", e.key).Str("capability", e.b.Capability).Msg("dispatch failed")
	}
}

// Held returns the keys currently held, in press order.
func (s *Sim) Held() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func (s *Sim) CurrentChange(mA uint) {
	s.budget = mA
	s.log.Debug().Uint("mA", mA).Msg("current change")
}

func remove(list []string, v string) []string {
	for i, x := range list {
		if x == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
