package capability

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/keyglow/internal/metrics"
)

var (
	ErrUnknownCapability = errors.New("capability: unknown")
	ErrShortArgs         = errors.New("capability: argument slice shorter than declared")
	ErrDuplicate         = errors.New("capability: already registered")
)

// Capability is a named action invoked by the keymap. Args documents the
// argument bytes the capability reads; its length is the required width.
type Capability interface {
	Name() string
	Args() []string
	Act(KeyEvent)
}

// Func adapts a plain function to Capability.
type Func struct {
	ID       string
	ArgNames []string
	Fn       func(KeyEvent)
}

func (f Func) Name() string    { return f.ID }
func (f Func) Args() []string  { return f.ArgNames }
func (f Func) Act(ev KeyEvent) { f.Fn(ev) }

// Registry holds capabilities by name.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{caps: map[string]Capability{}}
}

func (r *Registry) Register(c Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.caps[c.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, c.Name())
	}
	r.caps[c.Name()] = c
	return nil
}

func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for n := range r.caps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe formats the introspection line of c, e.g. "blockKey(usbCode)".
func Describe(c Capability) string {
	return c.Name() + "(" + strings.Join(c.Args(), ", ") + ")"
}

// Dispatcher routes events to registered capabilities. Queries are answered
// on the debug console.
type Dispatcher struct {
	reg     *Registry
	console io.Writer
	log     zerolog.Logger
}

func NewDispatcher(reg *Registry, console io.Writer, log zerolog.Logger) *Dispatcher {
	if console == nil {
		console = io.Discard
	}
	return &Dispatcher{reg: reg, console: console, log: log.With().Str("component", "dispatch").Logger()}
}

func (d *Dispatcher) Registry() *Registry { return d.reg }

// Dispatch delivers ev to the capability called name.
func (d *Dispatcher) Dispatch(name string, ev Event) error {
	c, ok := d.reg.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	switch ev := ev.(type) {
	case Query:
		_, err := fmt.Fprintln(d.console, Describe(c))
		return err
	case KeyEvent:
		if want := len(c.Args()); len(ev.Args) < want {
			return fmt.Errorf("%w: %s wants %d, got %d", ErrShortArgs, name, want, len(ev.Args))
		}
		ev.Args = ev.Args[:len(c.Args()):len(c.Args())]
		metrics.Invocations.WithLabelValues(name).Inc()
		d.log.Trace().Str("capability", name).Stringer("event", ev).Msg("act")
		c.Act(ev)
		return nil
	}
	return fmt.Errorf("capability: unsupported event %T", ev)
}

// Raw dispatches the raw keymap triple.
func (d *Dispatcher) Raw(name string, state, stateType byte, args []byte) error {
	return d.Dispatch(name, Decode(state, stateType, args))
}

// ListCapabilities queries every registered capability in name order.
func (d *Dispatcher) ListCapabilities() error {
	for _, n := range d.reg.List() {
		if err := d.Dispatch(n, Query{}); err != nil {
			return err
		}
	}
	return nil
}
