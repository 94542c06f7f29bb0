// Package cli is the bench debug console. It reads command lines from stdin
// or a serial port and runs them against the keyboard core inside the scan
// loop.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/shlex"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/coreman2200/keyglow/internal/actions"
	"github.com/coreman2200/keyglow/internal/brightness"
	"github.com/coreman2200/keyglow/internal/capability"
	"github.com/coreman2200/keyglow/internal/illum"
	"github.com/coreman2200/keyglow/internal/layout"
	"github.com/coreman2200/keyglow/internal/led"
	"github.com/coreman2200/keyglow/internal/ledtest"
	"github.com/coreman2200/keyglow/internal/matrix"
	"github.com/coreman2200/keyglow/internal/scan"
)

var (
	ErrUnknownCommand = errors.New("cli: unknown command")
	ErrUsage          = errors.New("cli: usage")
	ErrBusy           = errors.New("cli: a test pattern is already running")
)

const prompt = ": "

// Env is everything the console can reach.
type Env struct {
	Loop       *scan.Loop
	Dispatcher *capability.Dispatcher
	Matrix     *matrix.Sim
	LEDs       *led.Subsystem
	Engine     *illum.Engine
	Lum        *brightness.Controller
	Actions    *actions.Set
	Layout     layout.Layout
	Clock      clockwork.Clock

	// TestInterval is the frame period of ledTest patterns.
	TestInterval time.Duration
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string, out io.Writer) error
}

type Shell struct {
	env  Env
	log  zerolog.Logger
	cmds map[string]command

	testing atomic.Bool
}

func New(env Env, log zerolog.Logger) *Shell {
	if env.Clock == nil {
		env.Clock = clockwork.NewRealClock()
	}
	if env.TestInterval <= 0 {
		env.TestInterval = 50 * time.Millisecond
	}
	s := &Shell{env: env, log: log.With().Str("component", "cli").Logger()}
	s.cmds = map[string]command{
		"help":      {"help", "list commands", s.help},
		"capList":   {"capList", "print every capability and its arguments", s.capList},
		"capSelect": {"capSelect <name> <state> <type> [args...]", "invoke a capability with a raw event", s.capSelect},
		"keys":      {"keys", "print the keymap", s.keys},
		"press":     {"press <key>", "press a key on the simulated matrix", s.press},
		"release":   {"release <key>", "release a key on the simulated matrix", s.release},
		"ledStatus": {"ledStatus", "print brightness, preset and the frame buffer", s.ledStatus},
		"ledSet":    {"ledSet <row> <col> <value>", "set one channel and send the page", s.ledSet},
		"current":   {"current <mA>", "report a new current budget", s.current},
		"flush":     {"flush [sent]", "signal that output was sent to the host", s.flush},
		"ledTest":   {"ledTest <pattern>", "walk a test pattern, then restore the preset", s.ledTest},
	}
	return s
}

// Exec splits line shell-style and runs it.
func (s *Shell) Exec(ctx context.Context, line string, out io.Writer) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil
	}
	return s.Run(ctx, args, out)
}

// Run executes an already split command line.
func (s *Shell) Run(ctx context.Context, args []string, out io.Writer) error {
	c, ok := s.cmds[args[0]]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	if err := c.run(ctx, args[1:], out); err != nil {
		if errors.Is(err, ErrUsage) {
			return fmt.Errorf("%w: %s", ErrUsage, c.usage)
		}
		return err
	}
	return nil
}

// Serve reads lines from r until EOF or ctx is done. Command errors are
// printed and do not stop the console.
func (s *Shell) Serve(ctx context.Context, r io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(r)
	fmt.Fprint(out, prompt)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.Exec(ctx, sc.Text(), out); err != nil {
			fmt.Fprintln(out, err)
			s.log.Debug().Err(err).Str("line", sc.Text()).Msg("command failed")
		}
		fmt.Fprint(out, prompt)
	}
	return sc.Err()
}

func (s *Shell) help(_ context.Context, _ []string, out io.Writer) error {
	names := make([]string, 0, len(s.cmds))
	for n := range s.cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(out, "%-28s %s\n", s.cmds[n].usage, s.cmds[n].help)
	}
	return nil
}

func (s *Shell) capList(ctx context.Context, _ []string, _ io.Writer) error {
	var err error
	if derr := s.env.Loop.Do(ctx, func() { err = s.env.Dispatcher.ListCapabilities() }); derr != nil {
		return derr
	}
	return err
}

func (s *Shell) capSelect(ctx context.Context, args []string, _ io.Writer) error {
	if len(args) < 3 {
		return ErrUsage
	}
	raw, err := parseBytes(args[1:])
	if err != nil {
		return err
	}
	var derr error
	if err := s.env.Loop.Do(ctx, func() {
		derr = s.env.Dispatcher.Raw(args[0], raw[0], raw[1], raw[2:])
	}); err != nil {
		return err
	}
	return derr
}

func (s *Shell) keys(_ context.Context, _ []string, out io.Writer) error {
	km := s.env.Matrix.Keymap()
	for _, k := range km.Keys() {
		b := km[k]
		fmt.Fprintf(out, "%-8s %s %x\n", k, b.Capability, b.Args)
	}
	return nil
}

func (s *Shell) press(_ context.Context, args []string, _ io.Writer) error {
	if len(args) != 1 {
		return ErrUsage
	}
	return s.env.Matrix.Down(args[0])
}

func (s *Shell) release(_ context.Context, args []string, _ io.Writer) error {
	if len(args) != 1 {
		return ErrUsage
	}
	return s.env.Matrix.Up(args[0])
}

func (s *Shell) ledStatus(ctx context.Context, _ []string, out io.Writer) error {
	st, err := s.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "luminosity %d preset %s highlight %t\n", st.Luminosity, st.Preset, st.Highlight)
	fmt.Fprintf(out, "budget %dmA enabled %t pages %d blocked %#04x\n", st.BudgetMA, st.Enabled, st.PagesSent, st.Blocked)
	l := s.env.Layout
	for row := 0; row < l.Dim.Rows; row++ {
		var sb strings.Builder
		for col := 0; col < l.Dim.Cols; col++ {
			ch, _ := l.Channel(row, col)
			fmt.Fprintf(&sb, " %02x", st.Channels[ch])
		}
		fmt.Fprintln(out, sb.String()[1:])
	}
	return nil
}

func (s *Shell) ledSet(ctx context.Context, args []string, _ io.Writer) error {
	if len(args) != 3 {
		return ErrUsage
	}
	row, err1 := strconv.Atoi(args[0])
	col, err2 := strconv.Atoi(args[1])
	if err := errors.Join(err1, err2); err != nil {
		return err
	}
	v, err := parseBytes(args[2:])
	if err != nil {
		return err
	}
	ch, ok := s.env.Layout.Channel(row, col)
	if !ok {
		return fmt.Errorf("%w: row %d col %d", led.ErrChannelRange, row, col)
	}
	var serr error
	if err := s.env.Loop.Do(ctx, func() {
		if serr = s.env.LEDs.Buffer().Set(ch, v[0]); serr == nil {
			s.env.LEDs.SendPage(led.BrightnessPage)
		}
	}); err != nil {
		return err
	}
	return serr
}

func (s *Shell) current(ctx context.Context, args []string, _ io.Writer) error {
	if len(args) != 1 {
		return ErrUsage
	}
	mA, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return err
	}
	return s.env.Loop.Do(ctx, func() { s.env.Loop.CurrentChange(uint(mA)) })
}

func (s *Shell) flush(ctx context.Context, args []string, _ io.Writer) error {
	var sent uint8
	if len(args) > 0 {
		v, err := parseBytes(args[:1])
		if err != nil {
			return err
		}
		sent = v[0]
	}
	return s.env.Loop.Do(ctx, func() { s.env.Loop.FinishedWithOutput(sent) })
}

// ledTest starts a pattern in the background. Each frame is drawn inside the
// scan loop; when the pattern ends the active preset is rendered again.
func (s *Shell) ledTest(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return ErrUsage
	}
	kind, err := ledtest.Parse(args[0])
	if err != nil {
		return err
	}
	if !s.testing.CompareAndSwap(false, true) {
		return ErrBusy
	}
	var level uint8
	if err := s.env.Loop.Do(ctx, func() { level = s.env.Lum.Value() }); err != nil {
		s.testing.Store(false)
		return err
	}
	if level == 0 {
		level = 0xFF
	}
	fmt.Fprintf(out, "running %s\n", kind)
	go s.runTest(ledtest.NewRunner(kind, level))
	return nil
}

func (s *Shell) runTest(r *ledtest.Runner) {
	defer s.testing.Store(false)
	ctx := context.Background()
	ticker := s.env.Clock.NewTicker(s.env.TestInterval)
	defer ticker.Stop()
	for {
		var more bool
		if err := s.env.Loop.Do(ctx, func() {
			more = r.Step(s.env.Layout, s.env.LEDs.Buffer())
			if more {
				s.env.LEDs.SendPage(led.BrightnessPage)
			} else {
				s.env.Engine.Render()
			}
		}); err != nil || !more {
			s.log.Info().Str("pattern", string(r.Kind())).Msg("test pattern done")
			return
		}
		<-ticker.Chan()
	}
}

// parseBytes accepts decimal or 0x-prefixed hex bytes.
func parseBytes(args []string) ([]byte, error) {
	out := make([]byte, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("byte %q: %w", a, err)
		}
		out = append(out, byte(v))
	}
	return out, nil
}
