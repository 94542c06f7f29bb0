// Package board wires the keyboard core together: LED subsystem, brightness,
// presets, capabilities, the simulated matrix and the scan loop.
package board

import (
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/coreman2200/keyglow/internal/actions"
	"github.com/coreman2200/keyglow/internal/brightness"
	"github.com/coreman2200/keyglow/internal/capability"
	"github.com/coreman2200/keyglow/internal/config"
	"github.com/coreman2200/keyglow/internal/illum"
	"github.com/coreman2200/keyglow/internal/layout"
	"github.com/coreman2200/keyglow/internal/led"
	"github.com/coreman2200/keyglow/internal/matrix"
	"github.com/coreman2200/keyglow/internal/scan"
	"github.com/coreman2200/keyglow/internal/systick"
)

type Board struct {
	Config     *config.Config
	Clock      clockwork.Clock
	Tick       *systick.Counter
	LEDs       *led.Subsystem
	Lum        *brightness.Controller
	Engine     *illum.Engine
	Registry   *capability.Registry
	Dispatcher *capability.Dispatcher
	Actions    *actions.Set
	Matrix     *matrix.Sim
	Loop       *scan.Loop
	Layout     layout.Layout
}

// Options carries the collaborators that differ between the binary and
// tests.
type Options struct {
	Driver  led.Driver
	Console io.Writer
	Output  actions.Output
	Clock   clockwork.Clock
	Log     zerolog.Logger
}

func New(cfg *config.Config, o Options) (*Board, error) {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	b := &Board{Config: cfg, Clock: o.Clock, Tick: systick.New(o.Clock)}

	b.LEDs = led.NewSubsystem(o.Driver, led.Limit{
		MinCurrentMA:  cfg.Power.MinCurrentMA,
		ChanMicroAmps: cfg.Power.ChanMicroAmps,
	}, o.Log)
	b.LEDs.ChipAddr = cfg.I2C.ChipAddr
	b.LEDs.Register = cfg.I2C.Register

	b.Lum = brightness.New(cfg.Luminosity, cfg.Step, cfg.DebounceMs)
	b.Engine = illum.NewEngine(b.LEDs, b.Lum)
	b.Registry = capability.NewRegistry()
	b.Dispatcher = capability.NewDispatcher(b.Registry, o.Console, o.Log)

	set, err := actions.Register(b.Registry, actions.Deps{
		Engine:  b.Engine,
		Lum:     b.Lum,
		Clock:   b.Tick,
		Output:  o.Output,
		Console: o.Console,
		Log:     o.Log,
	})
	if err != nil {
		return nil, err
	}
	b.Actions = set

	b.Matrix = matrix.NewSim(cfg.MatrixKeymap(), b.Dispatcher, o.Log)
	b.Loop = scan.New(b.Matrix, b.LEDs, o.Clock, o.Log)
	b.Layout = layout.Default
	b.Layout.Order.ColFlipEveryRow = cfg.ColFlipEveryRow
	return b, nil
}

// Setup brings up the matrix and the LED driver, applies the configured
// current budget and draws the initial preset.
func (b *Board) Setup() error {
	if err := b.Loop.Setup(); err != nil {
		return err
	}
	if b.Config.Power.BudgetMA > 0 {
		b.Loop.CurrentChange(b.Config.Power.BudgetMA)
	}
	b.Engine.Render()
	return nil
}

// Period is the configured scan period.
func (b *Board) Period() time.Duration {
	return time.Duration(b.Config.ScanPeriodMs) * time.Millisecond
}

// Reload applies the keymap of cfg. Other settings take effect on restart.
func (b *Board) Reload(cfg *config.Config) {
	b.Matrix.SetKeymap(cfg.MatrixKeymap())
}
