// Package scan drives the per-tick keyboard work: matrix scan, queued work
// from other goroutines, then LED servicing.
package scan

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/coreman2200/keyglow/internal/metrics"
)

const DefaultPeriod = time.Millisecond

// Matrix is the external key matrix scanner.
type Matrix interface {
	Setup() error
	Scan(tick uint16)
	CurrentChange(mA uint)
}

// LED is the LED subsystem serviced once per tick.
type LED interface {
	Setup() error
	Service()
	CurrentChange(mA uint)
}

// Loop owns the scan counter. Everything it calls runs on the goroutine that
// calls Step (or Run); other goroutines hand work in with Submit or Do.
type Loop struct {
	log    zerolog.Logger
	clock  clockwork.Clock
	matrix Matrix
	led    LED

	counter uint16
	work    chan func()
}

func New(m Matrix, l LED, clock clockwork.Clock, log zerolog.Logger) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{
		log:    log.With().Str("component", "scan").Logger(),
		clock:  clock,
		matrix: m,
		led:    l,
		work:   make(chan func(), 64),
	}
}

// Setup initialises the matrix and the LED subsystem, in that order.
func (l *Loop) Setup() error {
	if err := l.matrix.Setup(); err != nil {
		return err
	}
	return l.led.Setup()
}

// Step runs one tick. Capabilities triggered by the scan apply their effect
// before the LED subsystem transmits.
func (l *Loop) Step() {
	l.matrix.Scan(l.counter)
	l.counter++
	l.drain()
	l.led.Service()
	metrics.ScanTicks.Inc()
}

func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.work:
			fn()
		default:
			return
		}
	}
}

// Counter returns the current scan counter.
func (l *Loop) Counter() uint16 { return l.counter }

// FinishedWithOutput resets the scan counter once the integrator has flushed
// a report to the host.
func (l *Loop) FinishedWithOutput(sent uint8) {
	l.log.Trace().Uint8("sent", sent).Uint16("counter", l.counter).Msg("output flushed")
	l.counter = 0
}

// FinishedWithMacro is called after macro processing. Nothing to do.
func (l *Loop) FinishedWithMacro(sent uint8) {}

// CurrentChange forwards the available current to the matrix and the LEDs.
func (l *Loop) CurrentChange(mA uint) {
	l.log.Info().Uint("mA", mA).Msg("current change")
	l.matrix.CurrentChange(mA)
	l.led.CurrentChange(mA)
}

// Submit queues fn to run inside the next tick. It blocks while the queue
// is full.
func (l *Loop) Submit(fn func()) { l.work <- fn }

const (
	doQueued int32 = iota
	doRunning
	doAbandoned
)

// Do runs fn inside the tick context and waits for it to finish. When ctx
// ends first, Do returns ctx.Err() and fn is guaranteed never to run; once
// fn has started, Do waits for it regardless of ctx.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	var state atomic.Int32
	done := make(chan struct{})
	job := func() {
		if state.CompareAndSwap(doQueued, doRunning) {
			fn()
			close(done)
		}
	}
	select {
	case l.work <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if state.CompareAndSwap(doQueued, doAbandoned) {
			return ctx.Err()
		}
		<-done
		return nil
	}
}

// Run ticks every period until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = DefaultPeriod
	}
	ticker := l.clock.NewTicker(period)
	defer ticker.Stop()
	l.log.Info().Dur("period", period).Msg("scan loop running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			l.Step()
		}
	}
}
