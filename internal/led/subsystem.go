package led

import (
	"github.com/rs/zerolog"

	"github.com/coreman2200/keyglow/internal/metrics"
)

// Subsystem owns the frame buffer and the outbound page queue. Capabilities
// mutate the buffer and call SendPage; Service hands queued pages to the
// driver once per scan tick.
type Subsystem struct {
	log   zerolog.Logger
	drv   Driver
	limit Limit

	buf      Buffer
	ChipAddr uint8
	Register uint8

	queue []Page
	last  Page
	sent  uint64

	budget     uint
	budgetSeen bool
	enabled    bool

	// OnSent, when set, observes every page after a successful transmit.
	OnSent func(Page)
}

func NewSubsystem(drv Driver, limit Limit, log zerolog.Logger) *Subsystem {
	return &Subsystem{
		log:      log.With().Str("component", "led").Logger(),
		drv:      drv,
		limit:    limit,
		ChipAddr: DefaultChipAddr,
		Register: DefaultRegister,
		enabled:  true,
	}
}

// Setup initialises the driver chip. Called once at startup.
func (s *Subsystem) Setup() error {
	s.buf.Clear()
	s.queue = s.queue[:0]
	if err := s.drv.Setup(); err != nil {
		return err
	}
	s.log.Debug().Msg("driver ready")
	return nil
}

// Buffer exposes the frame buffer for mutation.
func (s *Subsystem) Buffer() *Buffer { return &s.buf }

// SendPage snapshots the buffer together with its addressing into one
// outbound transaction. A pending page with the same number is superseded;
// it would be overwritten on the chip before anyone could see it.
func (s *Subsystem) SendPage(page uint8) {
	p := Page{ChipAddr: s.ChipAddr, Register: s.Register, Page: page, Channels: s.buf}
	for i := range s.queue {
		if s.queue[i].Page == page {
			s.queue[i] = p
			return
		}
	}
	s.queue = append(s.queue, p)
}

// Pending returns the number of queued pages.
func (s *Subsystem) Pending() int { return len(s.queue) }

// Last returns the last page transmitted and how many pages went out so far.
func (s *Subsystem) Last() (Page, uint64) { return s.last, s.sent }

// Budget returns the last reported current budget in mA (0 = none).
func (s *Subsystem) Budget() uint { return s.budget }

// Enabled reports whether the driver is out of shutdown.
func (s *Subsystem) Enabled() bool { return s.enabled }

// CurrentChange records the host's available current. It takes effect on the
// next Service call.
func (s *Subsystem) CurrentChange(mA uint) {
	s.budget = mA
	s.budgetSeen = true
	metrics.CurrentBudget.Set(float64(mA))
}

// Service drains queued pages to the driver. Errors are logged and counted;
// a failed page is dropped, the next snapshot replaces it anyway.
func (s *Subsystem) Service() {
	// A failed switch is retried every tick until the driver follows the
	// budget; only the first failure after a change is logged as a warning.
	if want := s.limit.Enabled(s.budget); want != s.enabled {
		if err := s.drv.SetEnabled(want); err != nil {
			ev := s.log.Debug()
			if s.budgetSeen {
				ev = s.log.Warn()
			}
			ev.Err(err).Bool("enabled", want).Msg("driver enable failed")
		} else {
			s.enabled = want
			s.log.Info().Uint("mA", s.budget).Bool("enabled", want).Msg("current budget changed")
		}
	}
	s.budgetSeen = false
	if len(s.queue) == 0 {
		return
	}
	for i := range s.queue {
		out := s.queue[i]
		s.limit.Apply(&out.Channels, s.budget)
		if err := s.drv.SendPage(out.Bytes(), out.Page); err != nil {
			metrics.PageErrors.Inc()
			s.log.Warn().Err(err).Uint8("page", out.Page).Msg("send page failed")
			continue
		}
		metrics.PagesSent.Inc()
		s.last = out
		s.sent++
		if s.OnSent != nil {
			s.OnSent(out)
		}
	}
	s.queue = s.queue[:0]
}

// Close puts the driver into shutdown and releases it.
func (s *Subsystem) Close() error {
	return s.drv.Close()
}
