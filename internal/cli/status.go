package cli

import (
	"context"

	"github.com/coreman2200/keyglow/internal/led"
)

// Status is a snapshot of the keyboard core taken inside the scan loop.
type Status struct {
	Luminosity uint8      `json:"luminosity"`
	Preset     string     `json:"preset"`
	Highlight  bool       `json:"highlight"`
	BudgetMA   uint       `json:"budget_ma"`
	Enabled    bool       `json:"enabled"`
	PagesSent  uint64     `json:"pages_sent"`
	Counter    uint16     `json:"scan_counter"`
	Blocked    uint8      `json:"blocked"`
	Channels   led.Buffer `json:"-"`
}

func (s *Shell) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.env.Loop.Do(ctx, func() {
		_, sent := s.env.LEDs.Last()
		st = Status{
			Luminosity: s.env.Lum.Value(),
			Preset:     s.env.Engine.Preset().String(),
			Highlight:  s.env.Engine.Highlighted(),
			BudgetMA:   s.env.LEDs.Budget(),
			Enabled:    s.env.LEDs.Enabled(),
			PagesSent:  sent,
			Counter:    s.env.Loop.Counter(),
			Channels:   *s.env.LEDs.Buffer(),
		}
		if s.env.Actions != nil {
			st.Blocked = s.env.Actions.Blocked()
		}
	})
	return st, err
}
