package diagnostics

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Time     time.Time      `json:"time"`
	Severity Severity       `json:"severity"`
	Code     string         `json:"code"`
	Summary  string         `json:"summary"`
	Detail   string         `json:"detail,omitempty"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Hub fans diagnostics out to subscribers. Slow subscribers miss records
// rather than stalling the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Diagnostic]struct{}
	now  func() time.Time
}

func NewHub() *Hub {
	return &Hub{subs: map[chan Diagnostic]struct{}{}, now: time.Now}
}

func (h *Hub) Publish(d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = h.now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		select {
		case c <- d:
		default:
		}
	}
}

// Subscribe returns a channel of diagnostics and a cancel func that closes
// it.
func (h *Hub) Subscribe(buf int) (<-chan Diagnostic, func()) {
	c := make(chan Diagnostic, buf)
	h.mu.Lock()
	h.subs[c] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return c, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, c)
			h.mu.Unlock()
			close(c)
		})
	}
}

// Writer turns every line written to it into an Info diagnostic with the
// given code. It backs the debug console.
func (h *Hub) Writer(code string) io.Writer {
	return &lineWriter{hub: h, code: code}
}

type lineWriter struct {
	mu   sync.Mutex
	hub  *Hub
	code string
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.hub.Publish(Diagnostic{Severity: Info, Code: w.code, Summary: line[:len(line)-1]})
	}
}

// Hook publishes warning and error log records.
func (h *Hub) Hook() zerolog.Hook {
	return zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
		var sev Severity
		switch {
		case level >= zerolog.ErrorLevel && level < zerolog.NoLevel:
			sev = Err
		case level == zerolog.WarnLevel:
			sev = Warn
		default:
			return
		}
		h.Publish(Diagnostic{Severity: sev, Code: "LOG." + level.String(), Summary: msg})
	})
}
