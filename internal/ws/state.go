package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/keyglow/internal/cli"
	diag "github.com/coreman2200/keyglow/internal/diagnostics"
	"github.com/coreman2200/keyglow/internal/layout"
	"github.com/coreman2200/keyglow/internal/led"
)

const writeWait = 200 * time.Millisecond

// Console runs debug commands against the keyboard core.
type Console interface {
	Run(ctx context.Context, args []string, out io.Writer) error
	// Exec splits line the way the local console does and runs it.
	Exec(ctx context.Context, line string, out io.Writer) error
	Status(ctx context.Context) (cli.Status, error)
}

type State struct {
	mu            sync.RWMutex
	Layout        layout.Layout
	Console       Console
	Diag          *diag.Hub
	CurrentDriver string

	frameID   uint64
	startTime time.Time
	clients   map[*websocket.Conn]bool
	frames    chan led.Page
}

func NewState(l layout.Layout, console Console, hub *diag.Hub, driver string) *State {
	return &State{
		Layout:        l,
		Console:       console,
		Diag:          hub,
		CurrentDriver: driver,
		startTime:     time.Now(),
		clients:       map[*websocket.Conn]bool{},
		frames:        make(chan led.Page, 16),
	}
}

// PublishPage queues a transmitted page for the frame sockets. It never
// blocks; pages are dropped when the broadcaster falls behind.
func (s *State) PublishPage(p led.Page) {
	select {
	case s.frames <- p:
	default:
	}
}

// RunBroadcast forwards published pages to frame clients until ctx is done.
func (s *State) RunBroadcast(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-s.frames:
			s.broadcastFrame(p)
		}
	}
}

// Handler returns the bench HTTP routes.
func (s *State) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return withCORS(mux)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	// Topology goes out before the first frame and under the same lock as
	// registration, so a client never sees a frame first.
	s.mu.Lock()
	_ = conn.WriteMessage(websocket.TextMessage, s.topology())
	s.clients[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	c, cancel := s.Diag.Subscribe(64)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		return
	}
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go func() {
		defer func() {
			cancel()
			conn.Close()
		}()
		for {
			select {
			case <-closed:
				return
			case d := <-c:
				b, _ := json.Marshal(d)
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}()
}

// Control is one /control request.
type Control struct {
	Op         string `json:"op"` // press | release | capSelect | current | flush | runTest | exec
	Key        string `json:"key,omitempty"`
	Capability string `json:"capability,omitempty"`
	State      uint8  `json:"state,omitempty"`
	Type       uint8  `json:"type,omitempty"`
	Args       []int  `json:"args,omitempty"`
	MA         uint   `json:"mA,omitempty"`
	Test       string `json:"test,omitempty"`
	Line       string `json:"line,omitempty"`
}

type Reply struct {
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (c Control) command() ([]string, error) {
	switch c.Op {
	case "press", "release":
		return []string{c.Op, c.Key}, nil
	case "capSelect":
		args := []string{"capSelect", c.Capability, strconv.Itoa(int(c.State)), strconv.Itoa(int(c.Type))}
		for _, a := range c.Args {
			args = append(args, strconv.Itoa(a))
		}
		return args, nil
	case "current":
		return []string{"current", strconv.FormatUint(uint64(c.MA), 10)}, nil
	case "flush":
		return []string{"flush"}, nil
	case "runTest":
		return []string{"ledTest", c.Test}, nil
	}
	return nil, fmt.Errorf("unknown op %q", c.Op)
}

func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Control
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(conn, Reply{Error: err.Error()})
			continue
		}
		s.reply(conn, s.applyControl(r.Context(), msg))
	}
}

func (s *State) applyControl(ctx context.Context, msg Control) Reply {
	var run func(io.Writer) error
	if msg.Op == "exec" {
		if strings.TrimSpace(msg.Line) == "" {
			return Reply{Error: "exec: empty line"}
		}
		run = func(out io.Writer) error { return s.Console.Exec(ctx, msg.Line, out) }
	} else {
		args, err := msg.command()
		if err != nil {
			return Reply{Error: err.Error()}
		}
		run = func(out io.Writer) error { return s.Console.Run(ctx, args, out) }
	}
	var out strings.Builder
	if err := run(&out); err != nil {
		s.Diag.Publish(diag.Diagnostic{
			Severity: diag.Warn, Code: "CONTROL.FAILED", Summary: err.Error(),
			Evidence: map[string]any{"op": msg.Op},
		})
		return Reply{Output: out.String(), Error: err.Error()}
	}
	return Reply{OK: true, Output: out.String()}
}

func (s *State) reply(conn *websocket.Conn, r Reply) {
	b, _ := json.Marshal(r)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	st, err := s.Console.Status(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.mu.RLock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"channels": s.Layout.Count(),
		"driver":   s.CurrentDriver,
		"status":   st,
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *State) topology() []byte {
	b, _ := json.Marshal(map[string]any{
		"dim":    map[string]int{"rows": s.Layout.Dim.Rows, "cols": s.Layout.Dim.Cols},
		"order":  map[string]bool{"colFlipEveryRow": s.Layout.Order.ColFlipEveryRow},
		"driver": s.CurrentDriver,
	})
	return b
}

type frame struct {
	T        int64      `json:"t"`
	FrameID  uint64     `json:"frame_id"`
	Page     uint8      `json:"page"`
	Channels led.Buffer `json:"channels"`
}

func (s *State) broadcastFrame(p led.Page) {
	s.mu.Lock()
	s.frameID++
	f := frame{T: time.Now().UnixNano(), FrameID: s.frameID, Page: p.Page, Channels: p.Channels}
	s.mu.Unlock()

	b, _ := json.Marshal(f)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
