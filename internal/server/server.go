// Package server exposes a driver over HTTP: a JSON health endpoint and a
// websocket taking pixel commands.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coreman2200/funtimes-blinkt/blinkt"
	"github.com/coreman2200/funtimes-blinkt/internal/effect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Command is one control message.
type Command struct {
	Op         string   `json:"op"` // set | fill | brightness | clear | show | effect | get
	Index      int      `json:"index,omitempty"`
	R          int      `json:"r,omitempty"`
	G          int      `json:"g,omitempty"`
	B          int      `json:"b,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	Effect     string   `json:"effect,omitempty"`
	// Show sends the buffer after a set, fill, brightness or clear.
	Show bool `json:"show,omitempty"`
}

type Pixel struct {
	R          int     `json:"r"`
	G          int     `json:"g"`
	B          int     `json:"b"`
	Brightness float64 `json:"brightness"`
}

type Reply struct {
	OK     bool    `json:"ok"`
	Error  string  `json:"error,omitempty"`
	State  string  `json:"state"`
	Frames uint64  `json:"frames"`
	Effect string  `json:"effect,omitempty"`
	Pixels []Pixel `json:"pixels"`
}

var errNoLoop = errors.New("no effect loop running")

type Server struct {
	drv  *blinkt.Driver
	mu   sync.Locker
	loop *effect.Loop
	log  zerolog.Logger

	startTime time.Time
	upgrader  websocket.Upgrader

	connMu   sync.Mutex
	conns    map[*websocket.Conn]struct{}
	closed   bool
	handlers sync.WaitGroup
}

// New serves d. mu must be the lock shared with loop, which may be nil.
func New(d *blinkt.Driver, mu sync.Locker, loop *effect.Loop, log zerolog.Logger) *Server {
	return &Server{
		drv:       d,
		mu:        mu,
		loop:      loop,
		log:       log,
		startTime: time.Now(),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		conns:     make(map[*websocket.Conn]struct{}),
	}
}

// Close disconnects every control client and waits for their handlers to
// return. Clients connecting afterwards are turned away. The caller must not
// hold the shared lock.
func (s *Server) Close() error {
	s.connMu.Lock()
	s.closed = true
	var err error
	for conn := range s.conns {
		err = errors.Join(err, conn.Close())
	}
	s.connMu.Unlock()

	s.handlers.Wait()
	return err
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.handlers.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
	s.handlers.Done()
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.HandleHealth)
	r.Get("/control", s.HandleControlWS)
	return r
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rep := s.reply(nil)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Reply
		UptimeS float64 `json:"uptime_s"`
	}{rep, time.Since(s.startTime).Seconds()})
}

func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	if !s.track(conn) {
		return
	}
	defer s.untrack(conn)

	log := s.log.With().Str("addr", conn.RemoteAddr().String()).Logger()
	log.Debug().Msg("control client connected")
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			// An empty message surfaces as io.ErrUnexpectedEOF.
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
				_ = conn.WriteJSON(Reply{Error: err.Error()})
				continue
			}
			log.Debug().Err(err).Msg("control client gone")
			return
		}
		rep := s.Apply(cmd)
		if !rep.OK {
			log.Debug().Str("op", cmd.Op).Str("error", rep.Error).Msg("command rejected")
		}
		if err := conn.WriteJSON(rep); err != nil {
			return
		}
	}
}

// Apply runs cmd against the driver and reports the resulting state.
func (s *Server) Apply(cmd Command) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply(s.apply(cmd))
}

func (s *Server) apply(cmd Command) error {
	var err error
	switch cmd.Op {
	case "set":
		if cmd.Brightness != nil {
			err = s.drv.SetPixelRGBB(cmd.Index, cmd.R, cmd.G, cmd.B, *cmd.Brightness)
		} else {
			err = s.drv.SetPixel(cmd.Index, cmd.R, cmd.G, cmd.B)
		}
	case "fill":
		if cmd.Brightness != nil {
			err = s.drv.SetPixelsRGBB(cmd.R, cmd.G, cmd.B, *cmd.Brightness)
		} else {
			err = s.drv.SetPixels(cmd.R, cmd.G, cmd.B)
		}
	case "brightness":
		if cmd.Brightness == nil {
			return errors.New("brightness: missing value")
		}
		err = s.drv.SetBrightness(*cmd.Brightness)
	case "clear":
		s.drv.Clear()
	case "show":
		return s.drv.Show()
	case "effect":
		if s.loop == nil {
			return errNoLoop
		}
		e, err := effect.Lookup(cmd.Effect)
		if err != nil {
			return err
		}
		s.loop.SetEffect(e)
		return nil
	case "get":
		return nil
	default:
		return fmt.Errorf("unknown op %q", cmd.Op)
	}
	if err != nil || !cmd.Show {
		return err
	}
	return s.drv.Show()
}

func (s *Server) reply(err error) Reply {
	rep := Reply{
		OK:     err == nil,
		State:  s.drv.State().String(),
		Frames: s.drv.Frames(),
	}
	if err != nil {
		rep.Error = err.Error()
	}
	if s.loop != nil {
		rep.Effect = s.loop.Effect().Name()
	}
	for _, p := range s.drv.Pixels() {
		rep.Pixels = append(rep.Pixels, Pixel{p.Red(), p.Green(), p.Blue(), p.BrightnessValue()})
	}
	return rep
}
