// Package server exposes the booth over HTTP: a JSON status page,
// prometheus metrics and a websocket feed of saved captures.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dialup-inc/photobooth/metrics"
)

var (
	ErrRunning    = errors.New("server is already running")
	ErrNotRunning = errors.New("server is not running")
)

// viewerBacklog is how many captures may queue for a slow viewer before
// newer ones are dropped for it.
const viewerBacklog = 4

// StatusFunc returns the value served as JSON on /.
type StatusFunc func() interface{}

type viewer struct {
	ws   *websocket.Conn
	send chan []byte
}

func (v *viewer) close(code int, reason string) error {
	deadline := time.Now().Add(100 * time.Millisecond)
	msg := websocket.FormatCloseMessage(code, reason)

	v.ws.WriteControl(websocket.CloseMessage, msg, deadline)

	return v.ws.Close()
}

type Server struct {
	addr    string
	status  StatusFunc
	metrics *metrics.Metrics
	log     zerolog.Logger

	upgrader websocket.Upgrader

	runMu    sync.Mutex
	srv      *http.Server
	listener net.Listener

	viewersMu sync.Mutex
	viewers   map[*viewer]struct{}
}

func New(addr string, status StatusFunc, m *metrics.Metrics, log zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		status:  status,
		metrics: m,
		log:     log.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		viewers: make(map[*viewer]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		s.HandleStatus(w, r)
	case "/metrics":
		s.metrics.Handler().ServeHTTP(w, r)
	case "/ws":
		s.HandleWS(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var status interface{} = map[string]string{"app": "photobooth"}
	if s.status != nil {
		status = s.status()
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		s.log.Error().Err(err).Msg("encode status")
	}
}

// HandleWS registers a viewer that receives every broadcast capture as a
// binary message. Anything the viewer sends is ignored.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket.Upgrader error")
		return
	}

	v := &viewer{ws: ws, send: make(chan []byte, viewerBacklog)}
	s.viewersMu.Lock()
	s.viewers[v] = struct{}{}
	s.viewersMu.Unlock()
	s.log.Info().Str("remote", r.RemoteAddr).Msg("viewer connected")

	go s.writeLoop(v)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	s.dropViewer(v)
	s.log.Info().Str("remote", r.RemoteAddr).Msg("viewer left")
}

func (s *Server) writeLoop(v *viewer) {
	for frame := range v.send {
		v.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := v.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			s.log.Warn().Err(err).Msg("viewer write failed")
			v.ws.Close()
			s.dropViewer(v)
			return
		}
	}
}

func (s *Server) dropViewer(v *viewer) {
	s.viewersMu.Lock()
	_, ok := s.viewers[v]
	delete(s.viewers, v)
	s.viewersMu.Unlock()

	if ok {
		close(v.send)
		v.ws.Close()
	}
}

// Viewers is the number of connected websocket viewers.
func (s *Server) Viewers() int {
	s.viewersMu.Lock()
	defer s.viewersMu.Unlock()
	return len(s.viewers)
}

// Broadcast queues frame for every viewer. A viewer whose backlog is full
// misses it.
func (s *Server) Broadcast(frame []byte) {
	s.viewersMu.Lock()
	defer s.viewersMu.Unlock()

	for v := range s.viewers {
		select {
		case v.send <- frame:
		default:
			s.log.Debug().Msg("viewer backlog full, dropping capture")
		}
	}
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.srv != nil {
		return ErrRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv, s.listener = srv, ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("server listening")
	return nil
}

// Addr is the bound address while running, which differs from the
// configured one when that used port 0.
func (s *Server) Addr() string {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop disconnects viewers and shuts the listener down.
func (s *Server) Stop() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.srv == nil {
		return ErrNotRunning
	}

	s.viewersMu.Lock()
	viewers := make([]*viewer, 0, len(s.viewers))
	for v := range s.viewers {
		viewers = append(viewers, v)
	}
	s.viewersMu.Unlock()
	for _, v := range viewers {
		v.close(websocket.CloseGoingAway, "shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	s.srv, s.listener = nil, nil
	if err != nil {
		return err
	}
	s.log.Info().Msg("server stopped")
	return nil
}
