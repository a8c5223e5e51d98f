package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenaproto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var (
	errBinaryFrame = errors.New("binary frames are not supported")
	errMissingType = errors.New("missing type")
)

// Handler receives decoded traffic for one connection. HandleEvent is called
// sequentially per connection; HandleDisconnect exactly once after the last event.
type Handler interface {
	HandleEvent(connID string, env arenaproto.Envelope)
	HandleMalformed(connID string, err error)
	HandleDisconnect(connID string)
}

// Options tune per-connection behaviour.
type Options struct {
	SendBuffer     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

func (o *Options) defaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
}

// StatsFunc reports the JSON body for GET /stats.
type StatsFunc func() any

// Server owns the HTTP router and the connection hub.
type Server struct {
	r       *chi.Mux
	hub     *Hub
	handler Handler
	opts    Options
	stats   StatsFunc

	baseCtx context.Context
}

func NewServer(ctx context.Context, hub *Hub, handler Handler, stats StatsFunc, opts Options) *Server {
	opts.defaults()
	s := &Server{r: chi.NewRouter(), hub: hub, handler: handler, opts: opts, stats: stats, baseCtx: ctx}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)

	s.r.Get("/ws", s.serveWS)
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			if s.stats == nil {
				writeJSON(w, http.StatusOK, map[string]int{"connections": s.hub.Len()})
				return
			}
			writeJSON(w, http.StatusOK, s.stats())
		})
	})
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})
	return s
}

// Router exposes the router (useful for tests and http.Server).
func (s *Server) Router() chi.Router { return s.r }

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.opts.AllowedOrigins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Info("conn_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := newConn(uuid.NewString(), ws, s.opts.SendBuffer)
	s.hub.add(c)
	obslog.L().Info("conn_open", zap.String("conn_id", c.id), zap.String("remote", r.RemoteAddr))

	// The connection outlives the request only until the server's base context ends.
	ctx, cancel := context.WithCancel(s.baseCtx)
	loops := make(chan struct{}, 2)
	go func() { c.writeLoop(ctx, s.opts.WriteTimeout); loops <- struct{}{} }()
	go func() { c.pingLoop(ctx, s.opts.PingInterval); loops <- struct{}{} }()

	go func() {
		select {
		case <-c.done:
		case <-ctx.Done():
		}
		_ = ws.Close(websocket.StatusGoingAway, "closing")
	}()

	err = c.readLoop(ctx,
		func(env arenaproto.Envelope) { s.handler.HandleEvent(c.id, env) },
		func(err error) { s.handler.HandleMalformed(c.id, err) },
	)

	s.hub.remove(c.id)
	c.shutdown()
	cancel()
	<-loops
	<-loops
	s.handler.HandleDisconnect(c.id)
	obslog.L().Info("conn_close",
		zap.String("conn_id", c.id),
		zap.String("status", websocket.CloseStatus(err).String()),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
