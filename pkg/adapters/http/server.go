package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/storageguest/internal/logging"
	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/aretw0/storageguest/pkg/host"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	maxMessage   = 1 << 20
)

// Server exposes a storage Host to websocket frames.
type Server struct {
	Host  *host.Host
	Conns *ConnManager

	logger  *slog.Logger
	metrics http.Handler
	version string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer creates a Server for h.
func NewServer(h *host.Host, opts ...Option) *Server {
	s := &Server{
		Host:    h,
		Conns:   NewConnManager(),
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates a new HTTP handler serving h.
func NewHandler(h *host.Host, opts ...Option) http.Handler {
	return NewServer(h, opts...).Routes()
}

// Routes builds the router: /frame (websocket), /healthz, /info and /metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/frame", s.ServeFrame)
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

// ServeFrame upgrades the request and answers guest requests until the peer
// disconnects. The Origin header identifies the guest to the host.
func (s *Server) ServeFrame(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.Host.Allowed(r.Header.Get("Origin"))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Frame upgrade failed", "origin", origin, "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(maxMessage)

	id := uuid.NewString()
	logger := s.logger.With("conn_id", id, "origin", origin)
	s.Conns.Add(id, conn)
	logger.Info("Frame connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		s.Conns.Remove(id)
		conn.Close()
		logger.Info("Frame disconnected")
	}()

	var writeMu sync.Mutex
	reply := func(resp domain.Response) {
		data, err := json.Marshal(resp)
		if err != nil {
			logger.Error("Reply encode failed", "err", err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug("Reply write failed", "err", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req domain.Request
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warn("Dropped malformed request", "err", err, "size", len(data))
			continue
		}
		go s.Host.Respond(ctx, origin, req, reply)
	}
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "connections": s.Conns.Len()}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"app":     "storageguest-host",
		"version": s.version,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ConnManager tracks open frame connections.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

func NewConnManager() *ConnManager {
	return &ConnManager{
		conns: make(map[string]*websocket.Conn),
	}
}

func (cm *ConnManager) Add(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conns[id] = conn
}

func (cm *ConnManager) Remove(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.conns, id)
}

func (cm *ConnManager) Len() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// CloseAll sends a going-away close frame to every connection.
// Used on shutdown, since http.Server.Shutdown does not track hijacked conns.
func (cm *ConnManager) CloseAll() {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	for id, conn := range cm.conns {
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			slog.Debug("ConnManager: close frame failed", "conn_id", id, "err", err)
		}
		conn.Close()
	}
}
