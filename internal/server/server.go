// Package server exposes map generation over a websocket JSON protocol.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tilegen/internal/config"
	"github.com/lawnchairsociety/tilegen/internal/logger"
	"github.com/lawnchairsociety/tilegen/internal/ruleset"
	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// MapStore persists served maps and the conflicts hit while generating them.
// *database.Database satisfies it.
type MapStore interface {
	SaveMap(m *wfc.GeneratedMap) (int64, bool, error)
	RecordConflict(report wfc.ConflictReport) (int64, error)
}

// Server serves /ws and /healthz. Every request runs on its own grid;
// a session handles its requests one at a time.
type Server struct {
	cfg      config.ServerConfig
	gen      config.GenerationConfig
	registry *ruleset.Registry
	store    MapStore

	connLimiter *ConnLimiter
	failures    *FailureLimiter
	httpServer  *http.Server

	// ctx is cancelled on shutdown and bounds every running generation
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	sessions     map[*websocket.Conn]struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once

	StartTime time.Time
}

// NewServer creates a server for the given configuration and rulesets.
func NewServer(cfg *config.Config, registry *ruleset.Registry) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:         cfg.Server,
		gen:         cfg.Generation,
		registry:    registry,
		connLimiter: NewConnLimiter(cfg.Server.Connections),
		failures:    NewFailureLimiter(cfg.Server.RateLimit),
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[*websocket.Conn]struct{}),
		StartTime:   time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetStore enables persistence of conflicts, and of maps when
// server.save_maps is set.
func (s *Server) SetStore(store MapStore) {
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
}

func (s *Server) mapStore() MapStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Handler returns the HTTP routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	logger.Info("Generation service listening", "address", listener.Addr().String())

	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, cancels running generations and
// closes open sessions, then waits for them to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.httpServer.Shutdown(ctx)
		s.cancel()
		s.failures.Stop()

		// Hijacked connections are not closed by http.Server
		s.mu.Lock()
		for conn := range s.sessions {
			conn.Close()
		}
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}

		logger.Info("Generation service shut down")
	})
	return err
}

type healthStatus struct {
	Status   string   `json:"status"`
	Uptime   int64    `json:"uptime_seconds"`
	Sessions int      `json:"sessions"`
	Rulesets []string `json:"rulesets"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessions, _ := s.connLimiter.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthStatus{
		Status:   "ok",
		Uptime:   int64(time.Since(s.StartTime).Seconds()),
		Sessions: sessions,
		Rulesets: s.registry.Names(),
	})
}

// handleWebSocketUpgrade upgrades an HTTP connection to a websocket session.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	clientIP := getRealIP(r)

	if locked, remaining := s.failures.IsLocked(clientIP); locked {
		logger.Warning("WebSocket connection rejected - client locked out",
			"client_ip", clientIP,
			"remaining", remaining.Round(time.Second).String())
		http.Error(w, "Too many failed requests. Please try again later.", http.StatusTooManyRequests)
		return
	}

	if !s.connLimiter.TryAcquire(clientIP) {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		s.connLimiter.Release(clientIP)
		return
	}

	if !s.track(conn) {
		conn.Close()
		s.connLimiter.Release(clientIP)
		return
	}

	go func() {
		defer func() {
			conn.Close()
			s.connLimiter.Release(clientIP)
			s.untrack(conn)
		}()
		s.runSession(conn, clientIP)
	}()
}

// track registers a session, or reports false once shutdown has begun.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.sessions[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.sessions, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// getRealIP returns the client IP, preferring the first X-Forwarded-For
// entry, then X-Real-IP, then the connection's remote address.
func getRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return extractIP(r.RemoteAddr)
}
