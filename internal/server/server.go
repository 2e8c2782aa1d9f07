// Package server exposes the resolution engine over HTTP for build tools
// that are not written in Go.
//
// Routes:
//
//	POST /resolve  one request, one JSON answer
//	GET  /healthz  liveness and portal coordinates
//	GET  /ws       websocket stream; answers carry the caller's id and may
//	               arrive out of order
//
// With a context hook configured, hosts that enumerate wildcard contexts
// themselves drive it per context id:
//
//	POST   /contexts                    arm a freshly resolved context
//	POST   /contexts/{id}/alternatives  expand its enumeration once
//	DELETE /contexts/{id}               drop an unconsumed context
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/plonepack/internal/contexthook"
	"github.com/conneroisu/plonepack/internal/logging"
	"github.com/conneroisu/plonepack/internal/resolver"
	"github.com/conneroisu/plonepack/internal/resource"
)

// Resolver is the engine capability the server needs.
type Resolver interface {
	Resolve(ctx context.Context, req resource.Request) (*resource.Location, error)
	ResolveAsync(ctx context.Context, req resource.Request, cb resolver.Callback)
}

// Config configures the listener and the websocket stream.
type Config struct {
	Host string
	Port int
	// PortalURL is reported by /healthz.
	PortalURL string
	// AllowedOrigins are host patterns accepted for websocket upgrades in
	// addition to same-origin requests.
	AllowedOrigins []string
	// MaxInFlight bounds concurrent resolutions per websocket connection.
	MaxInFlight     int
	ShutdownTimeout time.Duration
	// Hook backs the /contexts routes; nil leaves them out.
	Hook *contexthook.Hook
}

// Server owns the HTTP listener.
type Server struct {
	cfg      Config
	resolver Resolver
	logger   logging.Logger
	mux      *http.ServeMux
	started  time.Time

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	isShutdown bool
}

// New creates a server. Routes are registered immediately so Handler can
// be used without Start.
func New(cfg Config, r Resolver, logger logging.Logger) *Server {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 64
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}

	s := &Server{
		cfg:      cfg,
		resolver: r,
		logger:   logger.WithComponent("server"),
		mux:      http.NewServeMux(),
		started:  time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /resolve", s.handleResolve)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.cfg.Hook != nil {
		s.mux.HandleFunc("POST /contexts", s.handleContextOpen)
		s.mux.HandleFunc("POST /contexts/{id}/alternatives", s.handleAlternatives)
		s.mux.HandleFunc("DELETE /contexts/{id}", s.handleContextClose)
	}
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(s.mux, recoverer(s.logger), requestLogger(s.logger))
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return errors.New("server has been shut down")
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info(ctx, "Resolution server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown stops the server. It is idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isShutdown {
		return nil
	}
	s.isShutdown = true
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
