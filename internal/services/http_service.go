package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/live-location/internal/registry"
	"github.com/rs/zerolog"
)

// HTTPService serves a handler until stopped.
type HTTPService struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
	running  bool
}

// NewHTTPService creates a new HTTPService listening on addr.
func NewHTTPService(addr string, handler http.Handler, shutdownTimeout time.Duration, logger zerolog.Logger) *HTTPService {
	return &HTTPService{
		addr:            addr,
		handler:         handler,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Start binds the listen address and serves in the background. Bind errors
// are returned directly.
func (s *HTTPService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return registry.ErrServiceRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.logger.Error().Err(err).Str("addr", s.addr).Msg("Failed to listen")
		return err
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}()

	s.running = true
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTPService started")
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *HTTPService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully. Hijacked WebSocket connections are
// not tracked by Shutdown; the hub closes those.
func (s *HTTPService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return registry.ErrServiceNotRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	<-s.done
	s.running = false
	s.listener = nil
	s.logger.Info().Msg("HTTPService stopped")
	return err
}
