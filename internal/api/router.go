// Package api exposes the hub over HTTP: the WebSocket channel, location
// ingestion and lookup, the tracking page, health and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/benmeehan/live-location/internal/hub"
	"github.com/benmeehan/live-location/internal/utils"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	// RateLimit bounds POST /api/v1/locations per client IP per minute. Zero disables it.
	RateLimit int
	Page      PageSettings
}

// Server holds the handlers' dependencies.
type Server struct {
	hub      *hub.Hub
	origins  map[string]struct{}
	upgrader websocket.Upgrader
	page     *trackPage
	logger   zerolog.Logger
}

// NewServer creates a Server for h.
func NewServer(h *hub.Hub, opts Options, logger zerolog.Logger) (*Server, error) {
	page, err := newTrackPage(opts.Page)
	if err != nil {
		return nil, err
	}

	s := &Server{
		hub:     h,
		origins: utils.OriginSet(opts.AllowedOrigins),
		page:    page,
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      s.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return s, nil
}

// Router builds the chi router.
func (s *Server) Router(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWebSocket)
	r.Get("/track", s.handleTrack)

	r.Route("/api/v1/locations", func(r chi.Router) {
		r.Use(recordDuration)
		r.With(rateLimit(opts.RateLimit)).Post("/", s.handleIngest)
		r.Get("/{userId}", s.handleGetLocation)
	})

	return r
}

// NewRouter is NewServer followed by Router.
func NewRouter(h *hub.Hub, opts Options, logger zerolog.Logger) (http.Handler, error) {
	s, err := NewServer(h, opts, logger)
	if err != nil {
		return nil, err
	}
	return s.Router(opts), nil
}

func rateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(perMinute, time.Minute)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Non-browser clients such as the CLI viewer send no Origin.
	if origin == "" {
		return true
	}
	if utils.OriginAllowed(s.origins, origin) {
		return true
	}
	s.logger.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
