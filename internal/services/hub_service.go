package services

import (
	"context"
	"errors"
	"sync"

	"github.com/benmeehan/live-location/internal/hub"
	"github.com/benmeehan/live-location/internal/registry"
	"github.com/rs/zerolog"
)

// HubService runs the hub loop as a registry service.
type HubService struct {
	hub    *hub.Hub
	logger zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan error
	running bool
}

// NewHubService creates a new HubService.
func NewHubService(h *hub.Hub, logger zerolog.Logger) *HubService {
	return &HubService{hub: h, logger: logger}
}

// Start runs the hub in the background.
func (s *HubService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return registry.ErrServiceRunning
	}

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan error, 1)
	go func() { s.done <- s.hub.Run(ctx) }()

	s.running = true
	s.logger.Info().Msg("HubService started")
	return nil
}

// Stop cancels the hub loop and waits for it to close every client.
func (s *HubService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return registry.ErrServiceNotRunning
	}

	s.cancel()
	err := <-s.done
	s.running = false
	s.logger.Info().Msg("HubService stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
