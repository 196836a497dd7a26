package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt_middleware "github.com/benmeehan/live-location/internal/middlewares/mqtt"
	"github.com/benmeehan/live-location/internal/models"
	"github.com/benmeehan/live-location/internal/registry"
	"github.com/benmeehan/live-location/pkg/identity"
	"github.com/benmeehan/live-location/pkg/location"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// LocationService samples the user's position and publishes it as a
// LocationEvent on <topic>/<userId>.
type LocationService struct {
	// Configuration fields
	topic    string
	interval time.Duration
	qos      int

	// Dependencies
	userInfo         identity.UserInfoInterface
	mqttClient       mqtt_middleware.MQTTClient
	logger           zerolog.Logger
	locationProvider location.Provider
	now              func() time.Time

	// Internal state management
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocationService creates a new LocationService instance with the provided configuration.
func NewLocationService(topic string, interval time.Duration, qos int, userInfo identity.UserInfoInterface,
	mqttClient mqtt_middleware.MQTTClient, logger zerolog.Logger, locationProvider location.Provider) *LocationService {
	return &LocationService{
		topic:            topic,
		interval:         interval,
		qos:              qos,
		userInfo:         userInfo,
		mqttClient:       mqttClient,
		logger:           logger,
		locationProvider: locationProvider,
		now:              time.Now,
	}
}

// Start begins publishing: once immediately, then every interval.
func (l *LocationService) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		l.logger.Warn().Msg("LocationService is already running")
		return registry.ErrServiceRunning
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.running = true

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			if err := l.publishCurrentLocation(l.ctx); err != nil && l.ctx.Err() == nil {
				l.logger.Error().Err(err).Msg("Failed to publish current location")
			}

			select {
			case <-ticker.C:
			case <-l.ctx.Done():
				l.logger.Info().Msg("LocationService is stopping")
				return
			}
		}
	}()

	l.logger.Info().
		Str("topic", l.Topic()).
		Dur("interval", l.interval).
		Int("qos", l.qos).
		Msg("LocationService started")
	return nil
}

// Stop halts publishing and closes the location provider.
func (l *LocationService) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		l.logger.Warn().Msg("LocationService is not running")
		return registry.ErrServiceNotRunning
	}

	l.cancel()
	l.wg.Wait()
	l.running = false

	if err := l.locationProvider.Close(); err != nil {
		l.logger.Error().Err(err).Msg("Failed to close location provider")
		return err
	}

	l.logger.Info().Msg("LocationService stopped")
	return nil
}

// Topic is the topic this user's reports are published on.
func (l *LocationService) Topic() string {
	return l.topic + "/" + l.userInfo.GetUserID()
}

// publishCurrentLocation fetches the current location and publishes it.
func (l *LocationService) publishCurrentLocation(ctx context.Context) error {
	loc, err := l.locationProvider.GetLocation(ctx)
	if err != nil {
		return fmt.Errorf("failed to get location from provider: %w", err)
	}

	id := l.userInfo.GetIdentity()
	ts := l.now().UTC()
	evt := models.LocationEvent{
		UserID:     id.UserID,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		UserPhone:  id.UserPhone,
		AdminPhone: id.AdminPhone,
		Accuracy:   loc.Accuracy,
		Timestamp:  &ts,
	}
	if err := evt.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to serialize location: %w", err)
	}

	topic := l.Topic()
	if err := l.mqttClient.Publish(topic, byte(l.qos), false, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	l.logger.Debug().
		Str("topic", topic).
		Float64("lat", evt.Latitude).
		Float64("lng", evt.Longitude).
		Msg("Location published successfully")
	return nil
}
