package ingest

import (
	"context"
	"sync"
	"sync/atomic"

	mqtt_middleware "github.com/benmeehan/live-location/internal/middlewares/mqtt"
	"github.com/benmeehan/live-location/internal/metrics"
	"github.com/benmeehan/live-location/internal/registry"
	"github.com/benmeehan/live-location/internal/utils"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTIngestService subscribes to reporter topics and publishes each decoded
// location to the hub. Decoding runs on a worker pool, off the MQTT callback.
type MQTTIngestService struct {
	topic   string
	qos     int
	workers int

	client mqtt_middleware.MQTTClient
	hub    Publisher
	logger zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool

	// active is read by the MQTT callback without taking mu, since Stop holds
	// mu while waiting for the unsubscribe acknowledgement.
	active atomic.Pointer[ingestRun]
}

// ingestRun is the state of one Start/Stop cycle.
type ingestRun struct {
	ctx  context.Context
	pool *utils.WorkerPool
}

// NewMQTTIngestService creates a new MQTTIngestService.
func NewMQTTIngestService(topic string, qos, workers int, client mqtt_middleware.MQTTClient,
	hub Publisher, logger zerolog.Logger) *MQTTIngestService {
	return &MQTTIngestService{
		topic:   topic,
		qos:     qos,
		workers: workers,
		client:  client,
		hub:     hub,
		logger:  logger,
	}
}

// Start subscribes to the configured topic.
func (s *MQTTIngestService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn().Msg("MQTTIngestService is already running")
		return registry.ErrServiceRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &ingestRun{ctx: ctx, pool: utils.NewWorkerPool(s.workers, s.workers*16)}
	s.cancel = cancel
	s.active.Store(run)

	if err := s.client.Subscribe(s.topic, byte(s.qos), s.handleMessage); err != nil {
		s.active.Store(nil)
		cancel()
		run.pool.Shutdown()
		s.logger.Error().Err(err).Str("topic", s.topic).Msg("Failed to subscribe to location topic")
		return err
	}

	s.running = true
	s.logger.Info().Str("topic", s.topic).Int("workers", s.workers).Msg("MQTTIngestService started")
	return nil
}

// Stop unsubscribes and drains in-flight decodes.
func (s *MQTTIngestService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.logger.Warn().Msg("MQTTIngestService is not running")
		return registry.ErrServiceNotRunning
	}

	err := s.client.Unsubscribe(s.topic)
	if err != nil {
		s.logger.Error().Err(err).Str("topic", s.topic).Msg("Failed to unsubscribe from location topic")
	}
	run := s.active.Swap(nil)
	s.cancel()
	if run != nil {
		run.pool.Shutdown()
	}

	s.running = false
	s.logger.Info().Msg("MQTTIngestService stopped")
	return err
}

// handleMessage copies the message and queues it for decoding.
func (s *MQTTIngestService) handleMessage(_ mqttLib.Client, msg mqttLib.Message) {
	topic := msg.Topic()
	run := s.active.Load()
	if run == nil {
		metrics.LocationsRejected.WithLabelValues(SourceMQTT, "shutdown").Inc()
		s.logger.Warn().Str("topic", topic).Msg("Dropping location message, ingest is stopped")
		return
	}
	payload := append([]byte(nil), msg.Payload()...)

	if err := run.pool.Submit(run.ctx, func() { s.process(topic, payload) }); err != nil {
		metrics.LocationsRejected.WithLabelValues(SourceMQTT, "shutdown").Inc()
		s.logger.Warn().Err(err).Str("topic", topic).Msg("Dropping location message")
	}
}

func (s *MQTTIngestService) process(topic string, payload []byte) {
	evt, err := Decode(topic, payload)
	if err != nil {
		metrics.LocationsRejected.WithLabelValues(SourceMQTT, "decode").Inc()
		s.logger.Warn().Err(err).Str("topic", topic).Msg("Failed to decode location message")
		return
	}

	if err := Publish(s.hub, evt, SourceMQTT); err != nil {
		s.logger.Warn().Err(err).Str("user_id", evt.UserID).Msg("Location not broadcast")
		return
	}
	s.logger.Debug().Str("user_id", evt.UserID).Msg("Location ingested")
}
