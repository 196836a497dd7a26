// Package hub hosts the analytics broadcast channel. WebSocket clients
// connect, announce themselves with joinAnalytics, and from then on receive
// every analyticsLocation frame published to the hub.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/benmeehan/live-location/internal/metrics"
	"github.com/benmeehan/live-location/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrHubBusy is returned when the broadcast queue is full.
	ErrHubBusy = errors.New("hub broadcast queue is full")
	// ErrHubStopped is returned when publishing to a hub that is not running.
	ErrHubStopped = errors.New("hub is not running")
	// ErrStale is returned for a report older than the user's last known position.
	ErrStale = errors.New("location older than last known position")
)

// Options configures a Hub.
type Options struct {
	ClientBuffer    int
	BroadcastBuffer int
	ReplayOnJoin    bool
}

// Hub maintains the set of active clients and broadcasts location frames to
// the ones that joined the analytics channel.
type Hub struct {
	logger zerolog.Logger
	store  *Store
	opts   Options

	// clients maps each connected client to whether it has joined.
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	join       chan *Client
	direct     chan directFrame
	broadcast  chan []byte

	running chan struct{}
	done    chan struct{}
	once    sync.Once
}

// directFrame is a reply addressed to a single client.
type directFrame struct {
	client *Client
	frame  []byte
}

// New creates a Hub. Call Run to start serving.
func New(store *Store, opts Options, logger zerolog.Logger) *Hub {
	if opts.ClientBuffer <= 0 {
		opts.ClientBuffer = 256
	}
	if opts.BroadcastBuffer <= 0 {
		opts.BroadcastBuffer = 1024
	}
	return &Hub{
		logger:     logger,
		store:      store,
		opts:       opts,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan *Client),
		direct:     make(chan directFrame),
		broadcast:  make(chan []byte, opts.BroadcastBuffer),
		running:    make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Store exposes the last known position store.
func (h *Hub) Store() *Store {
	return h.store
}

// Run processes client lifecycle and broadcasts until ctx is done, then
// closes every client. A Hub can be run only once.
func (h *Hub) Run(ctx context.Context) error {
	select {
	case <-h.running:
		return errors.New("hub already started")
	default:
		close(h.running)
	}
	defer h.once.Do(func() { close(h.done) })

	h.logger.Info().Msg("Hub started")
	for {
		select {
		case <-ctx.Done():
			count := h.closeAllClients()
			h.logger.Info().
				Str("reason", shutdownReason(ctx)).
				Int("clients_closed", count).
				Msg("Hub stopped")
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = false
			total := len(h.clients)
			h.mu.Unlock()
			metrics.ConnectedClients.Inc()
			h.logger.Info().Uint64("client_id", c.id).Int("total_clients", total).Msg("Client connected")

		case c := <-h.unregister:
			h.removeClient(c, "disconnected")

		case c := <-h.join:
			h.joinClient(c)

		case d := <-h.direct:
			h.mu.RLock()
			_, ok := h.clients[d.client]
			h.mu.RUnlock()
			if ok && !d.client.enqueue(d.frame) {
				metrics.BroadcastsDropped.WithLabelValues("client").Inc()
			}

		case frame := <-h.broadcast:
			h.deliver(frame)
		}
	}
}

func shutdownReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "context_deadline"
	}
	return "context_canceled"
}

// Attach wraps an upgraded connection in a Client, registers it and starts
// its pumps. It fails if the hub is not running.
func (h *Hub) Attach(conn *websocket.Conn) (*Client, error) {
	c := newClient(h, conn, h.opts.ClientBuffer)
	select {
	case h.register <- c:
	case <-h.done:
		return nil, ErrHubStopped
	}
	c.start()
	return c, nil
}

// Publish validates evt, records it as the user's last known position and
// queues an analyticsLocation frame for every joined client. Reports older
// than the stored one are neither stored nor broadcast and yield ErrStale.
func (h *Hub) Publish(evt models.LocationEvent) error {
	now := time.Now()
	if err := evt.ValidateAt(now); err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	evt = evt.Stamp(now)
	if !h.store.Set(evt) {
		h.logger.Debug().Str("user_id", evt.UserID).Msg("Ignoring out-of-order location")
		return ErrStale
	}
	metrics.TrackedUsers.Set(float64(h.store.Len()))

	frame, err := encodeLocation(evt)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- frame:
		return nil
	default:
		metrics.BroadcastsDropped.WithLabelValues("hub").Inc()
		h.logger.Warn().Str("user_id", evt.UserID).Msg("Broadcast queue full, dropping location")
		return ErrHubBusy
	}
}

func encodeLocation(evt models.LocationEvent) ([]byte, error) {
	env, err := models.NewEnvelope(constants.EventAnalyticsLocation, evt)
	if err != nil {
		return nil, err
	}
	frame, err := models.EncodeFrame(env)
	if err != nil {
		return nil, fmt.Errorf("encode location frame: %w", err)
	}
	return frame, nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// JoinedCount returns the number of clients subscribed to the analytics channel.
func (h *Hub) JoinedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, joined := range h.clients {
		if joined {
			n++
		}
	}
	return n
}

// requestJoin is called from a client's read pump.
func (h *Hub) requestJoin(c *Client) {
	select {
	case h.join <- c:
	case <-h.done:
	}
}

// requestPong is called from a client's read pump to answer a ping.
func (h *Hub) requestPong(c *Client, frame []byte) {
	select {
	case h.direct <- directFrame{client: c, frame: frame}:
	case <-h.done:
	}
}

// requestUnregister is called from a client's read pump on exit.
func (h *Hub) requestUnregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) joinClient(c *Client) {
	h.mu.Lock()
	joined, ok := h.clients[c]
	if ok && !joined {
		h.clients[c] = true
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	if joined {
		h.logger.Debug().Uint64("client_id", c.id).Msg("Client already joined")
		return
	}
	metrics.JoinedClients.Inc()
	h.logger.Info().Uint64("client_id", c.id).Str("channel", constants.AnalyticsChannel).Msg("Client joined")

	if !h.opts.ReplayOnJoin {
		return
	}
	for _, evt := range h.store.Snapshot() {
		frame, err := encodeLocation(evt)
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", evt.UserID).Msg("Failed to encode replay frame")
			continue
		}
		if !c.enqueue(frame) {
			h.logger.Warn().Uint64("client_id", c.id).Msg("Client buffer full during replay")
			break
		}
	}
}

// deliver sends frame to every joined client in connection order. Clients
// whose buffer is full are disconnected.
func (h *Hub) deliver(frame []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c, joined := range h.clients {
		if joined {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	for _, c := range targets {
		if !c.enqueue(frame) {
			metrics.BroadcastsDropped.WithLabelValues("client").Inc()
			h.removeClient(c, "slow consumer")
		}
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	joined, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	metrics.ConnectedClients.Dec()
	if joined {
		metrics.JoinedClients.Dec()
	}
	h.logger.Info().Uint64("client_id", c.id).Str("reason", reason).Int("total_clients", total).Msg("Client removed")
}

func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := len(h.clients)
	for c, joined := range h.clients {
		close(c.send)
		delete(h.clients, c)
		metrics.ConnectedClients.Dec()
		if joined {
			metrics.JoinedClients.Dec()
		}
	}
	return count
}
