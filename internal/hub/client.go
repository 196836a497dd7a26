package hub

import (
	"sync/atomic"
	"time"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/benmeehan/live-location/internal/models"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var clientIDCounter atomic.Uint64

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(h *Hub, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  h,
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

// ID returns the client's connection-ordered identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// enqueue queues a frame without blocking. Only the hub goroutine calls it,
// so the channel cannot be closed concurrently.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}

// readPump handles inbound frames: joinAnalytics and ping.
func (c *Client) readPump() {
	log := c.hub.logger.With().Uint64("client_id", c.id).Logger()
	defer func() {
		c.hub.requestUnregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected websocket close")
			}
			return
		}

		env, err := models.DecodeFrame(data)
		if err != nil {
			log.Debug().Err(err).Msg("Ignoring malformed frame")
			continue
		}

		switch env.Event {
		case constants.EventJoinAnalytics:
			c.hub.requestJoin(c)
		case constants.EventPing:
			if pong, err := models.EncodeFrame(models.Envelope{Event: constants.EventPong}); err == nil {
				c.hub.requestPong(c, pong)
			}
		default:
			log.Debug().Str("event", env.Event).Msg("Ignoring unsupported event")
		}
	}
}

// writePump drains the send channel to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
