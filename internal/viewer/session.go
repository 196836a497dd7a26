package viewer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/benmeehan/live-location/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SessionOptions configures the hub connection of a viewer.
type SessionOptions struct {
	URL string
	// Retries is the number of reconnection attempts after a failed dial or
	// a lost connection. A successful connection restores the full budget.
	Retries int
	Delay   time.Duration
	// ReadTimeout drops a connection that has been silent for this long.
	// The hub pings more often than the default.
	ReadTimeout time.Duration
	Header      http.Header
	Dialer      *websocket.Dialer
}

const (
	defaultReadTimeout = 60 * time.Second
	controlWriteWait   = time.Second
)

// Session keeps a Viewer subscribed to the analytics channel.
type Session struct {
	viewer *Viewer
	opts   SessionOptions
	logger zerolog.Logger
}

// NewSession creates a Session for v.
func NewSession(v *Viewer, opts SessionOptions, logger zerolog.Logger) *Session {
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	return &Session{viewer: v, opts: opts, logger: logger}
}

// Run connects, joins the analytics channel and applies location frames to
// the viewer until ctx is done or the reconnection budget is spent. It
// returns nil when ctx ends it.
func (s *Session) Run(ctx context.Context) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.Delay), uint64(s.opts.Retries)),
		ctx,
	)

	err := backoff.RetryNotify(func() error {
		return s.connectOnce(ctx, b)
	}, b, func(err error, next time.Duration) {
		s.logger.Warn().Err(err).Dur("retry_in", next).Msg("Viewer connection lost, reconnecting")
	})

	s.viewer.setState(StateDisconnected)
	if ctx.Err() != nil {
		return nil
	}
	s.logger.Error().Err(err).Int("attempts", s.opts.Retries).Msg("Giving up on hub connection")
	return err
}

// connectOnce runs a single connection until it drops. It always returns a
// non-nil error so the retry loop decides what happens next.
func (s *Session) connectOnce(ctx context.Context, b backoff.BackOff) error {
	conn, _, err := s.opts.Dialer.DialContext(ctx, s.opts.URL, s.opts.Header)
	if err != nil {
		s.logger.Error().Err(err).Str("url", s.opts.URL).Msg("Failed to connect to hub")
		return fmt.Errorf("dial %s: %w", s.opts.URL, err)
	}
	defer conn.Close()

	join, err := models.EncodeFrame(models.JoinAnalytics())
	if err != nil {
		return backoff.Permanent(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		s.logger.Error().Err(err).Msg("Failed to join analytics channel")
		return fmt.Errorf("join: %w", err)
	}

	s.viewer.setState(StateConnected)
	b.Reset()
	s.logger.Info().Str("url", s.opts.URL).Str("target", s.viewer.Target()).Msg("Joined analytics channel")

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(controlWriteWait))
		_ = conn.Close()
	})
	defer stop()

	err = s.readLoop(conn)
	s.viewer.setState(StateDisconnected)
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	return err
}

func (s *Session) readLoop(conn *websocket.Conn) error {
	extend := func() error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	}
	conn.SetPingHandler(func(appData string) error {
		if err := extend(); err != nil {
			return err
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	if err := extend(); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("hub closed the connection")
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := extend(); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		env, err := models.DecodeFrame(data)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Ignoring malformed frame")
			continue
		}
		if env.Event != constants.EventAnalyticsLocation {
			continue
		}

		evt, err := env.DecodeLocation()
		if err != nil {
			s.logger.Debug().Err(err).Msg("Ignoring malformed location")
			continue
		}
		if s.viewer.Apply(evt) {
			s.logger.Debug().Str("user_id", evt.UserID).Msg("Marker moved")
		}
	}
}
