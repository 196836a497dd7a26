package viewer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/benmeehan/live-location/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toWS(url string) string {
	return "ws" + strings.TrimPrefix(url, "http")
}

func locationFrame(t *testing.T, evt models.LocationEvent) []byte {
	t.Helper()
	env, err := models.NewEnvelope(constants.EventAnalyticsLocation, evt)
	require.NoError(t, err)
	frame, err := models.EncodeFrame(env)
	require.NoError(t, err)
	return frame
}

// TestSession_JoinsAndAppliesFrames runs against a hub stand-in that checks
// the join frame, then sends a mix of frames.
func TestSession_JoinsAndAppliesFrames(t *testing.T) {
	joined := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, _ := models.DecodeFrame(data)
		joined <- env.Event

		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"somethingElse"}`))
		_ = conn.WriteMessage(websocket.TextMessage, locationFrame(t, models.LocationEvent{UserID: "u-2", Latitude: 5, Longitude: 5}))
		_ = conn.WriteMessage(websocket.TextMessage, locationFrame(t, models.LocationEvent{UserID: "u-1", Latitude: 12.5, Longitude: 77.5, UserPhone: "+1"}))

		// Hold the connection until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	v := newViewer("u-1")
	s := NewSession(v, SessionOptions{URL: toWS(srv.URL), Retries: 1, Delay: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case event := <-joined:
		assert.Equal(t, constants.EventJoinAnalytics, event)
	case <-time.After(2 * time.Second):
		t.Fatal("session never joined")
	}

	require.Eventually(t, func() bool {
		m, ok := v.Marker()
		return ok && m.Position == Coordinate{Lat: 12.5, Lng: 77.5}
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateReceiving, v.State())
	assert.Equal(t, "tel:+1", v.Calls().User)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on cancel")
	}
	assert.Equal(t, StateDisconnected, v.State())
}

func TestSession_GivesUpAfterRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v := newViewer("u-1")
	s := NewSession(v, SessionOptions{URL: toWS(srv.URL), Retries: 3, Delay: time.Millisecond}, zerolog.Nop())

	err := s.Run(context.Background())

	assert.Error(t, err)
	// One initial dial plus the fixed number of reconnection attempts.
	assert.Equal(t, int32(4), attempts.Load())
	assert.Equal(t, StateDisconnected, v.State())
}

func TestSession_ReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := conns.Add(1)
		_, _, _ = conn.ReadMessage()
		if n == 1 {
			// First connection drops right after the join.
			_ = conn.Close()
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, locationFrame(t, models.LocationEvent{UserID: "u-1", Latitude: 1, Longitude: 2}))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	v := newViewer("u-1")
	s := NewSession(v, SessionOptions{URL: toWS(srv.URL), Retries: 2, Delay: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := v.Marker()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestSession_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSession(newViewer("u-1"), SessionOptions{URL: "ws://127.0.0.1:1/ws", Retries: 5}, zerolog.Nop())
	assert.NoError(t, s.Run(ctx))
}

// silentHub upgrades and then never writes; with pings set it pings every
// interval until the client goes away.
func silentHub(t *testing.T, pingEvery time.Duration, conns *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)

		readErr := make(chan error, 1)
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					readErr <- err
					return
				}
			}
		}()

		var tick <-chan time.Time
		if pingEvery > 0 {
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-tick:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			case <-readErr:
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSession_SilentHubTimesOut(t *testing.T) {
	var conns atomic.Int32
	srv := silentHub(t, 0, &conns)

	v := newViewer("u-1")
	s := NewSession(v, SessionOptions{URL: toWS(srv.URL), Retries: 0, ReadTimeout: 100 * time.Millisecond}, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session stayed connected to a silent hub")
	}
	assert.Equal(t, int32(1), conns.Load())
	assert.Equal(t, StateDisconnected, v.State())
}

func TestSession_PingsKeepConnectionAlive(t *testing.T) {
	var conns atomic.Int32
	srv := silentHub(t, 20*time.Millisecond, &conns)

	v := newViewer("u-1")
	s := NewSession(v, SessionOptions{URL: toWS(srv.URL), Retries: 0, ReadTimeout: 100 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return v.State() == StateConnected }, time.Second, 5*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, StateConnected, v.State())
	assert.Equal(t, int32(1), conns.Load())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on cancel")
	}
}
