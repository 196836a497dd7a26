package viewer

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/url"
	"testing"

	"github.com/benmeehan/live-location/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var india = Coordinate{Lat: 20.5937, Lng: 78.9629}

func newViewer(target string) *Viewer {
	return New(Options{Target: target, Center: india, Zoom: 5}, zerolog.Nop())
}

func TestViewer_InitialState(t *testing.T) {
	v := newViewer("u-1")

	center, zoom := v.Center()
	assert.Equal(t, india, center)
	assert.Equal(t, 5, zoom)
	assert.Equal(t, StateDisconnected, v.State())

	_, ok := v.Marker()
	assert.False(t, ok)
	assert.Equal(t, CallActions{Emergency: "tel:112"}, v.Calls())
}

func TestViewer_IgnoresOtherUsers(t *testing.T) {
	v := newViewer("u-1")
	require.True(t, v.Apply(models.LocationEvent{UserID: "u-1", Latitude: 10, Longitude: 20, UserPhone: "+1"}))
	before, _ := v.Marker()

	assert.False(t, v.Apply(models.LocationEvent{UserID: "u-2", Latitude: 30, Longitude: 40, UserPhone: "+2"}))

	after, _ := v.Marker()
	assert.Equal(t, before, after)
	center, _ := v.Center()
	assert.Equal(t, Coordinate{Lat: 10, Lng: 20}, center)
	assert.Equal(t, "tel:+1", v.Calls().User)
}

func TestViewer_MatchingEventMovesMarkerAndRecenters(t *testing.T) {
	v := newViewer("u-1")
	require.True(t, v.Apply(models.LocationEvent{UserID: "u-1", Latitude: 10, Longitude: 20}))
	require.True(t, v.Apply(models.LocationEvent{UserID: "u-1", Latitude: 12.9716, Longitude: 77.5946}))

	m, ok := v.Marker()
	require.True(t, ok)
	assert.Equal(t, Coordinate{Lat: 12.9716, Lng: 77.5946}, m.Position)
	assert.Equal(t, "u-1 (12.97160, 77.59460)", m.Label)

	center, _ := v.Center()
	assert.Equal(t, m.Position, center)
	assert.Equal(t, StateReceiving, v.State())
}

func TestViewer_CallActions(t *testing.T) {
	v := newViewer("u-1")

	v.Apply(models.LocationEvent{UserID: "u-1", Latitude: 1, Longitude: 1, UserPhone: "+91 98765-43210", AdminPhone: "+91 100"})
	assert.Equal(t, CallActions{User: "tel:+919876543210", Admin: "tel:+91100", Emergency: "tel:112"}, v.Calls())

	// Numbers reflect only the latest matching event.
	v.Apply(models.LocationEvent{UserID: "u-1", Latitude: 2, Longitude: 2, UserPhone: "+44 1"})
	assert.Equal(t, CallActions{User: "tel:+441", Emergency: "tel:112"}, v.Calls())
}

func TestViewer_CustomEmergencyNumber(t *testing.T) {
	v := New(Options{Target: "u", EmergencyNumber: "911"}, zerolog.Nop())
	assert.Equal(t, "tel:911", v.Calls().Emergency)
}

func TestViewer_InvalidCoordinatesNeverMove(t *testing.T) {
	v := newViewer("u-1")
	for _, evt := range []models.LocationEvent{
		{UserID: "u-1", Latitude: 91, Longitude: 0},
		{UserID: "u-1", Latitude: 0, Longitude: 181},
		{UserID: "u-1", Latitude: math.NaN(), Longitude: 0},
	} {
		assert.False(t, v.Apply(evt))
	}
	_, ok := v.Marker()
	assert.False(t, ok)
}

func TestViewer_NoTargetDoesNotPanic(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	var v *Viewer
	assert.NotPanics(t, func() {
		target := TargetFromURL("https://example.com/track", logger)
		v = New(Options{Target: target, Center: india}, logger)
		v.Apply(models.LocationEvent{UserID: "", Latitude: 1, Longitude: 1})
		v.Apply(models.LocationEvent{UserID: "u-1", Latitude: 1, Longitude: 1})
	})

	_, ok := v.Marker()
	assert.False(t, ok)
	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "user_id")
}

func TestViewer_OnMove(t *testing.T) {
	var moves []Marker
	v := New(Options{Target: "u-1", OnMove: func(m Marker, _ CallActions) { moves = append(moves, m) }}, zerolog.Nop())

	v.Apply(models.LocationEvent{UserID: "u-2", Latitude: 1, Longitude: 1})
	v.Apply(models.LocationEvent{UserID: "u-1", Latitude: 1, Longitude: 1})

	require.Len(t, moves, 1)
	assert.Equal(t, "u-1", moves[0].Event.UserID)
}

type failingLabeler struct{}

func (failingLabeler) Label(context.Context, models.LocationEvent) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestViewer_LabelerFallback(t *testing.T) {
	v := New(Options{Target: "u-1", Labeler: failingLabeler{}}, zerolog.Nop())
	v.Apply(models.LocationEvent{UserID: "u-1", Latitude: 1, Longitude: 2})

	m, _ := v.Marker()
	assert.Equal(t, "u-1 (1.00000, 2.00000)", m.Label)
}

func TestTargetFromQuery(t *testing.T) {
	assert.Equal(t, "42", TargetFromQuery(url.Values{"user_id": {" 42 "}}, zerolog.Nop()))
	assert.Equal(t, "", TargetFromQuery(url.Values{}, zerolog.Nop()))
	assert.Equal(t, "abc", TargetFromURL("/track?user_id=abc&x=1", zerolog.Nop()))
	assert.Equal(t, "", TargetFromURL("%zz", zerolog.Nop()))
}

func TestDialURI(t *testing.T) {
	assert.Equal(t, "", DialURI("  "))
	assert.Equal(t, "tel:+15550100", DialURI("+1 (555) 0100"))
}
