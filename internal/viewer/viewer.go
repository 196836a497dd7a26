// Package viewer is the live location viewer: it follows one target user on
// the analytics channel, keeps a single marker on their latest position and
// exposes dial actions for the user, their admin and emergency services.
package viewer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/benmeehan/live-location/internal/models"
	"github.com/rs/zerolog"
)

// State is the connection state of a viewer.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateReceiving    State = "receiving"
)

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Marker is the single pin shown for the target user.
type Marker struct {
	Position Coordinate
	Label    string
	Event    models.LocationEvent
}

// CallActions holds tel: URIs. User and Admin are empty unless the latest
// matching event carried the number; Emergency is always set.
type CallActions struct {
	User      string
	Admin     string
	Emergency string
}

// Options configures a Viewer.
type Options struct {
	Target          string
	Center          Coordinate
	Zoom            int
	EmergencyNumber string
	Labeler         Labeler
	// OnMove is called after the marker moves, outside the viewer lock.
	OnMove func(Marker, CallActions)
}

// Viewer holds the map state for one target user. It is safe for concurrent use.
type Viewer struct {
	target  string
	labeler Labeler
	onMove  func(Marker, CallActions)
	logger  zerolog.Logger

	mu     sync.RWMutex
	state  State
	center Coordinate
	zoom   int
	marker *Marker
	calls  CallActions
}

// New creates a Viewer centered on opts.Center. An empty target is logged;
// such a viewer never places a marker.
func New(opts Options, logger zerolog.Logger) *Viewer {
	if opts.Target == "" {
		logger.Error().Msg("No target user id; location updates will be ignored")
	}
	if opts.EmergencyNumber == "" {
		opts.EmergencyNumber = constants.DefaultEmergencyNumber
	}
	if opts.Labeler == nil {
		opts.Labeler = DefaultLabeler{}
	}
	return &Viewer{
		target:  opts.Target,
		labeler: opts.Labeler,
		onMove:  opts.OnMove,
		logger:  logger,
		state:   StateDisconnected,
		center:  opts.Center,
		zoom:    opts.Zoom,
		calls:   CallActions{Emergency: DialURI(opts.EmergencyNumber)},
	}
}

// Target returns the tracked user id.
func (v *Viewer) Target() string {
	return v.target
}

// Apply handles one analyticsLocation payload and reports whether the marker
// moved. Events for other users and invalid coordinates leave state untouched.
func (v *Viewer) Apply(evt models.LocationEvent) bool {
	if v.target == "" || evt.UserID != v.target {
		return false
	}
	if !models.ValidCoordinate(evt.Latitude, evt.Longitude) {
		v.logger.Warn().
			Float64("lat", evt.Latitude).
			Float64("lng", evt.Longitude).
			Msg("Ignoring location with invalid coordinates")
		return false
	}

	pos := Coordinate{Lat: evt.Latitude, Lng: evt.Longitude}
	marker := Marker{Position: pos, Label: v.label(evt), Event: evt}

	v.mu.Lock()
	v.marker = &marker
	v.center = pos
	v.calls.User = DialURI(evt.UserPhone)
	v.calls.Admin = DialURI(evt.AdminPhone)
	v.state = StateReceiving
	calls := v.calls
	v.mu.Unlock()

	if v.onMove != nil {
		v.onMove(marker, calls)
	}
	return true
}

func (v *Viewer) label(evt models.LocationEvent) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	label, err := v.labeler.Label(ctx, evt)
	if err != nil || label == "" {
		if err != nil {
			v.logger.Debug().Err(err).Msg("Labeler failed, using default label")
		}
		label, _ = DefaultLabeler{}.Label(ctx, evt)
	}
	return label
}

// Marker returns the current marker, if any.
func (v *Viewer) Marker() (Marker, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.marker == nil {
		return Marker{}, false
	}
	return *v.marker, true
}

// Center returns the map center and zoom.
func (v *Viewer) Center() (Coordinate, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.center, v.zoom
}

// Calls returns the current dial actions.
func (v *Viewer) Calls() CallActions {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.calls
}

// State returns the connection state.
func (v *Viewer) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

func (v *Viewer) setState(s State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s == StateConnected && v.state == StateReceiving {
		return
	}
	v.state = s
}

// DialURI builds a tel: URI, dropping spaces and dashes. Empty in, empty out.
func DialURI(number string) string {
	number = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(number))
	if number == "" {
		return ""
	}
	return "tel:" + number
}
