package models

import (
	"fmt"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/goccy/go-json"
)

// Envelope is the frame exchanged over the real-time socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data under the given event name.
func NewEnvelope(event string, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// JoinAnalytics is the frame a subscriber sends right after connecting.
func JoinAnalytics() Envelope {
	return Envelope{Event: constants.EventJoinAnalytics}
}

// DecodeLocation extracts the LocationEvent carried by an analyticsLocation frame.
func (e Envelope) DecodeLocation() (LocationEvent, error) {
	if e.Event != constants.EventAnalyticsLocation {
		return LocationEvent{}, fmt.Errorf("unexpected event %q", e.Event)
	}
	var loc LocationEvent
	if err := json.Unmarshal(e.Data, &loc); err != nil {
		return LocationEvent{}, fmt.Errorf("decode location payload: %w", err)
	}
	return loc, nil
}

// EncodeFrame marshals an envelope for the wire.
func EncodeFrame(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeFrame parses a wire frame.
func DecodeFrame(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	return e, nil
}
