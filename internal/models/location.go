package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrInvalidLocation is returned when a location event fails validation.
	ErrInvalidLocation = errors.New("invalid location event")
	// ErrNotFound is returned when no position is known for a user.
	ErrNotFound = errors.New("location not found")
)

// MaxClockSkew bounds how far in the future a reported timestamp may be.
const MaxClockSkew = time.Minute

// LocationEvent is a single position report for a tracked user, as carried
// on the analytics channel.
type LocationEvent struct {
	UserID     string     `json:"userId"`
	Latitude   float64    `json:"lat"`
	Longitude  float64    `json:"lng"`
	UserPhone  string     `json:"user_phone,omitempty"`
	AdminPhone string     `json:"admin_phone,omitempty"`
	Accuracy   float64    `json:"accuracy,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// locationWire mirrors LocationEvent with a loosely typed userId.
type locationWire struct {
	UserID     json.RawMessage `json:"userId"`
	Latitude   float64         `json:"lat"`
	Longitude  float64         `json:"lng"`
	UserPhone  string          `json:"user_phone"`
	AdminPhone string          `json:"admin_phone"`
	Accuracy   float64         `json:"accuracy"`
	Timestamp  *time.Time      `json:"timestamp"`
}

// UnmarshalJSON accepts userId as either a JSON string or a number, since
// producers are not consistent about it.
func (e *LocationEvent) UnmarshalJSON(data []byte) error {
	var w locationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := parseUserID(w.UserID)
	if err != nil {
		return err
	}

	*e = LocationEvent{
		UserID:     id,
		Latitude:   w.Latitude,
		Longitude:  w.Longitude,
		UserPhone:  strings.TrimSpace(w.UserPhone),
		AdminPhone: strings.TrimSpace(w.AdminPhone),
		Accuracy:   w.Accuracy,
		Timestamp:  w.Timestamp,
	}
	return nil
}

func parseUserID(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode userId: %w", err)
		}
		return strings.TrimSpace(s), nil
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
		return "", fmt.Errorf("decode userId: unsupported value %s", trimmed)
	}
	return trimmed, nil
}

// Validate checks the user identifier and coordinate ranges.
func (e LocationEvent) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: missing userId", ErrInvalidLocation)
	}
	if !ValidCoordinate(e.Latitude, e.Longitude) {
		return fmt.Errorf("%w: coordinate (%f, %f) out of range", ErrInvalidLocation, e.Latitude, e.Longitude)
	}
	return nil
}

// ValidateAt is Validate plus a timestamp bound: a report may not claim to be
// more than MaxClockSkew ahead of now.
func (e LocationEvent) ValidateAt(now time.Time) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Timestamp != nil && e.Timestamp.After(now.Add(MaxClockSkew)) {
		return fmt.Errorf("%w: timestamp %s is in the future", ErrInvalidLocation, e.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// ValidCoordinate reports whether lat/lng are finite and within WGS84 bounds.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Stamp returns a copy of the event with Timestamp set to now when absent.
func (e LocationEvent) Stamp(now time.Time) LocationEvent {
	if e.Timestamp == nil {
		ts := now.UTC()
		e.Timestamp = &ts
	}
	return e
}
