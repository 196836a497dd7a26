// Package ingest feeds location reports from producers into the hub.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benmeehan/live-location/internal/hub"
	"github.com/benmeehan/live-location/internal/metrics"
	"github.com/benmeehan/live-location/internal/models"
	"github.com/goccy/go-json"
)

// Sources label where an event entered the system.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Publisher accepts validated location events for broadcast.
type Publisher interface {
	Publish(evt models.LocationEvent) error
}

// Publish hands evt to p and records the outcome under source.
func Publish(p Publisher, evt models.LocationEvent, source string) error {
	err := p.Publish(evt)
	if err != nil {
		metrics.LocationsRejected.WithLabelValues(source, reason(err)).Inc()
		return err
	}
	metrics.LocationsIngested.WithLabelValues(source).Inc()
	return nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidLocation):
		return "invalid"
	case errors.Is(err, hub.ErrStale):
		return "stale"
	case errors.Is(err, hub.ErrHubBusy):
		return "busy"
	case errors.Is(err, hub.ErrHubStopped):
		return "stopped"
	default:
		return "error"
	}
}

// Decode parses an MQTT payload published on topic. The payload is either a
// bare LocationEvent or a {"jwt", "payload"} wrapper whose inner payload is
// the event. The last topic segment names the reporting user: it fills a
// missing userId and must match a present one.
func Decode(topic string, payload []byte) (models.LocationEvent, error) {
	var wrapped models.WrappedPayload
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.JWT != "" && len(wrapped.Payload) > 0 {
		payload = wrapped.Payload
	}

	var evt models.LocationEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return models.LocationEvent{}, fmt.Errorf("%w: %v", models.ErrInvalidLocation, err)
	}

	topicUser := topicUserID(topic)
	switch {
	case evt.UserID == "":
		evt.UserID = topicUser
	case topicUser != "" && evt.UserID != topicUser:
		return models.LocationEvent{}, fmt.Errorf("%w: userId %q published on topic for %q",
			models.ErrInvalidLocation, evt.UserID, topicUser)
	}
	return evt, nil
}

// topicUserID returns the last segment of a multi-level topic.
func topicUserID(topic string) string {
	i := strings.LastIndex(topic, "/")
	if i < 0 {
		return ""
	}
	return topic[i+1:]
}
