package viewer

import (
	"context"
	"errors"
	"fmt"

	"github.com/benmeehan/live-location/internal/models"
	"googlemaps.github.io/maps"
)

// Labeler names a marker.
type Labeler interface {
	Label(ctx context.Context, evt models.LocationEvent) (string, error)
}

// DefaultLabeler labels with the user id and coordinates.
type DefaultLabeler struct{}

// Label returns "<userId> (lat, lng)".
func (DefaultLabeler) Label(_ context.Context, evt models.LocationEvent) (string, error) {
	return fmt.Sprintf("%s (%.5f, %.5f)", evt.UserID, evt.Latitude, evt.Longitude), nil
}

// GeocodeLabeler labels markers with a reverse-geocoded address.
type GeocodeLabeler struct {
	client *maps.Client
}

// NewGeocodeLabeler creates a labeler backed by the Google Maps geocoding API.
func NewGeocodeLabeler(apiKey string, opts ...maps.ClientOption) (*GeocodeLabeler, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &GeocodeLabeler{client: c}, nil
}

// Label returns "<userId>: <formatted address>".
func (g *GeocodeLabeler) Label(ctx context.Context, evt models.LocationEvent) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: evt.Latitude, Lng: evt.Longitude},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if len(results) == 0 {
		return "", errors.New("reverse geocode: no results")
	}
	return fmt.Sprintf("%s: %s", evt.UserID, results[0].FormattedAddress), nil
}
