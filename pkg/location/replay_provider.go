package location

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benmeehan/live-location/pkg/file"
)

// Route is a recorded path replayed by ReplayProvider.
type Route struct {
	Loop   bool       `yaml:"loop"`
	Points []Location `yaml:"points"`
}

// ErrRouteFinished is returned once a non-looping route has been walked.
var ErrRouteFinished = errors.New("route finished")

// ReplayProvider returns the points of a route file one per call.
type ReplayProvider struct {
	mu    sync.Mutex
	route Route
	next  int
}

// NewReplayProvider loads a YAML route from path.
func NewReplayProvider(path string, fileOps file.FileOperations) (*ReplayProvider, error) {
	var route Route
	if err := fileOps.ReadYamlFile(path, &route); err != nil {
		return nil, fmt.Errorf("failed to load route: %w", err)
	}
	if len(route.Points) == 0 {
		return nil, fmt.Errorf("route %s has no points", path)
	}
	return &ReplayProvider{route: route}, nil
}

// GetLocation returns the next point of the route.
func (r *ReplayProvider) GetLocation(ctx context.Context) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.route.Points) {
		if !r.route.Loop {
			return Location{}, ErrRouteFinished
		}
		r.next = 0
	}
	loc := r.route.Points[r.next]
	r.next++
	return loc, nil
}

// Close is a no-op.
func (r *ReplayProvider) Close() error {
	return nil
}
