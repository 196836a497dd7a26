package hub

import (
	"fmt"
	"sort"

	"github.com/benmeehan/live-location/internal/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Store keeps the last known position of every user seen on the channel.
type Store struct {
	positions cmap.ConcurrentMap[string, models.LocationEvent]
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{positions: cmap.New[models.LocationEvent]()}
}

// Set records evt as the latest position for its user. Older reports than
// the one already stored are ignored; it returns whether evt was kept.
func (s *Store) Set(evt models.LocationEvent) bool {
	kept := false
	s.positions.Upsert(evt.UserID, evt, func(exist bool, current, incoming models.LocationEvent) models.LocationEvent {
		if exist && isOlder(incoming, current) {
			return current
		}
		kept = true
		return incoming
	})
	return kept
}

func isOlder(incoming, current models.LocationEvent) bool {
	if incoming.Timestamp == nil || current.Timestamp == nil {
		return false
	}
	return incoming.Timestamp.Before(*current.Timestamp)
}

// Get returns the last known position for userID.
func (s *Store) Get(userID string) (models.LocationEvent, bool) {
	return s.positions.Get(userID)
}

// Lookup is Get with models.ErrNotFound for unknown users.
func (s *Store) Lookup(userID string) (models.LocationEvent, error) {
	evt, ok := s.positions.Get(userID)
	if !ok {
		return models.LocationEvent{}, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return evt, nil
}

// Snapshot returns every stored position ordered by user id.
func (s *Store) Snapshot() []models.LocationEvent {
	items := s.positions.Items()
	out := make([]models.LocationEvent, 0, len(items))
	for _, evt := range items {
		out = append(out, evt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Len returns the number of tracked users.
func (s *Store) Len() int {
	return s.positions.Count()
}
