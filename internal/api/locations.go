package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/benmeehan/live-location/internal/hub"
	"github.com/benmeehan/live-location/internal/ingest"
	"github.com/benmeehan/live-location/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// maxBodyBytes bounds an ingest request body.
const maxBodyBytes = 16 << 10

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"clients":       s.hub.ClientCount(),
		"joined":        s.hub.JoinedCount(),
		"tracked_users": s.hub.Store().Len(),
	})
}

// handleIngest accepts a LocationEvent body and broadcasts it.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
		return
	}

	var evt models.LocationEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	err = ingest.Publish(s.hub, evt, ingest.SourceHTTP)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, models.ErrInvalidLocation):
		writeError(w, http.StatusBadRequest, "invalid_location", err.Error())
	case errors.Is(err, hub.ErrStale):
		writeError(w, http.StatusConflict, "stale_location", err.Error())
	case errors.Is(err, hub.ErrHubBusy), errors.Is(err, hub.ErrHubStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		s.logger.Error().Err(err).Msg("Failed to publish location")
		writeError(w, http.StatusInternalServerError, "internal", "failed to publish location")
	}
}

// handleGetLocation returns the last known position of a user.
func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	evt, err := s.hub.Store().Lookup(chi.URLParam(r, "userId"))
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, evt)
}
