package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/benmeehan/live-location/internal/constants"
)

//go:embed web/track.html
var webFS embed.FS

// PageSettings are baked into the tracking page.
type PageSettings struct {
	DefaultLat      float64
	DefaultLng      float64
	DefaultZoom     int
	EmergencyNumber string
	ReconnectTries  int
	ReconnectDelay  time.Duration
}

// pageConfig is the JSON object the page script reads.
type pageConfig struct {
	Center           [2]float64 `json:"center"`
	Zoom             int        `json:"zoom"`
	EmergencyNumber  string     `json:"emergencyNumber"`
	ReconnectTries   int        `json:"reconnectTries"`
	ReconnectDelayMs int64      `json:"reconnectDelayMs"`
	QueryParam       string     `json:"queryParam"`
	JoinEvent        string     `json:"joinEvent"`
	LocationEvent    string     `json:"locationEvent"`
}

type trackPage struct {
	tmpl *template.Template
	cfg  pageConfig
}

func newTrackPage(p PageSettings) (*trackPage, error) {
	tmpl, err := template.ParseFS(webFS, "web/track.html")
	if err != nil {
		return nil, err
	}
	if p.EmergencyNumber == "" {
		p.EmergencyNumber = constants.DefaultEmergencyNumber
	}
	return &trackPage{
		tmpl: tmpl,
		cfg: pageConfig{
			Center:           [2]float64{p.DefaultLat, p.DefaultLng},
			Zoom:             p.DefaultZoom,
			EmergencyNumber:  p.EmergencyNumber,
			ReconnectTries:   p.ReconnectTries,
			ReconnectDelayMs: p.ReconnectDelay.Milliseconds(),
			QueryParam:       constants.QueryUserID,
			JoinEvent:        constants.EventJoinAnalytics,
			LocationEvent:    constants.EventAnalyticsLocation,
		},
	}, nil
}

// handleTrack serves the live map. The tracked user comes from ?user_id=,
// read by the page itself; a missing one is logged here too.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get(constants.QueryUserID) == "" {
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("Tracking page requested without user_id")
	}

	var buf bytes.Buffer
	if err := s.page.tmpl.Execute(&buf, s.page.cfg); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render tracking page")
		writeError(w, http.StatusInternalServerError, "internal", "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
