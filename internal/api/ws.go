package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// handleWebSocket upgrades the request and hands the connection to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client, err := s.hub.Attach(conn)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}
	s.logger.Debug().Uint64("client_id", client.ID()).Str("remote", r.RemoteAddr).Msg("WebSocket client attached")
}
