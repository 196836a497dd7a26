package models

import "github.com/goccy/go-json"

// WrappedPayload is the token-carrying structure sent over MQTT when
// payload signing is enabled.
type WrappedPayload struct {
	JWT     string          `json:"jwt"`
	Payload json.RawMessage `json:"payload"`
}
