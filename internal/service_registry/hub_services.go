package service_registry

import (
	"errors"
	"net/http"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/benmeehan/live-location/internal/hub"
	"github.com/benmeehan/live-location/internal/ingest"
	mqtt_middleware "github.com/benmeehan/live-location/internal/middlewares/mqtt"
	"github.com/benmeehan/live-location/internal/services"
	"github.com/benmeehan/live-location/internal/utils"
)

// HubDependencies are the shared components the hub binary wires together.
type HubDependencies struct {
	Hub     *hub.Hub
	Handler http.Handler
	// MQTT is required only when MQTT ingest is enabled.
	MQTT mqtt_middleware.MQTTClient
}

// RegisterHubServices registers the hub loop, MQTT ingest and the HTTP
// server, in that order, so the server only accepts sockets once the hub runs.
func (sr *ServiceRegistry) RegisterHubServices(config *utils.Config, deps HubDependencies) error {
	return sr.registerInOrder([]serviceDefinition{
		{
			name:    constants.HubService,
			enabled: true,
			constructor: func() (Service, error) {
				return services.NewHubService(deps.Hub, sr.Logger.With().Str("service", constants.HubService).Logger()), nil
			},
		},
		{
			name:    constants.IngestService,
			enabled: config.Ingest.MQTT.Enabled,
			constructor: func() (Service, error) {
				if deps.MQTT == nil {
					return nil, errors.New("mqtt ingest enabled without an mqtt client")
				}
				return ingest.NewMQTTIngestService(
					config.Ingest.MQTT.Topic,
					config.Ingest.MQTT.QOS,
					config.Ingest.MQTT.Workers,
					deps.MQTT,
					deps.Hub,
					sr.Logger.With().Str("service", constants.IngestService).Logger(),
				), nil
			},
		},
		{
			name:    constants.HTTPService,
			enabled: true,
			constructor: func() (Service, error) {
				return services.NewHTTPService(
					config.Hub.Addr,
					deps.Handler,
					config.Hub.ShutdownTimeout,
					sr.Logger.With().Str("service", constants.HTTPService).Logger(),
				), nil
			},
		},
	})
}
