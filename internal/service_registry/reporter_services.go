package service_registry

import (
	"fmt"

	"github.com/benmeehan/live-location/internal/constants"
	mqtt_middleware "github.com/benmeehan/live-location/internal/middlewares/mqtt"
	"github.com/benmeehan/live-location/internal/services"
	"github.com/benmeehan/live-location/internal/utils"
	"github.com/benmeehan/live-location/pkg/identity"
	"github.com/benmeehan/live-location/pkg/location"
)

// Location provider names accepted in reporter.location_service.provider.
const (
	ProviderSensor = "sensor"
	ProviderGoogle = "google"
	ProviderReplay = "replay"
)

// RegisterReporterServices registers the services of the reporter binary.
func (sr *ServiceRegistry) RegisterReporterServices(config *utils.Config, userInfo identity.UserInfoInterface,
	mqttClient mqtt_middleware.MQTTClient) error {
	return sr.registerInOrder([]serviceDefinition{
		{
			name:    constants.LocationService,
			enabled: config.Reporter.Location.Enabled,
			constructor: func() (Service, error) {
				provider, err := sr.NewLocationProvider(config)
				if err != nil {
					return nil, err
				}
				return services.NewLocationService(
					config.Reporter.Location.Topic,
					config.Reporter.Location.Interval,
					config.Reporter.Location.QOS,
					userInfo,
					mqttClient,
					sr.Logger.With().Str("service", constants.LocationService).Logger(),
					provider,
				), nil
			},
		},
	})
}

// NewLocationProvider builds the provider named in the configuration.
func (sr *ServiceRegistry) NewLocationProvider(config *utils.Config) (location.Provider, error) {
	cfg := config.Reporter.Location
	switch cfg.Provider {
	case ProviderSensor:
		return location.NewDeviceSensorProvider(cfg.GPSDevicePort, cfg.GPSDeviceBaudRate), nil
	case ProviderGoogle:
		provider, err := location.NewGoogleGeolocationProvider(cfg.MapsAPIKey, cfg.ModemIndex, sr.Logger)
		if err != nil {
			sr.Logger.Error().Err(err).Msg("failed to create Google Geolocation provider")
			return nil, err
		}
		return provider, nil
	case ProviderReplay:
		return location.NewReplayProvider(cfg.RouteFile, sr.fileClient)
	default:
		return nil, fmt.Errorf("unknown location provider %q", cfg.Provider)
	}
}
