package service_registry

import (
	"fmt"

	"github.com/benmeehan/live-location/internal/constants"
	mqtt_middleware "github.com/benmeehan/live-location/internal/middlewares/mqtt"
	"github.com/benmeehan/live-location/internal/utils"
	"github.com/benmeehan/live-location/pkg/jwt"
	"github.com/benmeehan/live-location/pkg/mqtt"
)

// InitializeMiddlewares sets up the middleware chain based on configuration.
// subject is the user id outgoing payloads are signed for; consumers that
// only verify pass "".
func (sr *ServiceRegistry) InitializeMiddlewares(config *utils.Config, mqttClient mqtt.MQTTClient, subject string) (*mqtt_middleware.ChainedMQTTClient, error) {
	var middlewares []mqtt_middleware.MQTTMiddleware

	// Ordered middleware definitions
	middlewaresInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (mqtt_middleware.MQTTMiddleware, error)
	}{
		{
			name:    constants.TokenMiddleware,
			enabled: config.Middlewares.Token.Enabled,
			constructor: func() (mqtt_middleware.MQTTMiddleware, error) {
				tokens, err := jwt.NewTokenManagerFromFile(config.Middlewares.Token.SecretFile, sr.fileClient, config.Middlewares.Token.TTL)
				if err != nil {
					return nil, err
				}
				tokenMiddleware := mqtt_middleware.NewTokenMiddleware(tokens, subject, sr.Logger)
				if err := tokenMiddleware.Init(nil); err != nil {
					return nil, fmt.Errorf("failed to initialize token middleware: %w", err)
				}
				return tokenMiddleware, nil
			},
		},
	}

	// Initialize middlewares in order
	for _, mw := range middlewaresInOrder {
		if mw.enabled {
			middlewareInstance, err := mw.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to initialize %s middleware", mw.name)
				return nil, fmt.Errorf("failed to initialize %s middleware: %w", mw.name, err)
			}
			middlewares = append(middlewares, middlewareInstance)
			sr.Logger.Info().Str("middleware", mw.name).Msg("Middleware initialized")
		} else {
			sr.Logger.Debug().Str("middleware", mw.name).Msg("Middleware is disabled, skipping")
		}
	}

	// Create and return chained MQTT client
	chainedClient := mqtt_middleware.NewChainedMQTTClient(mqttClient, middlewares)
	sr.Logger.Info().Int("middleware_count", len(middlewares)).Msg("Middleware chain initialized")
	return chainedClient, nil
}
