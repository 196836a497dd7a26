package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/live-location/internal/api"
	"github.com/benmeehan/live-location/internal/hub"
	mqtt_middleware "github.com/benmeehan/live-location/internal/middlewares/mqtt"
	"github.com/benmeehan/live-location/internal/service_registry"
	"github.com/benmeehan/live-location/internal/utils"
	"github.com/benmeehan/live-location/pkg/file"
	"github.com/benmeehan/live-location/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	flagSet := pflag.NewFlagSet("liveloc-hub", pflag.ExitOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $LIVELOC_CONFIG)")
	_ = flagSet.Parse(os.Args[1:])

	config, err := utils.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := utils.NewLogger(config.Logging.Level, config.Logging.Format, os.Stdout).
		With().Str("component", "hub").Logger()

	fileClient := file.NewFileService()
	serviceRegistry := service_registry.NewServiceRegistry(fileClient, log)

	store := hub.NewStore()
	h := hub.New(store, hub.Options{
		ClientBuffer:    config.Hub.ClientBuffer,
		BroadcastBuffer: config.Hub.BroadcastBuffer,
		ReplayOnJoin:    config.Hub.ReplayOnJoin,
	}, log.With().Str("component", "broadcaster").Logger())

	handler, err := api.NewRouter(h, api.Options{
		AllowedOrigins: config.Hub.AllowedOrigins,
		RateLimit:      config.Hub.RateLimit,
		Page: api.PageSettings{
			DefaultLat:      config.Viewer.DefaultLat,
			DefaultLng:      config.Viewer.DefaultLng,
			DefaultZoom:     config.Viewer.DefaultZoom,
			EmergencyNumber: config.Viewer.EmergencyNumber,
			ReconnectTries:  config.Viewer.ReconnectTries,
			ReconnectDelay:  config.Viewer.ReconnectDelay,
		},
	}, log.With().Str("component", "api").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build HTTP router")
	}

	deps := service_registry.HubDependencies{Hub: h, Handler: handler}

	var mqttService *mqtt.MqttService
	if config.Ingest.MQTT.Enabled {
		clientID := config.MQTT.ClientID + "-hub-" + uuid.New().String()
		log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		mqttService = mqtt.NewMqttService(fileClient, log.With().Str("component", "mqtt").Logger())
		err = mqttService.Initialize(mqtt.Options{
			Broker:         config.MQTT.Broker,
			ClientID:       clientID,
			CACertPath:     config.MQTT.CACertificate,
			Username:       config.MQTT.Username,
			Password:       config.MQTT.Password,
			ConnectTimeout: config.MQTT.ConnectTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}

		var chain *mqtt_middleware.ChainedMQTTClient
		chain, err = serviceRegistry.InitializeMiddlewares(config, mqttService, "")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MQTT middlewares")
		}
		deps.MQTT = chain
	}

	if err := serviceRegistry.RegisterHubServices(config, deps); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Str("addr", config.Hub.Addr).Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
	}
	if mqttService != nil {
		mqttService.Disconnect(250)
	}
}
