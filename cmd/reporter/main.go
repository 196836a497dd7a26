package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/live-location/internal/service_registry"
	"github.com/benmeehan/live-location/internal/utils"
	"github.com/benmeehan/live-location/pkg/file"
	"github.com/benmeehan/live-location/pkg/identity"
	"github.com/benmeehan/live-location/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	flagSet := pflag.NewFlagSet("liveloc-reporter", pflag.ExitOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $LIVELOC_CONFIG)")
	_ = flagSet.Parse(os.Args[1:])

	config, err := utils.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := utils.NewLogger(config.Logging.Level, config.Logging.Format, os.Stdout).
		With().Str("component", "reporter").Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	userInfo := identity.NewUserInfo(config.Reporter.IdentityFile, fileClient)
	if err := userInfo.LoadUserInfo(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load user identity")
	}

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := config.MQTT.ClientID + "-" + userInfo.GetUserID() + "-" + uuid.New().String()
	log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

	mqttService := mqtt.NewMqttService(fileClient, log.With().Str("component", "mqtt").Logger())
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

	serviceRegistry := service_registry.NewServiceRegistry(fileClient, log)

	chain, err := serviceRegistry.InitializeMiddlewares(config, mqttService, userInfo.GetUserID())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MQTT middlewares")
	}

	if err := serviceRegistry.RegisterReporterServices(config, userInfo, chain); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
	}
	mqttService.Disconnect(250)
}
