package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigEnvVar names the environment variable holding the config file path.
const ConfigEnvVar = "LIVELOC_CONFIG"

// envPrefix prefixes every environment override, e.g. LIVELOC_HUB__ADDR.
const envPrefix = "LIVELOC_"

// Config represents the structure of the configuration file.
type Config struct {
	Logging struct {
		Level  string `koanf:"level"`  // trace, debug, info, warn, error
		Format string `koanf:"format"` // json or console
	} `koanf:"logging"`

	MQTT struct {
		Broker         string        `koanf:"broker"`          // MQTT broker address
		ClientID       string        `koanf:"client_id"`       // MQTT client ID prefix
		CACertificate  string        `koanf:"ca_certificate"`  // Path to the CA certificate, empty for plain TCP
		Username       string        `koanf:"username"`        // Optional broker username
		Password       string        `koanf:"password"`        // Optional broker password
		ConnectTimeout time.Duration `koanf:"connect_timeout"` // Bound on the initial connect
	} `koanf:"mqtt"`

	Hub struct {
		Addr            string        `koanf:"addr"`             // HTTP listen address
		AllowedOrigins  []string      `koanf:"allowed_origins"`  // WebSocket/CORS origins, "*" allows all
		ClientBuffer    int           `koanf:"client_buffer"`    // Per-client outbound frame buffer
		BroadcastBuffer int           `koanf:"broadcast_buffer"` // Hub broadcast queue size
		ReplayOnJoin    bool          `koanf:"replay_on_join"`   // Send last known positions on join
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"` // Graceful HTTP shutdown bound
		RateLimit       int           `koanf:"rate_limit"`       // HTTP ingest requests per minute per IP, 0 disables
	} `koanf:"hub"`

	Ingest struct {
		MQTT struct {
			Enabled bool   `koanf:"enabled"` // Subscribe to reporter topics
			Topic   string `koanf:"topic"`   // Subscription filter, e.g. locations/#
			QOS     int    `koanf:"qos"`     // MQTT QoS level
			Workers int    `koanf:"workers"` // Decode worker count
		} `koanf:"mqtt"`
	} `koanf:"ingest"`

	Viewer struct {
		URL             string        `koanf:"url"`              // Hub WebSocket URL
		DefaultLat      float64       `koanf:"default_lat"`      // Initial map center
		DefaultLng      float64       `koanf:"default_lng"`      // Initial map center
		DefaultZoom     int           `koanf:"default_zoom"`     // Initial zoom level
		EmergencyNumber string        `koanf:"emergency_number"` // Dialed unconditionally
		ReconnectTries  int           `koanf:"reconnect_tries"`  // Fixed number of reconnection attempts
		ReconnectDelay  time.Duration `koanf:"reconnect_delay"`  // Fixed delay between attempts
		MapsAPIKey      string        `koanf:"maps_api_key"`     // Enables reverse-geocoded marker labels
	} `koanf:"viewer"`

	Reporter struct {
		IdentityFile string `koanf:"identity_file"` // JSON identity of the tracked user

		Location struct {
			Topic             string        `koanf:"topic"`           // MQTT topic prefix, user id is appended
			Enabled           bool          `koanf:"enabled"`         // Enable/disable location service
			Interval          time.Duration `koanf:"interval"`        // Interval between reports
			QOS               int           `koanf:"qos"`             // MQTT QoS level for location messages
			Provider          string        `koanf:"provider"`        // sensor, google or replay
			MapsAPIKey        string        `koanf:"maps_api_key"`    // Google maps API Key
			GPSDeviceBaudRate int           `koanf:"gps_baud_rate"`   // The Baud rate for GPS sensor
			GPSDevicePort     string        `koanf:"gps_device_port"` // UNIX Port where the GPS sensor is mounted
			RouteFile         string        `koanf:"route_file"`      // YAML route for the replay provider
			ModemIndex        int           `koanf:"modem_index"`     // mmcli modem used for cell towers
		} `koanf:"location_service"`
	} `koanf:"reporter"`

	Middlewares struct {
		Token struct {
			Enabled    bool          `koanf:"enabled"`     // Sign and verify MQTT payloads
			SecretFile string        `koanf:"secret_file"` // Shared HMAC secret
			TTL        time.Duration `koanf:"ttl"`         // Token lifetime for signed payloads
		} `koanf:"token"`
	} `koanf:"middlewares"`
}

// DefaultConfig returns the configuration used when no file or env override is present.
func DefaultConfig() *Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Format = "json"

	c.MQTT.Broker = "tcp://localhost:1883"
	c.MQTT.ClientID = "live-location"
	c.MQTT.ConnectTimeout = 10 * time.Second

	c.Hub.Addr = ":8080"
	c.Hub.AllowedOrigins = []string{"*"}
	c.Hub.ClientBuffer = 256
	c.Hub.BroadcastBuffer = 1024
	c.Hub.ReplayOnJoin = true
	c.Hub.ShutdownTimeout = 5 * time.Second
	c.Hub.RateLimit = 600

	c.Ingest.MQTT.Enabled = false
	c.Ingest.MQTT.Topic = "locations/#"
	c.Ingest.MQTT.QOS = 1
	c.Ingest.MQTT.Workers = 4

	c.Viewer.URL = "ws://localhost:8080/ws"
	c.Viewer.DefaultLat = 20.5937
	c.Viewer.DefaultLng = 78.9629
	c.Viewer.DefaultZoom = 5
	c.Viewer.EmergencyNumber = constants.DefaultEmergencyNumber
	c.Viewer.ReconnectTries = 5
	c.Viewer.ReconnectDelay = time.Second

	c.Reporter.IdentityFile = "configs/identity.json"
	c.Reporter.Location.Topic = "locations"
	c.Reporter.Location.Enabled = true
	c.Reporter.Location.Interval = 5 * time.Second
	c.Reporter.Location.QOS = 1
	c.Reporter.Location.Provider = "replay"
	c.Reporter.Location.GPSDeviceBaudRate = 9600
	c.Reporter.Location.GPSDevicePort = "/dev/ttyUSB0"
	c.Reporter.Location.RouteFile = "configs/route.yaml"

	c.Middlewares.Token.TTL = 5 * time.Minute
	return &c
}

// LoadConfig layers defaults, an optional YAML file and LIVELOC_ environment
// variables. An empty path falls back to $LIVELOC_CONFIG; if both are empty
// only defaults and env apply.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// LIVELOC_HUB__ADDR -> hub.addr
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Hub.Addr == "" {
		errs = append(errs, errors.New("hub.addr must not be empty"))
	}
	if c.Hub.ClientBuffer <= 0 {
		errs = append(errs, errors.New("hub.client_buffer must be positive"))
	}
	if c.Hub.BroadcastBuffer <= 0 {
		errs = append(errs, errors.New("hub.broadcast_buffer must be positive"))
	}
	if c.Hub.RateLimit < 0 {
		errs = append(errs, errors.New("hub.rate_limit must not be negative"))
	}
	if c.Ingest.MQTT.Workers <= 0 {
		errs = append(errs, errors.New("ingest.mqtt.workers must be positive"))
	}
	if c.Viewer.ReconnectTries < 0 {
		errs = append(errs, errors.New("viewer.reconnect_tries must not be negative"))
	}
	if c.Reporter.Location.Enabled && c.Reporter.Location.Interval <= 0 {
		errs = append(errs, errors.New("reporter.location_service.interval must be positive"))
	}
	return errors.Join(errs...)
}
