package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/live-location/internal/constants"
	"github.com/benmeehan/live-location/internal/utils"
	"github.com/benmeehan/live-location/internal/viewer"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, rawURL, userID string

	flagSet := pflag.NewFlagSet("liveloc-viewer", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $LIVELOC_CONFIG)")
	flagSet.StringVar(&rawURL, "url", "", "hub WebSocket URL, optionally carrying ?user_id= (default viewer.url)")
	flagSet.StringVar(&userID, "user-id", "", "user to follow; overrides user_id in --url")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	config, err := utils.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := utils.NewLogger(config.Logging.Level, config.Logging.Format, os.Stderr).
		With().Str("component", "viewer").Logger()

	if rawURL == "" {
		rawURL = config.Viewer.URL
	}
	if userID == "" {
		userID = viewer.TargetFromURL(rawURL, log)
	}

	opts := viewer.Options{
		Target:          userID,
		Center:          viewer.Coordinate{Lat: config.Viewer.DefaultLat, Lng: config.Viewer.DefaultLng},
		Zoom:            config.Viewer.DefaultZoom,
		EmergencyNumber: config.Viewer.EmergencyNumber,
		OnMove:          printMove,
	}
	if config.Viewer.MapsAPIKey != "" {
		labeler, err := viewer.NewGeocodeLabeler(config.Viewer.MapsAPIKey)
		if err != nil {
			log.Warn().Err(err).Msg("Reverse geocoding disabled")
		} else {
			opts.Labeler = labeler
		}
	}

	v := viewer.New(opts, log)
	center, zoom := v.Center()
	fmt.Printf("map centered on %.4f, %.4f (zoom %d), following %q\n", center.Lat, center.Lng, zoom, userID)
	fmt.Printf("emergency: %s\n", v.Calls().Emergency)

	session := viewer.NewSession(v, viewer.SessionOptions{
		URL:     socketURL(rawURL),
		Retries: config.Viewer.ReconnectTries,
		Delay:   config.Viewer.ReconnectDelay,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connection problems are logged by the session; exiting after the
	// reconnect budget is spent is not an error for the viewer.
	if err := session.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Viewer stopped")
	}
	return nil
}

// socketURL strips the viewer query from rawURL; the hub does not need it.
func socketURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Del(constants.QueryUserID)
	u.RawQuery = q.Encode()
	return u.String()
}

func printMove(m viewer.Marker, calls viewer.CallActions) {
	fmt.Printf("marker %s at %.6f, %.6f\n", m.Label, m.Position.Lat, m.Position.Lng)
	for _, action := range []struct{ name, uri string }{
		{"user", calls.User},
		{"admin", calls.Admin},
		{"emergency", calls.Emergency},
	} {
		if action.uri != "" {
			fmt.Printf("  call %-9s %s\n", action.name, action.uri)
		}
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Live location viewer: follows one user on the hub's analytics channel.

Usage:
  liveloc-viewer [flags]

Examples:
  liveloc-viewer --url 'ws://localhost:8080/ws?user_id=42'
  liveloc-viewer --user-id 42

Flags:
%s`, flagSet.FlagUsages())
}

