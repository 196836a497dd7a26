package location

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benmeehan/live-location/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

const (
	ggaFix   = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaNoFix = "$GPGGA,123519,4807.038,N,01131.000,E,0,08,0.9,545.4,M,46.9,M,,*46"
	gnggaFix = "$GNGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*59"
)

func TestParseGGA(t *testing.T) {
	loc, ok, err := parseGGA(ggaFix)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 48.1173, loc.Latitude, 1e-4)
	assert.InDelta(t, 11.5167, loc.Longitude, 1e-4)
	assert.InDelta(t, 0.9, loc.Accuracy, 1e-9)

	_, ok, err = parseGGA(gnggaFix)
	assert.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = parseGGA(ggaNoFix)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = parseGGA("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	assert.False(t, ok)
}

func sensorWith(lines ...string) *DeviceSensorProvider {
	d := NewDeviceSensorProvider("/dev/null", 9600)
	d.open = func(string, int) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(strings.Join(lines, "\r\n"))), nil
	}
	return d
}

func TestDeviceSensorProvider_GetLocation(t *testing.T) {
	d := sensorWith("garbage", ggaNoFix, "$GPGGA,bad*00", ggaFix)

	loc, err := d.GetLocation(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, loc.Latitude, 1e-4)

	// Stream exhausted: no fix, port released for the next attempt.
	_, err = d.GetLocation(context.Background())
	assert.ErrorIs(t, err, ErrNoFix)
	assert.NoError(t, d.Close())
}

func TestDeviceSensorProvider_OpenError(t *testing.T) {
	d := NewDeviceSensorProvider("/dev/missing", 9600)
	d.open = func(string, int) (io.ReadCloser, error) { return nil, errors.New("no such device") }

	_, err := d.GetLocation(context.Background())
	assert.Error(t, err)
	assert.NoError(t, d.Close())
}

func writeRoute(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "route.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReplayProvider(t *testing.T) {
	path := writeRoute(t, `
loop: false
points:
  - {lat: 12.9716, lng: 77.5946}
  - {lat: 12.9720, lng: 77.5950, accuracy: 5}
`)
	p, err := NewReplayProvider(path, file.NewFileService())
	require.NoError(t, err)

	first, err := p.GetLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 12.9716, Longitude: 77.5946}, first)

	second, err := p.GetLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, second.Accuracy)

	_, err = p.GetLocation(context.Background())
	assert.ErrorIs(t, err, ErrRouteFinished)
}

func TestReplayProvider_Loop(t *testing.T) {
	path := writeRoute(t, "loop: true\npoints:\n  - {lat: 1, lng: 2}\n")
	p, err := NewReplayProvider(path, file.NewFileService())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		loc, err := p.GetLocation(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1.0, loc.Latitude)
	}
}

func TestReplayProvider_EmptyRoute(t *testing.T) {
	path := writeRoute(t, "points: []\n")
	_, err := NewReplayProvider(path, file.NewFileService())
	assert.Error(t, err)
}

func TestGoogleGeolocationProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/geolocation/v1/geolocate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"location":{"lat":12.97,"lng":77.59},"accuracy":30}`))
	}))
	defer srv.Close()

	g, err := NewGoogleGeolocationProvider("AIza-test", 0, zerolog.Nop(), maps.WithBaseURL(srv.URL))
	require.NoError(t, err)
	g.wifiScan = func(context.Context) ([]maps.WiFiAccessPoint, error) { return nil, errors.New("nmcli not found") }
	g.cellScan = func(context.Context, int) ([]maps.CellTower, error) { return nil, errors.New("mmcli not found") }

	loc, err := g.GetLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 12.97, Longitude: 77.59, Accuracy: 30}, loc)
	assert.NoError(t, g.Close())
}

func TestIsValidMAC(t *testing.T) {
	assert.True(t, isValidMAC("00:14:22:01:23:45"))
	assert.True(t, isValidMAC("AA:BB:CC:DD:EE:FF"))
	assert.False(t, isValidMAC("00:14:22:01:23"))
	assert.False(t, isValidMAC("00:14:22:01:23:4G"))
	assert.False(t, isValidMAC("0014:22:01:23:45:67"))
}

func TestParseWiFiList(t *testing.T) {
	out := "00\\:14\\:22\\:01\\:23\\:45:72\nAA\\:BB\\:CC\\:DD\\:EE\\:FF:40\nbroken\n11\\:22:10\n"

	aps, err := parseWiFiList(out)
	require.NoError(t, err)
	require.Len(t, aps, 2)
	assert.Equal(t, "00:14:22:01:23:45", aps[0].MACAddress)
	assert.Equal(t, 72.0, aps[0].SignalStrength)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", aps[1].MACAddress)
}
