package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/live-location/internal/mocks"
	"github.com/benmeehan/live-location/internal/models"
	"github.com/benmeehan/live-location/internal/registry"
	"github.com/benmeehan/live-location/internal/services"
	"github.com/benmeehan/live-location/pkg/identity"
	"github.com/benmeehan/live-location/pkg/location"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newIdentity() *mocks.MockUserInfo {
	userInfo := new(mocks.MockUserInfo)
	userInfo.On("GetUserID").Return("u-1")
	userInfo.On("GetIdentity").Return(identity.Identity{UserID: "u-1", UserPhone: "+911", AdminPhone: "+912"})
	return userInfo
}

// TestLocationService_PublishesEvent checks the first report goes out on start.
func TestLocationService_PublishesEvent(t *testing.T) {
	// Setup
	userInfo := newIdentity()
	provider := new(mocks.MockProvider)
	provider.On("GetLocation", mock.Anything).Return(location.Location{Latitude: 12.97, Longitude: 77.59, Accuracy: 8}, nil)
	provider.On("Close").Return(nil)

	published := make(chan []byte, 4)
	client := new(mocks.MockMQTTMiddleware)
	client.On("Publish", "locations/u-1", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(3).([]byte) }).
		Return(nil)

	l := services.NewLocationService("locations", time.Hour, 1, userInfo, client, zerolog.Nop(), provider)

	// Execute
	require.NoError(t, l.Start())

	// Assert
	var payload []byte
	select {
	case payload = <-published:
	case <-time.After(time.Second):
		t.Fatal("no location published")
	}

	var evt models.LocationEvent
	require.NoError(t, json.Unmarshal(payload, &evt))
	assert.Equal(t, "u-1", evt.UserID)
	assert.Equal(t, 12.97, evt.Latitude)
	assert.Equal(t, 77.59, evt.Longitude)
	assert.Equal(t, "+911", evt.UserPhone)
	assert.Equal(t, "+912", evt.AdminPhone)
	assert.Equal(t, 8.0, evt.Accuracy)
	assert.NotNil(t, evt.Timestamp)

	// Cleanup
	require.NoError(t, l.Stop())
	provider.AssertCalled(t, "Close")
}

// TestLocationService_StartStopTwice checks the running guards.
func TestLocationService_StartStopTwice(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("GetLocation", mock.Anything).Return(location.Location{}, errors.New("no fix"))
	provider.On("Close").Return(nil)

	l := services.NewLocationService("locations", time.Hour, 0, newIdentity(), new(mocks.MockMQTTMiddleware), zerolog.Nop(), provider)

	require.NoError(t, l.Start())
	assert.ErrorIs(t, l.Start(), registry.ErrServiceRunning)

	require.NoError(t, l.Stop())
	assert.ErrorIs(t, l.Stop(), registry.ErrServiceNotRunning)
}

// TestLocationService_SkipsInvalidCoordinates never publishes an out-of-range fix.
func TestLocationService_SkipsInvalidCoordinates(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("GetLocation", mock.Anything).Return(location.Location{Latitude: 95, Longitude: 0}, nil)
	provider.On("Close").Return(nil)
	client := new(mocks.MockMQTTMiddleware)

	l := services.NewLocationService("locations", 10*time.Millisecond, 0, newIdentity(), client, zerolog.Nop(), provider)
	require.NoError(t, l.Start())
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Stop())

	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestLocationService_Stop_ProviderCloseError surfaces provider close failures.
func TestLocationService_Stop_ProviderCloseError(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("GetLocation", mock.Anything).Return(location.Location{}, errors.New("no fix"))
	provider.On("Close").Return(errors.New("port busy"))

	l := services.NewLocationService("locations", time.Hour, 0, newIdentity(), new(mocks.MockMQTTMiddleware), zerolog.Nop(), provider)
	require.NoError(t, l.Start())

	assert.EqualError(t, l.Stop(), "port busy")
}

func TestLocationService_Topic(t *testing.T) {
	l := services.NewLocationService("locations", time.Second, 0, newIdentity(), nil, zerolog.Nop(), nil)
	assert.Equal(t, "locations/u-1", l.Topic())
}
