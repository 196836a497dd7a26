package constants

// Real-time channel events.
const (
	EventJoinAnalytics     = "joinAnalytics"
	EventAnalyticsLocation = "analyticsLocation"
	EventPing              = "ping"
	EventPong              = "pong"
)

// AnalyticsChannel is the broadcast channel viewers join.
const AnalyticsChannel = "analytics"

// QueryUserID is the URL query parameter naming the tracked user.
const QueryUserID = "user_id"

// DefaultEmergencyNumber is dialed by the emergency action.
const DefaultEmergencyNumber = "112"

// Registry names.
const (
	HubService      = "hub"
	IngestService   = "mqtt_ingest"
	HTTPService     = "http"
	LocationService = "location"

	TokenMiddleware = "token"
)
