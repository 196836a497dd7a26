package registry

import "errors"

var (
	// ErrServiceRunning is returned by Start on a service that already runs.
	ErrServiceRunning = errors.New("service is already running")
	// ErrServiceNotRunning is returned by Stop on a service that is not running.
	ErrServiceNotRunning = errors.New("service is not running")
)

// Service is the interface for all plug-in services
type Service interface {
	Start() error
	Stop() error
}
