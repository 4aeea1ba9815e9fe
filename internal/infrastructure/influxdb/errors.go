package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the server cannot be reached or
	// reports itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps every asynchronous batch failure passed to the
	// SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
