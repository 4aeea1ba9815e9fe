package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no record matches the given id (and name).
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidName is returned when a device name is empty.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidID is returned when a device id is negative.
	ErrInvalidID = errors.New("device: invalid id")

	// ErrInvalidKind is returned when a kind name or ordinal is not recognised.
	ErrInvalidKind = errors.New("device: invalid kind")

	// ErrInvalidPath is returned when a save path is empty.
	ErrInvalidPath = errors.New("device: invalid path")

	// ErrNilRegistry is returned when a nil registry is passed to Save or Encode.
	ErrNilRegistry = errors.New("device: nil registry")

	// ErrSnapshotNotFound is returned when loading from an empty snapshot store.
	ErrSnapshotNotFound = errors.New("device: snapshot not found")
)
