package device

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxNameLen is the maximum stored length of a device name in bytes.
// Longer names are truncated by Add, never rejected.
const MaxNameLen = 49

// Kind is the device category.
//
// The integer values are part of the flat-file format and must not be
// reordered.
type Kind int

// Kind constants.
const (
	KindLight      Kind = 0
	KindThermostat Kind = 1
	KindCamera     Kind = 2
)

// AllKinds returns all valid kind values in ordinal order.
func AllKinds() []Kind {
	return []Kind{KindLight, KindThermostat, KindCamera}
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= KindLight && k <= KindCamera
}

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindLight:
		return "light"
	case KindThermostat:
		return "thermostat"
	case KindCamera:
		return "camera"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind accepts a kind name ("light", "Thermostat", ...) or its ordinal ("0".."2").
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, k := range AllKinds() {
		if s == k.String() {
			return k, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Kind(n).Valid() {
		return Kind(n), nil
	}
	return KindLight, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Device is a single registry record.
//
// Attribute is an uninterpreted integer payload whose meaning depends on the
// kind (brightness for a light, setpoint for a thermostat).
type Device struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	On        bool   `json:"on"`
	Attribute int    `json:"attribute"`
}

// StateLabel returns "ON" or "OFF".
func (d Device) StateLabel() string {
	return StateLabel(d.On)
}

// StateLabel renders an on/off state the way the listing prints it.
func StateLabel(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Op identifies the registry mutation reported to an Observer.
type Op string

// Op constants.
const (
	OpAdded        Op = "added"
	OpRemoved      Op = "removed"
	OpStateSet     Op = "state_set"
	OpAttributeSet Op = "attribute_set"
)

// Change describes a successful registry mutation.
// Device holds the record as it is after the change (or as it was, for OpRemoved).
type Change struct {
	Op     Op
	Device Device
}
