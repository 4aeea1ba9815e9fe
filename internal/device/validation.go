package device

import (
	"fmt"
	"unicode/utf8"
)

// ValidateName checks that a device name is present.
// Length is not validated here; over-long names are truncated by TruncateName.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	return nil
}

// ValidateID checks that a device id is non-negative.
func ValidateID(id int) error {
	if id < 0 {
		return fmt.Errorf("%w: id %d is negative", ErrInvalidID, id)
	}
	return nil
}

// ValidateKind checks that kind is one of the defined kinds.
func ValidateKind(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}
	return nil
}

// TruncateName cuts name to at most MaxNameLen bytes.
// A multi-byte rune straddling the limit is dropped entirely so the result
// stays valid UTF-8.
func TruncateName(name string) string {
	if len(name) <= MaxNameLen {
		return name
	}
	cut := MaxNameLen
	for cut > MaxNameLen-utf8.UTFMax && !utf8.RuneStart(name[cut]) {
		cut--
	}
	if !utf8.RuneStart(name[cut]) {
		// Not UTF-8 text at all; fall back to a plain byte cut.
		cut = MaxNameLen
	}
	return name[:cut]
}
