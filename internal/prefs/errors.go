package prefs

import "errors"

var (
	// ErrUnknownKey is returned for a storage key that no descriptor declares.
	ErrUnknownKey = errors.New("unknown preference key")
	// ErrTypeMismatch is returned when a raw value's type does not match the
	// descriptor's storage type.
	ErrTypeMismatch = errors.New("preference type mismatch")
	// ErrInvalidValue is returned when a value has the right type but is not
	// acceptable, e.g. an enum name outside the enum.
	ErrInvalidValue = errors.New("invalid preference value")
	// ErrNotStorable is returned for action descriptors, which hold no value.
	ErrNotStorable = errors.New("preference holds no value")
	// ErrUnsupportedFormat is returned by Import for envelopes it cannot read.
	ErrUnsupportedFormat = errors.New("unsupported config format")
	// ErrUnknownGesture is returned for an id outside the gesture catalog.
	ErrUnknownGesture = errors.New("unknown gesture")
)
