package core

import "errors"

var (
	// ErrNoDataLoaded indicates a query ran against an empty or cleared store.
	ErrNoDataLoaded = errors.New("no ephemeris data loaded")
	// ErrInvalidArgument indicates a non-numeric or structurally invalid query parameter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIndexOutOfRange indicates an epoch index outside [0, count).
	ErrIndexOutOfRange = errors.New("epoch index out of range")
	// ErrMalformedEpoch indicates an epoch string that cannot be parsed.
	ErrMalformedEpoch = errors.New("malformed epoch")
	// ErrGeocoding indicates the external geocoder failed or timed out.
	ErrGeocoding = errors.New("geocoding failed")
	// ErrNoEpochNearNow indicates the legacy nearest-epoch scan found no
	// sample under its fixed delta sentinel.
	ErrNoEpochNearNow = errors.New("no epoch near current time")
)
