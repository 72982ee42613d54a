package core

import (
	"context"
	"errors"
	"fmt"
)

// OceanPlace is reported when the geocoder has no match for a position.
const OceanPlace = "ocean"

// Geocoder turns a latitude/longitude pair into a place description.
// found is false when the provider has no match (e.g. open ocean).
type Geocoder interface {
	Reverse(ctx context.Context, latDeg, lonDeg float64) (place string, found bool, err error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, latDeg, lonDeg float64) (string, bool, error)

// Reverse calls f.
func (f GeocoderFunc) Reverse(ctx context.Context, latDeg, lonDeg float64) (string, bool, error) {
	return f(ctx, latDeg, lonDeg)
}

// GeocodingError wraps a provider failure. It matches ErrGeocoding with
// errors.Is as well as the underlying provider error.
type GeocodingError struct {
	Message string
	Err     error
}

func (e *GeocodingError) Error() string {
	if e.Message == "" {
		return ErrGeocoding.Error()
	}
	return fmt.Sprintf("%s: %s", ErrGeocoding, e.Message)
}

// Unwrap exposes both the ErrGeocoding kind and the provider error.
func (e *GeocodingError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGeocoding}
	}
	return []error{ErrGeocoding, e.Err}
}

// GeoResolver maps positions to places through an injected Geocoder.
type GeoResolver struct {
	geocoder Geocoder
}

// NewGeoResolver wraps g. A nil g makes every lookup fail with a GeocodingError.
func NewGeoResolver(g Geocoder) *GeoResolver {
	return &GeoResolver{geocoder: g}
}

// ResolvePlace returns the provider's description of (lat, lon), OceanPlace
// when there is no match, or a *GeocodingError when the call fails.
func (r *GeoResolver) ResolvePlace(ctx context.Context, latDeg, lonDeg float64) (string, error) {
	if r == nil || r.geocoder == nil {
		return "", &GeocodingError{Message: "no geocoder configured"}
	}
	place, found, err := r.geocoder.Reverse(ctx, latDeg, lonDeg)
	if err != nil {
		var gerr *GeocodingError
		if errors.As(err, &gerr) {
			return "", gerr
		}
		return "", &GeocodingError{Message: err.Error(), Err: err}
	}
	if !found || place == "" {
		return OceanPlace, nil
	}
	return place, nil
}
