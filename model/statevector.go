package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrIncompleteStateVector is returned by Validate when a sample is missing
// its epoch or one of its six Cartesian components.
var ErrIncompleteStateVector = errors.New("incomplete state vector")

// Measurement is a scalar value together with the unit label the feed
// attached to it (e.g. "km", "km/s"). Units are passed through untouched.
type Measurement struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
	// Present is false when the component was absent from the source sample.
	Present bool `json:"-"`
}

// M builds a present Measurement.
func M(value float64, units string) Measurement {
	return Measurement{Value: value, Units: units, Present: true}
}

// StateVector is one ephemeris sample: position (km) and velocity (km/s)
// at an epoch of the form YYYY-DDDTHH:MM:SS.fffZ.
type StateVector struct {
	Epoch string `json:"epoch"`

	X Measurement `json:"x"`
	Y Measurement `json:"y"`
	Z Measurement `json:"z"`

	XDot Measurement `json:"x_dot"`
	YDot Measurement `json:"y_dot"`
	ZDot Measurement `json:"z_dot"`
}

// Validate reports whether the epoch and all six components are present
// and finite.
func (sv StateVector) Validate() error {
	if sv.Epoch == "" {
		return fmt.Errorf("%w: missing EPOCH", ErrIncompleteStateVector)
	}
	components := []struct {
		name string
		m    Measurement
	}{
		{"X", sv.X}, {"Y", sv.Y}, {"Z", sv.Z},
		{"X_DOT", sv.XDot}, {"Y_DOT", sv.YDot}, {"Z_DOT", sv.ZDot},
	}
	for _, c := range components {
		if !c.m.Present {
			return fmt.Errorf("%w: epoch %s missing %s", ErrIncompleteStateVector, sv.Epoch, c.name)
		}
		if math.IsNaN(c.m.Value) || math.IsInf(c.m.Value, 0) {
			return fmt.Errorf("%w: epoch %s has non-finite %s", ErrIncompleteStateVector, sv.Epoch, c.name)
		}
	}
	return nil
}
