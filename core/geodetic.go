package core

import (
	"fmt"
	"math"
	"strings"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/iss-tracker/model"
)

// longitudeCorrectionDeg aligns the feed's inertial frame with the
// hour-angle approximation below. It is empirical and must stay as is.
const longitudeCorrectionDeg = 32.0

// Frame selects how inertial positions are rotated onto the Earth.
type Frame int

const (
	// FrameEmpirical rotates by the epoch's hour angle plus a fixed
	// correction. This is the service's historical behaviour.
	FrameEmpirical Frame = iota
	// FrameSidereal rotates by Greenwich mean sidereal time and uses the
	// WGS-84 ellipsoid for latitude and altitude.
	FrameSidereal
)

func (f Frame) String() string {
	switch f {
	case FrameEmpirical:
		return "empirical"
	case FrameSidereal:
		return "sidereal"
	default:
		return fmt.Sprintf("Frame(%d)", int(f))
	}
}

// ParseFrame accepts "empirical" (or "") and "sidereal".
func ParseFrame(s string) (Frame, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "empirical":
		return FrameEmpirical, nil
	case "sidereal", "gmst":
		return FrameSidereal, nil
	default:
		return 0, fmt.Errorf("%w: unknown frame %q", ErrInvalidArgument, s)
	}
}

// DeriveGeodetic converts a state vector to latitude, longitude and
// altitude using the given frame.
func DeriveGeodetic(sv model.StateVector, frame Frame) (model.GeodeticPosition, error) {
	switch frame {
	case FrameSidereal:
		return DeriveGeodeticSidereal(sv)
	default:
		return DeriveGeodeticEmpirical(sv)
	}
}

// DeriveGeodeticEmpirical treats the Earth as a sphere of EarthRadiusKm and
// approximates Earth rotation from the epoch's hour and minute:
//
//	lon = atan2(y, x) - ((hour-12) + minute/60) * 15 + 32
func DeriveGeodeticEmpirical(sv model.StateVector) (model.GeodeticPosition, error) {
	et, err := ParseEpoch(sv.Epoch)
	if err != nil {
		return model.GeodeticPosition{}, err
	}
	pos := PositionOf(sv)

	lat := degrees(math.Atan2(pos.Z, pos.HorizontalNorm()))
	hourAngle := (float64(et.Hour) - 12) + float64(et.Minute)/60
	lon := degrees(math.Atan2(pos.Y, pos.X)) - hourAngle*(360.0/24.0) + longitudeCorrectionDeg

	return model.GeodeticPosition{
		Epoch:        sv.Epoch,
		LatitudeDeg:  lat,
		LongitudeDeg: NormalizeLongitude(lon),
		AltitudeKm:   pos.Norm() - EarthRadiusKm,
	}, nil
}

// DeriveGeodeticSidereal rotates the inertial position by GMST at the
// sample's epoch and projects it onto the WGS-84 ellipsoid.
func DeriveGeodeticSidereal(sv model.StateVector) (model.GeodeticPosition, error) {
	et, err := ParseEpoch(sv.Epoch)
	if err != nil {
		return model.GeodeticPosition{}, err
	}
	t := et.Time()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	jd := satellite.JDay(year, int(month), day, hour, minute, sec)
	// JDay works in whole seconds; fold the milliseconds back in.
	jd += float64(t.Nanosecond()) / 1e9 / 86400.0
	gmst := satellite.ThetaG_JD(jd)

	pos := PositionOf(sv)
	alt, _, ll := satellite.ECIToLLA(satellite.Vector3{X: pos.X, Y: pos.Y, Z: pos.Z}, gmst)

	return model.GeodeticPosition{
		Epoch:        sv.Epoch,
		LatitudeDeg:  degrees(ll.Latitude),
		LongitudeDeg: NormalizeLongitude(degrees(ll.Longitude)),
		AltitudeKm:   alt,
	}, nil
}

// NormalizeLongitude folds lon into [-180, 180] by whole turns. Exactly
// ±180 is left as is.
func NormalizeLongitude(lon float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return lon
	}
	for math.Abs(lon) > 180 {
		if lon > 180 {
			lon -= 360
		} else {
			lon += 360
		}
	}
	return lon
}

func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
