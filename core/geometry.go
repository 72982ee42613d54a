package core

import (
	"math"

	"github.com/signalsfoundry/iss-tracker/model"
)

// EarthRadiusKm is the mean Earth radius used for altitude (kilometres).
const EarthRadiusKm = 6371.0

// Vec3 is a Cartesian vector; position in km, velocity in km/s.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// HorizontalNorm returns the length of the projection onto the XY plane.
func (v Vec3) HorizontalNorm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// PositionOf returns the sample's position vector.
func PositionOf(sv model.StateVector) Vec3 {
	return Vec3{X: sv.X.Value, Y: sv.Y.Value, Z: sv.Z.Value}
}

// VelocityOf returns the sample's velocity vector.
func VelocityOf(sv model.StateVector) Vec3 {
	return Vec3{X: sv.XDot.Value, Y: sv.YDot.Value, Z: sv.ZDot.Value}
}

// SpeedOf returns the magnitude of the sample's velocity. The unit label is
// taken from Z_DOT alone; the feed reports all three velocity axes in the
// same unit and that is assumed here, not checked.
func SpeedOf(sv model.StateVector) model.Speed {
	return model.Speed{
		Epoch: sv.Epoch,
		Value: VelocityOf(sv).Norm(),
		Units: sv.ZDot.Units,
	}
}
