package core

import "github.com/signalsfoundry/iss-tracker/model"

func sample(epoch string, x, y, z, vx, vy, vz float64) model.StateVector {
	return model.StateVector{
		Epoch: epoch,
		X:     model.M(x, "km"),
		Y:     model.M(y, "km"),
		Z:     model.M(z, "km"),
		XDot:  model.M(vx, "km/s"),
		YDot:  model.M(vy, "km/s"),
		ZDot:  model.M(vz, "km/s"),
	}
}
