package tracker

import (
	"github.com/signalsfoundry/iss-tracker/kb"
	"github.com/signalsfoundry/iss-tracker/model"
)

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

// fiveSamples returns epochs 12:00 through 12:16 at four-minute spacing.
func fiveSamples() *model.Dataset {
	return &model.Dataset{
		Header:   map[string]string{"ORIGINATOR": "JSC"},
		Metadata: map[string]string{"OBJECT_NAME": "ISS"},
		Comments: []string{"", "test"},
		StateVectors: []model.StateVector{
			sample("2023-063T12:00:00.000Z", 1, 0, 0, 1, 0, 0),
			sample("2023-063T12:04:00.000Z", 0, 1, 0, 3, 4, 0),
			sample("2023-063T12:08:00.000Z", 0, 0, 1, 0, 0, 2),
			sample("2023-063T12:12:00.000Z", 6371, 0, 0, 0, 0, 0),
			sample("2023-063T12:16:00.000Z", -1, -1, -1, 1, 2, 2),
		},
	}
}

func loadedEngine(opts ...EngineOption) *Engine {
	e := NewEngine(kb.NewStore(), opts...)
	if err := e.Load(fiveSamples()); err != nil {
		panic(err)
	}
	return e
}
