package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/iss-tracker/model"
)

// legacyDeltaSentinel is the fixed bound the legacy scan compares against.
const legacyDeltaSentinel = 9999 * time.Second

// NearestStrategy selects how FindClosest picks the epoch nearest to now.
type NearestStrategy int

const (
	// NearestAbsolute returns the sample with the smallest |now - epoch|.
	// Ties go to the earlier sample.
	NearestAbsolute NearestStrategy = iota
	// NearestLegacy reproduces the original service: it returns the last
	// sample whose signed delta now - epoch is below a fixed 9999 s bound.
	// The bound is never tightened, so any future-dated sample wins over
	// every earlier one.
	NearestLegacy
)

func (s NearestStrategy) String() string {
	switch s {
	case NearestAbsolute:
		return "absolute"
	case NearestLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("NearestStrategy(%d)", int(s))
	}
}

// ParseNearestStrategy accepts "absolute" (or "") and "legacy".
func ParseNearestStrategy(s string) (NearestStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "absolute":
		return NearestAbsolute, nil
	case "legacy":
		return NearestLegacy, nil
	default:
		return 0, fmt.Errorf("%w: unknown nearest strategy %q", ErrInvalidArgument, s)
	}
}

// FindClosest returns the sample nearest to now under the given strategy.
// It fails with ErrNoDataLoaded on an empty slice and with ErrMalformedEpoch
// if any epoch cannot be parsed.
func FindClosest(vectors []model.StateVector, now time.Time, strategy NearestStrategy) (model.StateVector, error) {
	if len(vectors) == 0 {
		return model.StateVector{}, ErrNoDataLoaded
	}
	now = now.UTC()

	if strategy == NearestLegacy {
		found := -1
		for i, sv := range vectors {
			t, err := EpochInstant(sv.Epoch)
			if err != nil {
				return model.StateVector{}, err
			}
			if now.Sub(t) < legacyDeltaSentinel {
				found = i
			}
		}
		if found < 0 {
			return model.StateVector{}, fmt.Errorf("%w: every epoch is more than %s old", ErrNoEpochNearNow, legacyDeltaSentinel)
		}
		return vectors[found], nil
	}

	best := -1
	var bestDelta time.Duration
	for i, sv := range vectors {
		t, err := EpochInstant(sv.Epoch)
		if err != nil {
			return model.StateVector{}, err
		}
		delta := now.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if best < 0 || delta < bestDelta {
			best, bestDelta = i, delta
		}
	}
	return vectors[best], nil
}
