package core

import (
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/iss-tracker/model"
)

func fourMinuteSeries() []model.StateVector {
	return []model.StateVector{
		sample("2023-063T12:00:00.000Z", 1, 0, 0, 0, 0, 0),
		sample("2023-063T12:04:00.000Z", 2, 0, 0, 0, 0, 0),
		sample("2023-063T12:08:00.000Z", 3, 0, 0, 0, 0, 0),
		sample("2023-063T12:12:00.000Z", 4, 0, 0, 0, 0, 0),
	}
}

func TestFindClosestAbsolute(t *testing.T) {
	series := fourMinuteSeries()
	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{"inside range, nearer to later", time.Date(2023, 3, 4, 12, 7, 0, 0, time.UTC), "2023-063T12:08:00.000Z"},
		{"inside range, nearer to earlier", time.Date(2023, 3, 4, 12, 5, 0, 0, time.UTC), "2023-063T12:04:00.000Z"},
		{"before all samples", time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), "2023-063T12:00:00.000Z"},
		{"after all samples", time.Date(2023, 3, 9, 0, 0, 0, 0, time.UTC), "2023-063T12:12:00.000Z"},
		{"tie goes to earlier", time.Date(2023, 3, 4, 12, 2, 0, 0, time.UTC), "2023-063T12:00:00.000Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FindClosest(series, tc.now, NearestAbsolute)
			if err != nil {
				t.Fatalf("FindClosest error: %v", err)
			}
			if got.Epoch != tc.want {
				t.Fatalf("FindClosest = %s, want %s", got.Epoch, tc.want)
			}
		})
	}
}

func TestFindClosestComparesInUTC(t *testing.T) {
	series := fourMinuteSeries()
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2023, 3, 4, 17, 8, 30, 0, loc) // 12:08:30 UTC
	got, err := FindClosest(series, now, NearestAbsolute)
	if err != nil {
		t.Fatalf("FindClosest error: %v", err)
	}
	if got.Epoch != "2023-063T12:08:00.000Z" {
		t.Fatalf("FindClosest = %s, want 12:08", got.Epoch)
	}
}

func TestFindClosestLegacyReturnsLastUnderSentinel(t *testing.T) {
	series := fourMinuteSeries()

	// now sits between samples: every sample has signed delta < 9999s, so
	// the legacy scan keeps overwriting and ends on the last one.
	now := time.Date(2023, 3, 4, 12, 5, 0, 0, time.UTC)
	got, err := FindClosest(series, now, NearestLegacy)
	if err != nil {
		t.Fatalf("FindClosest(legacy) error: %v", err)
	}
	if got.Epoch != "2023-063T12:12:00.000Z" {
		t.Fatalf("FindClosest(legacy) = %s, want last sample", got.Epoch)
	}
}

func TestFindClosestLegacyTooOld(t *testing.T) {
	series := fourMinuteSeries()
	now := time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC)
	if _, err := FindClosest(series, now, NearestLegacy); !errors.Is(err, ErrNoEpochNearNow) {
		t.Fatalf("err = %v, want ErrNoEpochNearNow", err)
	}
	// The absolute scan still answers.
	got, err := FindClosest(series, now, NearestAbsolute)
	if err != nil || got.Epoch != "2023-063T12:12:00.000Z" {
		t.Fatalf("FindClosest(absolute) = %s, %v; want last sample", got.Epoch, err)
	}
}

func TestFindClosestEmpty(t *testing.T) {
	for _, s := range []NearestStrategy{NearestAbsolute, NearestLegacy} {
		if _, err := FindClosest(nil, time.Now(), s); !errors.Is(err, ErrNoDataLoaded) {
			t.Fatalf("%s: err = %v, want ErrNoDataLoaded", s, err)
		}
	}
}

func TestFindClosestMalformedEpoch(t *testing.T) {
	series := append(fourMinuteSeries(), sample("garbage", 0, 0, 0, 0, 0, 0))
	if _, err := FindClosest(series, time.Now(), NearestAbsolute); !errors.Is(err, ErrMalformedEpoch) {
		t.Fatalf("err = %v, want ErrMalformedEpoch", err)
	}
}

func TestParseNearestStrategy(t *testing.T) {
	if s, err := ParseNearestStrategy("LEGACY"); err != nil || s != NearestLegacy {
		t.Fatalf("ParseNearestStrategy(LEGACY) = %v, %v", s, err)
	}
	if s, err := ParseNearestStrategy(""); err != nil || s != NearestAbsolute {
		t.Fatalf("ParseNearestStrategy(\"\") = %v, %v", s, err)
	}
	if _, err := ParseNearestStrategy("closest"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}
