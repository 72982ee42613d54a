package core

import (
	"fmt"
	"math"
	"time"
	"unicode"
)

// minEpochDigits is the digit count of YYYY DDD HH MM SS fff.
const minEpochDigits = 16

// EpochTime holds the calendar fields of an epoch label such as
// "2023-063T12:00:00.000Z". Day-of-year replaces month and day.
type EpochTime struct {
	Year      int
	DayOfYear int
	Hour      int
	Minute    int
	Second    float64
}

// ParseEpoch extracts the digit characters of s in order and rebuilds the
// fixed-width fields from them: 4 year, 3 day-of-year, 2 hour, 2 minute,
// 2 second and 3 fractional digits. Separators are ignored entirely.
func ParseEpoch(s string) (EpochTime, error) {
	digits := make([]int, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		} else if unicode.IsDigit(r) {
			return EpochTime{}, fmt.Errorf("%w: %q contains non-ASCII digit %q", ErrMalformedEpoch, s, r)
		}
	}
	if len(digits) < minEpochDigits {
		return EpochTime{}, fmt.Errorf("%w: %q has %d digits, need %d", ErrMalformedEpoch, s, len(digits), minEpochDigits)
	}

	num := func(from, to int) int {
		n := 0
		for _, d := range digits[from:to] {
			n = n*10 + d
		}
		return n
	}

	et := EpochTime{
		Year:      num(0, 4),
		DayOfYear: num(4, 7),
		Hour:      num(7, 9),
		Minute:    num(9, 11),
		Second:    float64(num(11, 13)) + float64(num(13, 16))/1000,
	}
	if err := et.validate(); err != nil {
		return EpochTime{}, fmt.Errorf("%w: %q: %v", ErrMalformedEpoch, s, err)
	}
	return et, nil
}

func (e EpochTime) validate() error {
	daysInYear := 365
	if isLeap(e.Year) {
		daysInYear = 366
	}
	switch {
	case e.DayOfYear < 1 || e.DayOfYear > daysInYear:
		return fmt.Errorf("day-of-year %d outside 1..%d", e.DayOfYear, daysInYear)
	case e.Hour > 23:
		return fmt.Errorf("hour %d outside 0..23", e.Hour)
	case e.Minute > 59:
		return fmt.Errorf("minute %d outside 0..59", e.Minute)
	case e.Second >= 61:
		return fmt.Errorf("second %.3f outside 0..60", e.Second)
	}
	return nil
}

// Time converts the calendar fields to an absolute UTC instant. Feed epochs
// are UTC, so comparisons against time.Now() are free of zone skew.
func (e EpochTime) Time() time.Time {
	base := time.Date(e.Year, time.January, 1, e.Hour, e.Minute, 0, 0, time.UTC)
	ms := time.Duration(math.Round(e.Second*1000)) * time.Millisecond
	return base.AddDate(0, 0, e.DayOfYear-1).Add(ms)
}

// EpochInstant is ParseEpoch followed by Time.
func EpochInstant(s string) (time.Time, error) {
	et, err := ParseEpoch(s)
	if err != nil {
		return time.Time{}, err
	}
	return et.Time(), nil
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
