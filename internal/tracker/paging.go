package tracker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/iss-tracker/core"
)

// Limit caps how many epochs ListEpochs returns. The zero value is NoLimit;
// LimitN(0) is a real limit that yields no rows.
type Limit struct {
	n       int
	bounded bool
}

// NoLimit returns every remaining epoch.
var NoLimit = Limit{}

// LimitN returns at most n epochs. A negative n means NoLimit, matching the
// clamping applied to query parameters.
func LimitN(n int) Limit {
	if n < 0 {
		return NoLimit
	}
	return Limit{n: n, bounded: true}
}

// Value returns the cap and whether one is set.
func (l Limit) Value() (int, bool) {
	return l.n, l.bounded
}

func (l Limit) String() string {
	if !l.bounded {
		return "none"
	}
	return strconv.Itoa(l.n)
}

// Page selects a window of epochs: skip Offset entries, then take up to Limit.
type Page struct {
	Offset int
	Limit  Limit
}

// ParsePage builds a Page from raw query values. Empty values mean "not
// given". Non-integers fail with core.ErrInvalidArgument; a negative offset
// becomes 0 and a negative limit becomes NoLimit.
func ParsePage(limitRaw, offsetRaw string) (Page, error) {
	var p Page

	if s := strings.TrimSpace(limitRaw); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, fmt.Errorf("%w: limit must be an integer, got %q", core.ErrInvalidArgument, limitRaw)
		}
		p.Limit = LimitN(n)
	}

	if s := strings.TrimSpace(offsetRaw); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, fmt.Errorf("%w: offset must be an integer, got %q", core.ErrInvalidArgument, offsetRaw)
		}
		p.Offset = max(n, 0)
	}

	return p, nil
}

// bounds returns the [start, end) slice bounds of p over n items.
func (p Page) bounds(n int) (int, int) {
	start := min(max(p.Offset, 0), n)
	end := n
	if limit, ok := p.Limit.Value(); ok && limit < end-start {
		end = start + limit
	}
	return start, end
}
