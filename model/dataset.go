package model

import "maps"

// Dataset is one complete ephemeris document as delivered by the feed.
// Header and Metadata are opaque key/value blocks passed through to callers.
// StateVectors keep the feed's order, which is chronological.
type Dataset struct {
	Header       map[string]string
	Metadata     map[string]string
	Comments     []string
	StateVectors []StateVector
}

// Clone returns a deep copy of d. A nil Dataset clones to nil.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	return &Dataset{
		Header:       maps.Clone(d.Header),
		Metadata:     maps.Clone(d.Metadata),
		Comments:     append([]string(nil), d.Comments...),
		StateVectors: append([]StateVector(nil), d.StateVectors...),
	}
}
