package model

// GeodeticPosition is derived on demand from a StateVector and never stored.
type GeodeticPosition struct {
	Epoch        string  `json:"epoch"`
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	AltitudeKm   float64 `json:"altitude_km"`
}

// Speed is the magnitude of a sample's velocity vector.
type Speed struct {
	Epoch string  `json:"epoch"`
	Value float64 `json:"speed"`
	Units string  `json:"units"`
}

// Location pairs a geodetic position with the place the geocoder resolved
// for it. Place is "ocean" when the geocoder found nothing.
type Location struct {
	Position GeodeticPosition `json:"position"`
	Place    string           `json:"place"`
}
