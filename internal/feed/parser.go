package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/iss-tracker/model"
)

// ErrMalformedFeed indicates the document could not be turned into a Dataset.
var ErrMalformedFeed = errors.New("malformed ephemeris feed")

// XML structures matching the CCSDS OEM (NDM/XML) layout published for the ISS.

type xmlNDM struct {
	XMLName xml.Name `xml:"ndm"`
	OEM     *xmlOEM  `xml:"oem"`
}

type xmlOEM struct {
	Header   xmlBlock     `xml:"header"`
	Segments []xmlSegment `xml:"body>segment"`
}

// xmlBlock captures every child element of header/metadata as a flat list.
type xmlBlock struct {
	Fields []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlSegment struct {
	Metadata xmlBlock `xml:"metadata"`
	Data     xmlData  `xml:"data"`
}

type xmlData struct {
	Comments     []string         `xml:"COMMENT"`
	StateVectors []xmlStateVector `xml:"stateVector"`
}

type xmlStateVector struct {
	Epoch *string         `xml:"EPOCH"`
	X     *xmlMeasurement `xml:"X"`
	Y     *xmlMeasurement `xml:"Y"`
	Z     *xmlMeasurement `xml:"Z"`
	XDot  *xmlMeasurement `xml:"X_DOT"`
	YDot  *xmlMeasurement `xml:"Y_DOT"`
	ZDot  *xmlMeasurement `xml:"Z_DOT"`
}

type xmlMeasurement struct {
	Units string `xml:"units,attr"`
	Value string `xml:",chardata"`
}

// Parse decodes an OEM XML document. Only the first segment is used; the
// ISS feed publishes exactly one. Any state vector with a missing or
// non-numeric component rejects the whole document.
func Parse(data []byte) (*model.Dataset, error) {
	var raw xmlNDM
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshal OEM XML: %v", ErrMalformedFeed, err)
	}
	if raw.OEM == nil {
		return nil, fmt.Errorf("%w: missing <oem> element", ErrMalformedFeed)
	}
	if len(raw.OEM.Segments) == 0 {
		return nil, fmt.Errorf("%w: missing <body><segment>", ErrMalformedFeed)
	}
	seg := raw.OEM.Segments[0]

	ds := &model.Dataset{
		Header:       raw.OEM.Header.toMap(),
		Metadata:     seg.Metadata.toMap(),
		Comments:     make([]string, 0, len(seg.Data.Comments)),
		StateVectors: make([]model.StateVector, 0, len(seg.Data.StateVectors)),
	}
	for _, c := range seg.Data.Comments {
		ds.Comments = append(ds.Comments, strings.TrimSpace(c))
	}
	for i, xsv := range seg.Data.StateVectors {
		sv, err := xsv.toModel()
		if err != nil {
			return nil, fmt.Errorf("%w: stateVector %d: %v", ErrMalformedFeed, i, err)
		}
		ds.StateVectors = append(ds.StateVectors, sv)
	}
	return ds, nil
}

// toMap flattens child elements into key/value pairs. Repeated keys (such
// as COMMENT) are joined with newlines.
func (b xmlBlock) toMap() map[string]string {
	out := make(map[string]string, len(b.Fields))
	for _, f := range b.Fields {
		key := f.XMLName.Local
		val := strings.TrimSpace(f.Value)
		if prev, ok := out[key]; ok {
			out[key] = prev + "\n" + val
			continue
		}
		out[key] = val
	}
	return out
}

func (x xmlStateVector) toModel() (model.StateVector, error) {
	if x.Epoch == nil || strings.TrimSpace(*x.Epoch) == "" {
		return model.StateVector{}, errors.New("missing EPOCH")
	}
	sv := model.StateVector{Epoch: strings.TrimSpace(*x.Epoch)}

	fields := []struct {
		name string
		src  *xmlMeasurement
		dst  *model.Measurement
	}{
		{"X", x.X, &sv.X},
		{"Y", x.Y, &sv.Y},
		{"Z", x.Z, &sv.Z},
		{"X_DOT", x.XDot, &sv.XDot},
		{"Y_DOT", x.YDot, &sv.YDot},
		{"Z_DOT", x.ZDot, &sv.ZDot},
	}
	for _, f := range fields {
		if f.src == nil {
			return model.StateVector{}, fmt.Errorf("epoch %s: missing %s", sv.Epoch, f.name)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(f.src.Value), 64)
		if err != nil {
			return model.StateVector{}, fmt.Errorf("epoch %s: %s: %v", sv.Epoch, f.name, err)
		}
		*f.dst = model.M(v, f.src.Units)
	}
	return sv, nil
}
