// Package tracker answers ephemeris queries against the loaded dataset.
package tracker

import (
	"context"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/kb"
	"github.com/signalsfoundry/iss-tracker/model"
	"github.com/signalsfoundry/iss-tracker/timectrl"
)

// Engine implements the query operations over a kb.Store. Every query takes
// one snapshot up front, so a concurrent Load or Clear never changes the
// data a query is looking at. Engine does not log or retry.
type Engine struct {
	store    *kb.Store
	resolver *core.GeoResolver
	clock    timectrl.Clock
	nearest  core.NearestStrategy
	frame    core.Frame
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithGeocoder sets the geocoder used by Locate and LocateNow.
func WithGeocoder(g core.Geocoder) EngineOption {
	return func(e *Engine) {
		e.resolver = core.NewGeoResolver(g)
	}
}

// WithClock overrides the clock used to resolve "now".
func WithClock(c timectrl.Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithNearestStrategy selects how the epoch nearest to now is chosen.
func WithNearestStrategy(s core.NearestStrategy) EngineOption {
	return func(e *Engine) {
		e.nearest = s
	}
}

// WithFrame sets the default frame for geodetic derivation.
func WithFrame(f core.Frame) EngineOption {
	return func(e *Engine) {
		e.frame = f
	}
}

// NewEngine builds an Engine over store.
func NewEngine(store *kb.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		resolver: core.NewGeoResolver(nil),
		clock:    timectrl.SystemClock{},
		nearest:  core.NearestAbsolute,
		frame:    core.FrameEmpirical,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Frame returns the engine's default geodetic frame.
func (e *Engine) Frame() core.Frame { return e.frame }

// NearestStrategy returns the configured nearest-epoch strategy.
func (e *Engine) NearestStrategy() core.NearestStrategy { return e.nearest }

// Load replaces the dataset; see kb.Store.Load.
func (e *Engine) Load(ds *model.Dataset) error {
	return e.store.Load(ds)
}

// Clear empties the dataset.
func (e *Engine) Clear() {
	e.store.Clear()
}

// IsLoaded reports whether a dataset is loaded.
func (e *Engine) IsLoaded() bool {
	return e.store.IsLoaded()
}

// ListAll returns every state vector in feed order.
func (e *Engine) ListAll() ([]model.StateVector, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.StateVectors(), nil
}

// ListEpochs returns the epoch labels selected by p.
func (e *Engine) ListEpochs(p Page) ([]string, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	epochs := snap.Epochs()
	start, end := p.bounds(len(epochs))
	return epochs[start:end], nil
}

// EpochAt returns the epoch label at index.
func (e *Engine) EpochAt(index int) (string, error) {
	sv, err := e.StateVectorAt(index)
	if err != nil {
		return "", err
	}
	return sv.Epoch, nil
}

// StateVectorAt returns the full sample at index.
func (e *Engine) StateVectorAt(index int) (model.StateVector, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return model.StateVector{}, err
	}
	return snap.At(index)
}

// Speed returns the velocity magnitude at index, in Z_DOT's units.
func (e *Engine) Speed(index int) (model.Speed, error) {
	sv, err := e.StateVectorAt(index)
	if err != nil {
		return model.Speed{}, err
	}
	return core.SpeedOf(sv), nil
}

// Position derives the geodetic position of the sample at index.
func (e *Engine) Position(index int, frame core.Frame) (model.GeodeticPosition, error) {
	sv, err := e.StateVectorAt(index)
	if err != nil {
		return model.GeodeticPosition{}, err
	}
	return core.DeriveGeodetic(sv, frame)
}

// PositionNow derives the geodetic position of the sample nearest to the
// clock's current time.
func (e *Engine) PositionNow(frame core.Frame) (model.GeodeticPosition, error) {
	sv, err := e.closestToNow()
	if err != nil {
		return model.GeodeticPosition{}, err
	}
	return core.DeriveGeodetic(sv, frame)
}

// Locate derives the position at index and resolves it to a place.
func (e *Engine) Locate(ctx context.Context, index int, frame core.Frame) (model.Location, error) {
	pos, err := e.Position(index, frame)
	if err != nil {
		return model.Location{}, err
	}
	return e.resolve(ctx, pos)
}

// LocateNow is Locate for the sample nearest to now.
func (e *Engine) LocateNow(ctx context.Context, frame core.Frame) (model.Location, error) {
	pos, err := e.PositionNow(frame)
	if err != nil {
		return model.Location{}, err
	}
	return e.resolve(ctx, pos)
}

// Comments returns the dataset comments; empty feed comments are "".
func (e *Engine) Comments() ([]string, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Comments(), nil
}

// Header returns a copy of the dataset header block.
func (e *Engine) Header() (map[string]string, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Header(), nil
}

// Metadata returns a copy of the dataset metadata block.
func (e *Engine) Metadata() (map[string]string, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Metadata(), nil
}

func (e *Engine) closestToNow() (model.StateVector, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return model.StateVector{}, err
	}
	return core.FindClosest(snap.StateVectors(), e.clock.Now(), e.nearest)
}

func (e *Engine) resolve(ctx context.Context, pos model.GeodeticPosition) (model.Location, error) {
	place, err := e.resolver.ResolvePlace(ctx, pos.LatitudeDeg, pos.LongitudeDeg)
	if err != nil {
		return model.Location{}, err
	}
	return model.Location{Position: pos, Place: place}, nil
}
