// Package kb holds the currently loaded ephemeris dataset.
package kb

import (
	"fmt"
	"maps"
	"sync"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/model"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventLoaded EventType = iota
	EventCleared
)

func (e EventType) String() string {
	switch e {
	case EventLoaded:
		return "loaded"
	case EventCleared:
		return "cleared"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// Event is emitted to subscribers after a Load or Clear.
type Event struct {
	Type         EventType
	StateVectors int
	Comments     int
}

// MetricsRecorder receives dataset sizes after every mutation.
type MetricsRecorder interface {
	SetDatasetCounts(stateVectors, comments int, loaded bool)
}

// Option customises Store construction.
type Option func(*Store)

// WithMetricsRecorder attaches an optional recorder for dataset gauges.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Store is a thread-safe holder for a single ephemeris dataset.
//
// The dataset is never modified in place: Load swaps in a private deep copy
// and Clear drops the reference, so a Snapshot taken by a reader stays
// consistent for as long as the reader holds it.
type Store struct {
	mu sync.RWMutex

	current *model.Dataset

	metrics MetricsRecorder
	subs    map[int]func(Event)
	nextSub int
}

// NewStore constructs an empty (unloaded) store.
func NewStore(opts ...Option) *Store {
	s := &Store{subs: make(map[int]func(Event))}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.recordLocked()
	return s
}

// Load validates every state vector in ds and, only if all are valid,
// replaces the current dataset with a copy of ds. On error the store is
// left untouched.
func (s *Store) Load(ds *model.Dataset) error {
	if ds == nil {
		return fmt.Errorf("%w: nil dataset", core.ErrInvalidArgument)
	}
	for i, sv := range ds.StateVectors {
		if err := sv.Validate(); err != nil {
			return fmt.Errorf("state vector %d: %w", i, err)
		}
		if _, err := core.ParseEpoch(sv.Epoch); err != nil {
			return fmt.Errorf("state vector %d: %w", i, err)
		}
	}

	next := ds.Clone()
	if next.Header == nil {
		next.Header = map[string]string{}
	}
	if next.Metadata == nil {
		next.Metadata = map[string]string{}
	}

	s.mu.Lock()
	s.current = next
	s.recordLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, Event{Type: EventLoaded, StateVectors: len(next.StateVectors), Comments: len(next.Comments)})
	return nil
}

// Clear empties the store. Subsequent snapshots fail with core.ErrNoDataLoaded
// until the next Load.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.recordLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, Event{Type: EventCleared})
}

// IsLoaded reports whether a dataset is currently held.
func (s *Store) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Snapshot returns a read-only view of the current dataset, or
// core.ErrNoDataLoaded when nothing is loaded.
func (s *Store) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, core.ErrNoDataLoaded
	}
	return &Snapshot{ds: s.current}, nil
}

// Subscribe registers a callback for store events. It returns an unsubscribe function.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) subscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (s *Store) recordLocked() {
	if s.metrics == nil {
		return
	}
	if s.current == nil {
		s.metrics.SetDatasetCounts(0, 0, false)
		return
	}
	s.metrics.SetDatasetCounts(len(s.current.StateVectors), len(s.current.Comments), true)
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		if fn != nil {
			fn(ev)
		}
	}
}

// Snapshot is an immutable view of one loaded dataset. Every accessor
// returns a copy; nothing a caller does to a result reaches the store.
type Snapshot struct {
	ds *model.Dataset
}

// Len returns the number of state vectors.
func (s *Snapshot) Len() int {
	return len(s.ds.StateVectors)
}

// At returns the state vector at index i, or core.ErrIndexOutOfRange.
func (s *Snapshot) At(i int) (model.StateVector, error) {
	if i < 0 || i >= len(s.ds.StateVectors) {
		return model.StateVector{}, fmt.Errorf("%w: index %d not in [0, %d)", core.ErrIndexOutOfRange, i, len(s.ds.StateVectors))
	}
	return s.ds.StateVectors[i], nil
}

// StateVectors returns a copy of all state vectors in feed order.
func (s *Snapshot) StateVectors() []model.StateVector {
	return append([]model.StateVector(nil), s.ds.StateVectors...)
}

// Epochs returns the epoch labels in feed order.
func (s *Snapshot) Epochs() []string {
	out := make([]string, len(s.ds.StateVectors))
	for i, sv := range s.ds.StateVectors {
		out[i] = sv.Epoch
	}
	return out
}

// Comments returns a copy of the comment lines.
func (s *Snapshot) Comments() []string {
	return append([]string{}, s.ds.Comments...)
}

// Header returns a copy of the header block.
func (s *Snapshot) Header() map[string]string {
	return maps.Clone(s.ds.Header)
}

// Metadata returns a copy of the metadata block.
func (s *Snapshot) Metadata() map[string]string {
	return maps.Clone(s.ds.Metadata)
}
