package tracker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/signalsfoundry/iss-tracker/internal/logging"
	"github.com/signalsfoundry/iss-tracker/model"
)

// Source produces a complete dataset, typically by downloading the feed.
type Source interface {
	Fetch(ctx context.Context) (*model.Dataset, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*model.Dataset, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (*model.Dataset, error) { return f(ctx) }

// Refresher reloads the engine from a Source. Concurrent Refresh calls share
// a single fetch; a failed fetch leaves the current dataset untouched.
type Refresher struct {
	source Source
	engine *Engine
	log    logging.Logger
	group  singleflight.Group
}

// NewRefresher wires source into engine.
func NewRefresher(source Source, engine *Engine, log logging.Logger) *Refresher {
	if log == nil {
		log = logging.Noop()
	}
	return &Refresher{source: source, engine: engine, log: log}
}

// Refresh fetches and loads a new dataset, returning the number of state
// vectors loaded. The caller's context only bounds how long it waits; an
// in-flight fetch shared with other callers keeps running.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		return r.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

func (r *Refresher) refresh(ctx context.Context) (int, error) {
	log := logging.FromContext(ctx, r.log)
	start := time.Now()

	ds, err := r.source.Fetch(ctx)
	if err != nil {
		log.Error(ctx, "dataset refresh failed", logging.Err(err), logging.Duration("elapsed", time.Since(start)))
		return 0, fmt.Errorf("fetch dataset: %w", err)
	}
	if err := r.engine.Load(ds); err != nil {
		log.Error(ctx, "dataset rejected", logging.Err(err))
		return 0, fmt.Errorf("load dataset: %w", err)
	}

	log.Info(ctx, "dataset refreshed",
		logging.Int("state_vectors", len(ds.StateVectors)),
		logging.Int("comments", len(ds.Comments)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return len(ds.StateVectors), nil
}
