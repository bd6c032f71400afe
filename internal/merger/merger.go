// Package merger implements the buildcatalog run: load a catalog, append a
// batch of new building definitions, and save the result.
//
// A run is sequential and writes nothing until every check has passed, so a
// failed run leaves the destination exactly as it was. When the store
// implements [catalog.Locker] the destination is locked once the source has
// been read, and an in-place merge reads the source again under the lock.
package merger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/buildcatalog/internal/building"
	"github.com/MrWong99/buildcatalog/internal/catalog"
	"github.com/MrWong99/buildcatalog/internal/observe"
)

// Request describes one merge run.
type Request struct {
	// Source names the catalog to load.
	Source string

	// Destination names the catalog to write. Empty means Source.
	Destination string

	// Additions are appended to the loaded catalog in the order given.
	Additions []building.Definition

	// DryRun performs every step except the final save.
	DryRun bool
}

func (r Request) destination() string {
	if r.Destination == "" {
		return r.Source
	}
	return r.Destination
}

// Result summarises a successful run.
type Result struct {
	// Added is the number of definitions appended.
	Added int

	// Total is the number of definitions in the merged catalog.
	Total int

	// Dangling lists prerequisites of the merged catalog that name unknown ids.
	Dangling []catalog.Reference

	// DryRun reports whether the save was skipped.
	DryRun bool
}

// String renders the one-line summary printed after a run.
func (r Result) String() string {
	return fmt.Sprintf("Added %d buildings. Total now: %d", r.Added, r.Total)
}

// Merger runs merges against a [catalog.Store].
type Merger struct {
	store   catalog.Store
	metrics *observe.Metrics
	backend string
}

// Option configures a [Merger].
type Option func(*Merger)

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(mg *Merger) { mg.metrics = m }
}

// WithBackend sets the backend name attached to store metrics. Default: "file".
func WithBackend(name string) Option {
	return func(mg *Merger) { mg.backend = name }
}

// New returns a Merger that reads and writes catalogs through store.
func New(store catalog.Store, opts ...Option) *Merger {
	m := &Merger{store: store, backend: "file"}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Run loads req.Source, appends req.Additions and saves the merged catalog to
// the destination.
//
// Errors wrap the catalog sentinels: [catalog.ErrSchema] for invalid
// additions, [catalog.ErrNotFound], [catalog.ErrParse] or [catalog.ErrSchema]
// for the source, [catalog.ErrDuplicateID] for id collisions,
// [catalog.ErrWrite] for the save and [catalog.ErrLocked] when another run
// holds the destination.
func (m *Merger) Run(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	dest := req.destination()
	ctx, span := observe.StartSpan(ctx, "merger.Run", trace.WithAttributes(
		attribute.String("catalog.source", req.Source),
		attribute.String("catalog.destination", dest),
		attribute.Int("catalog.additions", len(req.Additions)),
		attribute.Bool("catalog.dry_run", req.DryRun),
	))
	defer func() {
		m.metrics.RecordRun(ctx, time.Since(start).Seconds(), err)
		observe.EndSpan(span, err)
	}()

	log := observe.Logger(ctx)

	if err := validateAdditions(ctx, req.Additions); err != nil {
		return Result{}, err
	}

	// The source is read before anything is written, so a missing or broken
	// source fails without leaving a lock behind.
	current, err := m.load(ctx, req.Source)
	if err != nil {
		return Result{}, fmt.Errorf("merger: %w", err)
	}

	if locker, ok := m.store.(catalog.Locker); ok && !req.DryRun {
		var unlock func() error
		if unlock, err = locker.Lock(ctx, dest); err != nil {
			return Result{}, fmt.Errorf("merger: %w", err)
		}
		defer func() {
			if uerr := unlock(); uerr != nil && err == nil {
				err = fmt.Errorf("merger: unlock %q: %w", dest, uerr)
			}
		}()
		if dest == req.Source {
			// Another run may have saved between the first read and the lock.
			if current, err = m.load(ctx, req.Source); err != nil {
				return Result{}, fmt.Errorf("merger: %w", err)
			}
		}
	}

	merged, err := catalog.Merge(current, req.Additions)
	if err != nil {
		return Result{}, fmt.Errorf("merger: merge into %q: %w", req.Source, err)
	}

	dangling := catalog.DanglingRequirements(merged)
	for _, ref := range dangling {
		log.Warn("building requires an unknown building",
			"building", ref.From,
			"requires", ref.Missing,
			"did_you_mean", ref.Suggestions,
		)
	}
	if len(dangling) > 0 {
		m.metrics.DanglingRequirements.Add(ctx, int64(len(dangling)))
	}

	res = Result{
		Added:    len(req.Additions),
		Total:    merged.Len(),
		Dangling: dangling,
		DryRun:   req.DryRun,
	}

	if req.DryRun {
		log.Info("dry run, catalog not written", "destination", dest, "added", res.Added, "total", res.Total)
		return res, nil
	}

	if err := m.save(ctx, dest, merged); err != nil {
		return Result{}, fmt.Errorf("merger: %w", err)
	}

	m.metrics.BuildingsAdded.Add(ctx, int64(res.Added))
	m.metrics.CatalogSize.Record(ctx, int64(res.Total))
	log.Info("catalog written", "destination", dest, "added", res.Added, "total", res.Total)
	return res, nil
}

func (m *Merger) load(ctx context.Context, name string) (_ *catalog.Catalog, err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "store.Load", trace.WithAttributes(
		attribute.String("catalog.name", name),
		attribute.String("store.backend", m.backend),
	))
	defer func() {
		m.metrics.RecordStoreOp(ctx, "load", m.backend, time.Since(start).Seconds(), err)
		observe.EndSpan(span, err)
	}()
	return m.store.Load(ctx, name)
}

func (m *Merger) save(ctx context.Context, name string, c *catalog.Catalog) (err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "store.Save", trace.WithAttributes(
		attribute.String("catalog.name", name),
		attribute.String("store.backend", m.backend),
		attribute.Int("catalog.size", c.Len()),
	))
	defer func() {
		m.metrics.RecordStoreOp(ctx, "save", m.backend, time.Since(start).Seconds(), err)
		observe.EndSpan(span, err)
	}()
	return m.store.Save(ctx, name, c)
}

// validateAdditions checks every addition and reports all failures at once.
// Unknown building types are only logged.
func validateAdditions(ctx context.Context, additions []building.Definition) error {
	var errs []error
	for i, d := range additions {
		if err := building.Validate(d); err != nil {
			errs = append(errs, fmt.Errorf("additions[%d] %q: %w", i, d.ID, err))
		}
		if !d.Type.IsKnown() {
			observe.Logger(ctx).Warn("unknown building type", "building", d.ID, "type", d.Type)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("merger: invalid additions: %w: %w", catalog.ErrSchema, errors.Join(errs...))
	}
	return nil
}
