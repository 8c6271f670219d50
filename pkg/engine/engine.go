package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/aggregate"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/insight"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/merge"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/quality"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/source"
)

// BuildObserver is told how every build went.
type BuildObserver interface {
	ObserveBuild(d time.Duration, err error)
}

// Engine builds KPI snapshots from a directory of fact tables.
type Engine struct {
	specs       []source.Spec
	validator   *quality.Validator
	aggregators map[kpi.Domain]aggregate.Aggregator
	schema      *merge.Schema
	pricing     insight.Pricing
	observer    BuildObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithSpecs overrides the fact tables read by Build.
func WithSpecs(specs []source.Spec) Option {
	return func(e *Engine) { e.specs = specs }
}

// WithSchema overrides the merge schema.
func WithSchema(s *merge.Schema) Option {
	return func(e *Engine) { e.schema = s }
}

// WithPricing sets the prices used by global KPIs and revalues waste_sar
// in the default factory and store aggregators. A WithAggregator given
// after it takes precedence.
func WithPricing(p insight.Pricing) Option {
	return func(e *Engine) {
		e.pricing = p
		e.aggregators[kpi.Factory] = &aggregate.Factory{WasteCost: p.WasteValue}
		e.aggregators[kpi.Store] = &aggregate.Store{WasteCost: p.WasteValue}
	}
}

// WithAggregator replaces the aggregator of one domain.
func WithAggregator(a aggregate.Aggregator) Option {
	return func(e *Engine) { e.aggregators[a.Domain()] = a }
}

// WithObserver reports build durations and failures.
func WithObserver(o BuildObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an engine with the default tables, aggregators and schema.
func New(opts ...Option) *Engine {
	e := &Engine{
		specs:       source.DefaultSpecs,
		validator:   quality.NewValidator(),
		aggregators: make(map[kpi.Domain]aggregate.Aggregator, len(kpi.Domains)),
		schema:      merge.DefaultSchema(),
		pricing:     insight.DefaultPricing(),
	}
	for _, d := range kpi.Domains {
		a, _ := aggregate.For(d)
		e.aggregators[d] = a
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build loads, validates, aggregates and merges the fact tables under
// baseDir into a new snapshot. Missing tables and columns are logged and
// leave their domain empty; only a merge schema violation or a cancelled
// context fails the build.
func (e *Engine) Build(ctx context.Context, baseDir string) (snap *Snapshot, err error) {
	start := time.Now()
	defer func() {
		if e.observer != nil {
			e.observer.ObserveBuild(time.Since(start), err)
		}
	}()

	snap = &Snapshot{
		ID:      uuid.NewString(),
		BaseDir: baseDir,
		Pricing: e.pricing,
		raw:     make(map[kpi.Domain]*frame.Frame),
		rows:    make(map[kpi.Domain]int),
	}

	loaded, errs := source.NewLoader(baseDir).WithSpecs(e.specs).LoadAll()
	for _, err := range errs {
		snap.Warnings = append(snap.Warnings, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, s := range e.specs {
		f, ok := loaded[s.Domain]
		if !ok {
			continue
		}
		clean, report := e.validator.Validate(f)
		deriveCalendar(clean)
		snap.raw[s.Domain] = clean
		snap.reports = append(snap.reports, report)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tables []*kpi.Table
	for _, d := range kpi.Domains {
		f, ok := snap.raw[d]
		if !ok {
			continue
		}
		a, ok := e.aggregators[d]
		if !ok {
			continue
		}
		table, err := a.Aggregate(f)
		if err != nil {
			slog.Warn("domain has no KPIs", "domain", d, "error", err)
			snap.Warnings = append(snap.Warnings, err.Error())
			continue
		}
		snap.rows[d] = table.Len()
		tables = append(tables, table)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unified, err := merge.Merge(tables, e.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to merge KPI tables: %w", err)
	}
	snap.unified = unified
	snap.BuiltAt = time.Now()

	slog.Info("snapshot built",
		"id", snap.ID,
		"rows", unified.Len(),
		"columns", len(unified.Columns()),
		"duration", time.Since(start).Round(time.Millisecond))
	return snap, nil
}
