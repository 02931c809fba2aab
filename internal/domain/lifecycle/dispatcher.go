package lifecycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/labspec/internal/domain/analysis"
	"github.com/ehr/labspec/internal/domain/resolution"
)

// Resolver is the part of resolution.Resolver the dispatcher drives.
type Resolver interface {
	Resolve(ctx context.Context, a resolution.Analysis, o resolution.Order) resolution.Outcome
}

// Dispatcher turns lifecycle events into resolutions and persists the
// binding state they change. Analyses of one order are handled one after the
// other.
type Dispatcher struct {
	store    analysis.Store
	resolver Resolver
	logger   zerolog.Logger
}

func NewDispatcher(store analysis.Store, resolver Resolver, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: store, resolver: resolver, logger: logger}
}

// Dispatch handles one event. The returned error covers loading and saving
// only; resolution itself never fails the event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) ([]resolution.Outcome, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	switch ev.Type {
	case EventOrderCreated:
		return d.ResolveOrder(ctx, ev.OrderUID)
	default:
		out, err := d.ResolveAnalysis(ctx, ev.OrderUID, ev.AnalysisUID)
		if err != nil {
			return nil, err
		}
		return []resolution.Outcome{out}, nil
	}
}

// ResolveOrder resolves every analysis of an order.
func (d *Dispatcher) ResolveOrder(ctx context.Context, orderUID string) ([]resolution.Outcome, error) {
	order, err := d.store.GetOrder(ctx, orderUID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderUID, err)
	}
	recs, err := d.store.ListAnalyses(ctx, orderUID)
	if err != nil {
		return nil, fmt.Errorf("load analyses of %s: %w", orderUID, err)
	}
	outcomes := make([]resolution.Outcome, 0, len(recs))
	for _, rec := range recs {
		out, err := d.resolve(ctx, order, rec)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// ResolveAnalysis resolves a single analysis. A non-empty orderUID must match
// the analysis' order.
func (d *Dispatcher) ResolveAnalysis(ctx context.Context, orderUID, analysisUID string) (resolution.Outcome, error) {
	rec, err := d.store.GetAnalysis(ctx, analysisUID)
	if err != nil {
		return resolution.Outcome{}, fmt.Errorf("load analysis %s: %w", analysisUID, err)
	}
	if orderUID != "" && rec.OrderUID != orderUID {
		return resolution.Outcome{}, fmt.Errorf("analysis %s in order %s: %w", analysisUID, orderUID, analysis.ErrNotFound)
	}
	order, err := d.store.GetOrder(ctx, rec.OrderUID)
	if err != nil {
		return resolution.Outcome{}, fmt.Errorf("load order %s: %w", rec.OrderUID, err)
	}
	return d.resolve(ctx, order, rec)
}

func (d *Dispatcher) resolve(ctx context.Context, order *analysis.Order, rec *analysis.Record) (resolution.Outcome, error) {
	out := d.resolver.Resolve(ctx, analysis.Shape(rec), order)
	if !rec.Changed() {
		return out, nil
	}
	if err := d.store.SaveBinding(ctx, rec); err != nil {
		return out, fmt.Errorf("save binding of %s: %w", rec.UID, err)
	}
	d.logger.Debug().
		Str("analysis", rec.UID).
		Str("order", order.UID).
		Msg("binding saved")
	return out, nil
}
