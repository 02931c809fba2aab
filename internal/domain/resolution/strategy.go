package resolution

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehr/labspec/internal/domain/specification"
)

// Strategy names, reported in outcomes, logs and metrics.
const (
	StrategyDynamicScored    = "dynamic_scored"
	StrategyStaticStrict     = "static_strict"
	StrategyStaticSoft       = "static_soft"
	StrategyTraversalDynamic = "traversal_dynamic"
	StrategyTraversalStatic  = "traversal_static"
)

// strategy proposes at most one candidate. Query failures are recorded on the
// state and reported as "nothing found".
type strategy interface {
	Name() string
	Find(ctx context.Context, st *state) (Candidate, bool)
}

// state carries one resolution through the cascade. Query results are
// memoized so strategies sharing a source query it once.
type state struct {
	analysis Analysis
	order    Order
	target   *target

	dynamicCapable bool

	staticLoaded  bool
	statics       []*specification.StaticSpecification
	strictMatched bool

	walked  bool
	records []specification.Record

	// scopedFound is set once any scoped strategy produced a candidate.
	scopedFound bool
	queryErrs   []error
}

func (st *state) queryFailed(err error) {
	st.queryErrs = append(st.queryErrs, fmt.Errorf("%w: %w", ErrQueryFailed, err))
}

func (st *state) queryErr() error { return errors.Join(st.queryErrs...) }

type dynamicScored struct {
	catalog   specification.DynamicCatalog
	preferred map[string]struct{}
}

func (dynamicScored) Name() string { return StrategyDynamicScored }

func (s dynamicScored) Find(ctx context.Context, st *state) (Candidate, bool) {
	if s.catalog == nil || !st.dynamicCapable {
		return Candidate{}, false
	}
	var specs []*specification.DynamicSpecification
	err := safeRun(func() error {
		var err error
		specs, err = s.catalog.ListDynamic(ctx)
		return err
	})
	if err != nil {
		st.queryFailed(err)
		return Candidate{}, false
	}
	if len(specs) == 0 {
		return Candidate{}, false
	}
	best, score := pickDynamic(specs, st.analysis, st.order, s.preferred)
	if best == nil {
		return Candidate{}, false
	}
	return Candidate{Dynamic: best, Strategy: StrategyDynamicScored, Score: score}, true
}

// loadStatics runs the scoped static query once per resolution.
func loadStatics(ctx context.Context, catalog specification.StaticCatalog, st *state) []*specification.StaticSpecification {
	if st.staticLoaded || catalog == nil {
		return st.statics
	}
	st.staticLoaded = true
	q := specification.NewStaticQuery(st.order.GetClientUID(), st.analysis.GetSampleTypeUID())
	err := safeRun(func() error {
		var err error
		st.statics, err = catalog.FindStatic(ctx, q)
		return err
	})
	if err != nil {
		st.statics = nil
		st.queryFailed(err)
	}
	return st.statics
}

type staticStrict struct{ catalog specification.StaticCatalog }

func (staticStrict) Name() string { return StrategyStaticStrict }

func (s staticStrict) Find(ctx context.Context, st *state) (Candidate, bool) {
	spec := strictStatic(loadStatics(ctx, s.catalog, st), st.analysis, st.order)
	if spec == nil {
		return Candidate{}, false
	}
	st.strictMatched = true
	return Candidate{Static: spec, Strategy: StrategyStaticStrict}, true
}

// staticSoft binds the first query result when nothing matched strictly.
type staticSoft struct{ catalog specification.StaticCatalog }

func (staticSoft) Name() string { return StrategyStaticSoft }

func (s staticSoft) Find(ctx context.Context, st *state) (Candidate, bool) {
	if st.strictMatched {
		return Candidate{}, false
	}
	for _, spec := range loadStatics(ctx, s.catalog, st) {
		if spec != nil {
			return Candidate{Static: spec, Strategy: StrategyStaticSoft}, true
		}
	}
	return Candidate{}, false
}

// walkAll collects every record reachable through the walker once.
func walkAll(ctx context.Context, w specification.Walker, st *state) []specification.Record {
	if st.walked || w == nil {
		return st.records
	}
	st.walked = true
	err := safeRun(func() error {
		return w.Walk(ctx, func(r specification.Record) error {
			if r != nil {
				st.records = append(st.records, r)
			}
			return nil
		})
	})
	if err != nil {
		st.queryFailed(err)
	}
	return st.records
}

type traversalDynamic struct {
	walker    specification.Walker
	preferred map[string]struct{}
}

func (traversalDynamic) Name() string { return StrategyTraversalDynamic }

// Find returns the first dynamic record with an allow-listed title, or the
// first dynamic record when none is allow-listed.
func (s traversalDynamic) Find(ctx context.Context, st *state) (Candidate, bool) {
	if !st.dynamicCapable {
		return Candidate{}, false
	}
	var first *specification.DynamicSpecification
	for _, r := range walkAll(ctx, s.walker, st) {
		d, ok := r.(*specification.DynamicSpecification)
		if !ok || d == nil {
			continue
		}
		if _, preferred := s.preferred[d.Title]; preferred {
			return Candidate{Dynamic: d, Strategy: StrategyTraversalDynamic, Score: scorePreferredName}, true
		}
		if first == nil {
			first = d
		}
	}
	if first == nil {
		return Candidate{}, false
	}
	return Candidate{Dynamic: first, Strategy: StrategyTraversalDynamic}, true
}

type traversalStatic struct{ walker specification.Walker }

func (traversalStatic) Name() string { return StrategyTraversalStatic }

func (s traversalStatic) Find(ctx context.Context, st *state) (Candidate, bool) {
	var specs []*specification.StaticSpecification
	for _, r := range walkAll(ctx, s.walker, st) {
		if spec, ok := r.(*specification.StaticSpecification); ok {
			specs = append(specs, spec)
		}
	}
	spec := strictStatic(specs, st.analysis, st.order)
	if spec == nil {
		return Candidate{}, false
	}
	return Candidate{Static: spec, Strategy: StrategyTraversalStatic}, true
}
