package resolution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ehr/labspec/internal/domain/resolution/metrics"
	"github.com/ehr/labspec/internal/domain/specification"
)

var tracer = otel.Tracer("github.com/ehr/labspec/internal/domain/resolution")

// Analysis is the read surface the resolver needs from a test. The same value
// is probed for binding operations.
type Analysis interface {
	GetUID() string
	GetKeyword() string
	GetServiceUID() string
	GetMethodUID() string
	GetSampleTypeUID() string
}

// Order is the read surface the resolver needs from the containing order.
type Order interface {
	GetUID() string
	GetClientUID() string
}

var errNilInput = errors.New("analysis and order are required")

// Resolver selects a specification for an analysis and binds it once.
// It holds no per-analysis state; callers must not resolve the same analysis
// concurrently.
type Resolver struct {
	statics  specification.StaticCatalog
	dynamics specification.DynamicCatalog
	walker   specification.Walker

	traversal bool
	preferred map[string]struct{}

	logger  zerolog.Logger
	metrics *metrics.Metrics

	scoped   []strategy
	fallback []strategy
}

type Option func(*Resolver)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithPreferredTitles sets the title allow-list used for scoring and traversal.
func WithPreferredTitles(titles ...string) Option {
	return func(r *Resolver) {
		for _, t := range titles {
			if t != "" {
				r.preferred[t] = struct{}{}
			}
		}
	}
}

// WithTraversalFallback enables the exhaustive container walk. It only runs
// when enabled is true and w is not nil.
func WithTraversalFallback(enabled bool, w specification.Walker) Option {
	return func(r *Resolver) {
		r.traversal = enabled && w != nil
		r.walker = w
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func New(statics specification.StaticCatalog, dynamics specification.DynamicCatalog, opts ...Option) *Resolver {
	r := &Resolver{
		statics:   statics,
		dynamics:  dynamics,
		preferred: make(map[string]struct{}),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.scoped = []strategy{
		dynamicScored{catalog: r.dynamics, preferred: r.preferred},
		staticStrict{catalog: r.statics},
		staticSoft{catalog: r.statics},
	}
	r.fallback = []strategy{
		traversalDynamic{walker: r.walker, preferred: r.preferred},
		traversalStatic{walker: r.walker},
	}
	return r
}

// ResolveAndBind finds and binds a specification for a, reporting whether a
// binding is in place afterwards because of this call. It never fails; see
// Resolve for details.
func (r *Resolver) ResolveAndBind(ctx context.Context, a Analysis, o Order) bool {
	return r.Resolve(ctx, a, o).Bound()
}

// Resolve runs the guard and the strategy cascade for one analysis. Errors
// and panics from collaborators are captured in the outcome.
func (r *Resolver) Resolve(ctx context.Context, a Analysis, o Order) (out Outcome) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "resolution.Resolve")
	var st *state

	defer func() {
		if rec := recover(); rec != nil {
			out = Outcome{AnalysisUID: out.AnalysisUID, Status: StatusFailed, Err: fmt.Errorf("panic: %v", rec)}
		}
		r.finish(span, st, out, time.Since(start))
	}()

	if a == nil || o == nil {
		return Outcome{Status: StatusFailed, Err: errNilInput}
	}
	out.AnalysisUID = safeString(a.GetUID)
	span.SetAttributes(
		attribute.String("analysis.uid", out.AnalysisUID),
		attribute.String("order.uid", safeString(o.GetUID)),
	)

	st = &state{analysis: a, order: o, target: newTarget(a)}
	if reason, skip := st.target.guard(); skip {
		out.Status = StatusSkipped
		out.Reason = reason
		return out
	}
	st.dynamicCapable = st.target.dynamicCapable()

	var (
		failures []error
		lastFail Outcome
	)
	run := func(strategies []strategy, scoped bool) (Outcome, bool) {
		for _, s := range strategies {
			c, ok := s.Find(ctx, st)
			if !ok {
				r.logger.Debug().Str("analysis", out.AnalysisUID).Str("strategy", s.Name()).Msg("no candidate")
				continue
			}
			if scoped {
				st.scopedFound = true
			}
			res := r.apply(st, c)
			if res.Status != StatusFailed {
				return res, true
			}
			r.logger.Warn().Err(res.Err).
				Str("analysis", res.AnalysisUID).
				Str("specification", res.SpecificationUID).
				Str("strategy", res.Strategy).
				Msg("could not bind specification candidate")
			failures = append(failures, res.Err)
			lastFail = res
		}
		return Outcome{}, false
	}

	if res, done := run(r.scoped, true); done {
		return res
	}
	if r.traversal && !st.scopedFound {
		if res, done := run(r.fallback, false); done {
			return res
		}
	}

	if len(failures) > 0 {
		lastFail.Err = errors.Join(failures...)
		return lastFail
	}
	out.Status = StatusInconclusive
	out.Err = errors.Join(ErrInconclusive, st.queryErr())
	return out
}

func (r *Resolver) finish(span trace.Span, st *state, out Outcome, elapsed time.Duration) {
	defer span.End()

	if st != nil {
		for _, err := range st.queryErrs {
			r.logger.Warn().Err(err).Str("analysis", out.AnalysisUID).Msg("specification query failed")
		}
		r.metrics.AddQueryFailures(len(st.queryErrs))
	}
	r.metrics.IncrementOutcome(string(out.Status), out.Strategy)
	r.metrics.ObserveResolveLatency(elapsed)

	span.SetAttributes(
		attribute.String("resolution.status", string(out.Status)),
		attribute.String("resolution.strategy", out.Strategy),
	)
	if out.Status == StatusFailed && out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}

	switch out.Status {
	case StatusBound:
		r.logger.Info().
			Str("analysis", out.AnalysisUID).
			Str("kind", string(out.Kind)).
			Str("specification", out.SpecificationUID).
			Str("strategy", out.Strategy).
			Dur("elapsed", elapsed).
			Msg("specification bound")
	case StatusSkipped:
		r.logger.Debug().Str("analysis", out.AnalysisUID).Str("reason", out.Reason).Msg("resolution skipped")
	case StatusInconclusive:
		r.logger.Info().Str("analysis", out.AnalysisUID).Msg("no specification candidate")
	default:
		r.logger.Error().Err(out.Err).Str("analysis", out.AnalysisUID).Msg("specification resolution failed")
	}
}
