package refrange

import (
	"github.com/rs/zerolog"

	"github.com/ehr/labspec/internal/domain/specification"
)

// BaselineFunc is the structural check a row must pass before its
// demographic filters are looked at.
type BaselineFunc func(row specification.Row, sample SampleContext) bool

// StructuralMatch is the default baseline: the row keyword must match the
// sample service when both are set, and every declared sample type, method
// and client must equal the sample's.
func StructuralMatch(row specification.Row, sample SampleContext) bool {
	if row.Keyword != "" && sample.ServiceKeyword != "" && row.Keyword != sample.ServiceKeyword {
		return false
	}
	return specification.Matches(row.SampleTypeUID, sample.SampleTypeUID) &&
		specification.Matches(row.MethodUID, sample.MethodUID) &&
		specification.Matches(row.ClientUID, sample.ClientUID)
}

// Evaluator decides whether a dynamic specification row applies to a
// sample. It has no side effects beyond caching compiled expressions and is
// safe for concurrent use.
type Evaluator struct {
	baseline BaselineFunc
	programs *programCache
	logger   zerolog.Logger
}

type Option func(*Evaluator)

// WithBaseline replaces StructuralMatch.
func WithBaseline(fn BaselineFunc) Option {
	return func(e *Evaluator) {
		if fn != nil {
			e.baseline = fn
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		baseline: StructuralMatch,
		programs: newProgramCache(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RowMatches reports whether every filter declared on row passes for the
// patient and sample.
func (e *Evaluator) RowMatches(row specification.Row, patient PatientContext, sample SampleContext) bool {
	if !e.baseline(row, sample) {
		return false
	}
	if row.HasAgeFilter() && !ageMatches(row, patient, sample) {
		return false
	}
	if row.HasSexFilter() && !sexMatches(row.Sex, patient.Sex) {
		return false
	}
	if row.Expression != "" {
		ok, err := e.programs.eval(row.Expression, patient, sample)
		if err != nil {
			e.logger.Debug().Err(err).Str("keyword", row.Keyword).Msg("row expression rejected")
			return false
		}
		return ok
	}
	return true
}

// SelectRow returns the first row, in declared order, that matches.
func (e *Evaluator) SelectRow(rows []specification.Row, patient PatientContext, sample SampleContext) (specification.Row, bool) {
	for _, row := range rows {
		if e.RowMatches(row, patient, sample) {
			return row, true
		}
	}
	return specification.Row{}, false
}

// ageMatches applies inclusive day bounds. A row with an age filter cannot
// be evaluated without both dates and never matches a negative age.
func ageMatches(row specification.Row, patient PatientContext, sample SampleContext) bool {
	days, ok := ageDays(patient, sample)
	if !ok || days < 0 {
		return false
	}
	if row.MinAgeDays != nil && days < *row.MinAgeDays {
		return false
	}
	if row.MaxAgeDays != nil && days > *row.MaxAgeDays {
		return false
	}
	return true
}
