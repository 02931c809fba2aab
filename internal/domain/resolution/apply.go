package resolution

import (
	"errors"
	"fmt"

	"github.com/ehr/labspec/internal/domain/specification"
)

// apply binds c to the analysis of st. It re-runs the guard first: selection
// and apply are separate steps and the binding state may have moved.
func (r *Resolver) apply(st *state, c Candidate) Outcome {
	out := Outcome{
		AnalysisUID:      safeString(st.analysis.GetUID),
		Kind:             c.Kind(),
		SpecificationUID: c.UID(),
		Strategy:         c.Strategy,
	}

	st.target.refresh()
	if reason, skip := st.target.guard(); skip {
		if uid, kind, ok := st.target.bound(); ok && reason == reasonAlreadyBound && uid == c.UID() && kind == c.Kind() {
			out.Status = StatusBound
			out.Reason = reasonAlreadyBound
			return out
		}
		out.Status = StatusSkipped
		out.Reason = reason
		return out
	}

	var err error
	if c.Dynamic != nil {
		err = r.applyDynamic(st, c.Dynamic)
	} else if c.Static != nil {
		err = r.applyStatic(st, c.Static)
	} else {
		err = fmt.Errorf("empty candidate: %w", ErrBindAttemptFailed)
	}
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	out.Status = StatusBound
	return out
}

func (r *Resolver) applyDynamic(st *state, spec *specification.DynamicSpecification) error {
	err := r.try(st, "analysis", st.target.analysis.dynamicAttempts(spec))
	if err == nil {
		return nil
	}
	errs := []error{err}

	if st.target.prototypeKnown && !st.target.prototype.Dynamic() && st.target.existingWrapper() == nil {
		errs = append(errs, fmt.Errorf("wrapper cannot host a dynamic specification: %w", ErrCapabilityUnsupported))
		return errors.Join(errs...)
	}
	w, err := st.target.ensureWrapper()
	if err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	if err := r.try(st, "wrapper", w.dynamicAttempts(spec)); err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	return nil
}

func (r *Resolver) applyStatic(st *state, spec *specification.StaticSpecification) error {
	var errs []error
	w, werr := st.target.ensureWrapper()
	if werr != nil {
		r.logger.Debug().Err(werr).
			Str("analysis", safeString(st.analysis.GetUID)).
			Msg("no wrapper for static binding")
		errs = append(errs, werr)
	}

	err := r.try(st, "analysis", st.target.analysis.staticAttempts(spec))
	if err == nil {
		return nil
	}
	errs = append(errs, err)

	if w == nil {
		return errors.Join(errs...)
	}
	if err := r.try(st, "wrapper", w.staticAttempts(spec)); err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	return nil
}

// try runs attempts in order and stops at the first success. An object with
// no attempts at all reports ErrCapabilityUnsupported.
func (r *Resolver) try(st *state, on string, attempts []attempt) error {
	if len(attempts) == 0 {
		return fmt.Errorf("%s has no matching bind operation: %w", on, ErrCapabilityUnsupported)
	}
	var errs []error
	for _, a := range attempts {
		err := safeRun(a.run)
		r.metrics.IncrementBindAttempt(a.name, err == nil)
		if err == nil {
			r.logger.Debug().
				Str("analysis", safeString(st.analysis.GetUID)).
				Str("on", on).
				Str("operation", a.name).
				Msg("bind attempt succeeded")
			return nil
		}
		r.logger.Debug().Err(err).
			Str("analysis", safeString(st.analysis.GetUID)).
			Str("on", on).
			Str("operation", a.name).
			Msg("bind attempt failed")
		errs = append(errs, fmt.Errorf("%s.%s: %w", on, a.name, err))
	}
	return fmt.Errorf("%w: %w", ErrBindAttemptFailed, errors.Join(errs...))
}
