package resolution

import (
	"fmt"

	"github.com/ehr/labspec/internal/domain/specification"
)

// target bundles the probed analysis and, once known, its wrapper. Each
// object is probed at most once per resolution.
type target struct {
	analysis Binder
	host     WrapperHost

	wrapper       *Binder
	wrapperProbed bool

	prototype      Capability
	prototypeKnown bool
}

func newTarget(obj any) *target {
	t := &target{analysis: Probe(obj)}
	t.host, _ = obj.(WrapperHost)
	if p, ok := obj.(WrapperPrototyper); ok && t.host != nil {
		var proto any
		if err := safeRun(func() error { proto = p.WrapperPrototype(); return nil }); err == nil && proto != nil {
			t.prototype = Probe(proto).Capabilities()
			t.prototypeKnown = true
		}
	}
	return t
}

// existingWrapper returns the wrapper's binder without creating one.
func (t *target) existingWrapper() *Binder {
	if t.wrapperProbed || t.host == nil {
		return t.wrapper
	}
	t.wrapperProbed = true
	var (
		w  any
		ok bool
	)
	if err := safeRun(func() error { w, ok = t.host.Wrapper(); return nil }); err != nil || !ok || w == nil {
		return nil
	}
	b := Probe(w)
	t.wrapper = &b
	return t.wrapper
}

// refresh forgets a negative wrapper lookup so the next call asks the host
// again. A probed wrapper is kept.
func (t *target) refresh() {
	if t.wrapper == nil {
		t.wrapperProbed = false
	}
}

// ensureWrapper returns the wrapper's binder, creating the wrapper if needed.
func (t *target) ensureWrapper() (*Binder, error) {
	if w := t.existingWrapper(); w != nil {
		return w, nil
	}
	if t.host == nil {
		return nil, fmt.Errorf("analysis cannot host a wrapper: %w", ErrCapabilityUnsupported)
	}
	var w any
	err := safeRun(func() error {
		var err error
		w, err = t.host.EnsureWrapper()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure wrapper: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("ensure wrapper returned nothing: %w", ErrCapabilityUnsupported)
	}
	b := Probe(w)
	t.wrapper, t.wrapperProbed = &b, true
	return t.wrapper, nil
}

// dynamicCapable reports whether a dynamic binding could be hosted directly
// or through a wrapper. A host whose wrapper type is undeclared is given the
// benefit of the doubt; apply probes the real wrapper.
func (t *target) dynamicCapable() bool {
	if t.analysis.Capabilities().Dynamic() {
		return true
	}
	if w := t.existingWrapper(); w != nil {
		return w.Capabilities().Dynamic()
	}
	if t.host == nil {
		return false
	}
	return !t.prototypeKnown || t.prototype.Dynamic()
}

// Skip reasons reported by the guard.
const (
	reasonResultsRange = "results_range_set"
	reasonAlreadyBound = "already_bound"
)

// guard implements the apply-once check: a manual results range or any
// existing binding, on the analysis or its wrapper, means hands off.
func (t *target) guard() (reason string, skip bool) {
	if t.analysis.hasResultsRange() {
		return reasonResultsRange, true
	}
	if w := t.existingWrapper(); w != nil && w.hasResultsRange() {
		return reasonResultsRange, true
	}
	if _, _, ok := t.bound(); ok {
		return reasonAlreadyBound, true
	}
	return "", false
}

func (t *target) bound() (string, specification.Kind, bool) {
	if uid, kind, ok := t.analysis.binding(); ok {
		return uid, kind, true
	}
	if w := t.existingWrapper(); w != nil {
		return w.binding()
	}
	return "", "", false
}
