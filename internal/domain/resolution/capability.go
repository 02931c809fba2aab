package resolution

import (
	"fmt"
	"strings"

	"github.com/ehr/labspec/internal/domain/specification"
)

// Capability is a set of binding operations an object supports.
type Capability uint16

const (
	CapDynamicByUID Capability = 1 << iota
	CapDynamicByReference
	CapDynamicByUIDSecondary
	CapStaticByReference
	CapStaticByUID
	CapStaticByReferenceSetter
)

const (
	dynamicCaps = CapDynamicByUID | CapDynamicByReference | CapDynamicByUIDSecondary
	staticCaps  = CapStaticByReference | CapStaticByUID | CapStaticByReferenceSetter
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapDynamicByUID, "dynamic-by-uid"},
	{CapDynamicByReference, "dynamic-by-reference"},
	{CapDynamicByUIDSecondary, "dynamic-by-uid-secondary"},
	{CapStaticByReference, "static-by-reference"},
	{CapStaticByUID, "static-by-uid"},
	{CapStaticByReferenceSetter, "static-by-reference-setter"},
}

func (c Capability) Has(o Capability) bool { return c&o == o }

// Dynamic reports whether any dynamic binding operation is present.
func (c Capability) Dynamic() bool { return c&dynamicCaps != 0 }

// Static reports whether any static binding operation is present.
func (c Capability) Static() bool { return c&staticCaps != 0 }

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var names []string
	for _, n := range capabilityNames {
		if c.Has(n.c) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Binding operations, one interface per named operation. An object may
// implement any subset.
type (
	DynamicUIDSetter interface {
		SetDynamicSpecificationUID(uid string) error
	}
	DynamicSetter interface {
		SetDynamicSpecification(spec *specification.DynamicSpecification) error
	}
	DynamicReferenceSetter interface {
		SetDynamicSpecificationReference(uid string) error
	}
	StaticSetter interface {
		SetSpecification(spec *specification.StaticSpecification) error
	}
	StaticUIDSetter interface {
		SetSpecificationUID(uid string) error
	}
	StaticReferenceSetter interface {
		SetSpecificationReference(uid string) error
	}
)

// Readers used by the idempotency guard.
type (
	ResultsRangeReader interface {
		HasResultsRange() bool
	}
	DynamicBindingReader interface {
		GetDynamicSpecificationUID() string
	}
	StaticBindingReader interface {
		GetSpecificationUID() string
	}
)

// WrapperHost is implemented by analyses that can host bindings on a lazily
// created wrapper. EnsureWrapper must return the existing wrapper when there
// is one.
type WrapperHost interface {
	Wrapper() (any, bool)
	EnsureWrapper() (any, error)
}

// WrapperPrototyper lets a host describe its wrapper type before one exists.
// The prototype is only probed, never bound.
type WrapperPrototyper interface {
	WrapperPrototype() any
}

type attempt struct {
	name string
	run  func() error
}

// Binder holds the operations found on one object. Probe resolves it once;
// attempts are then built from the cached method values.
type Binder struct {
	caps Capability

	dynByUID          DynamicUIDSetter
	dynByRef          DynamicSetter
	dynByUIDSecondary DynamicReferenceSetter
	stByRef           StaticSetter
	stByUID           StaticUIDSetter
	stByRefSetter     StaticReferenceSetter

	rangeReader ResultsRangeReader
	dynReader   DynamicBindingReader
	stReader    StaticBindingReader
}

// Probe inspects target for every known binding operation. A missing
// operation means unsupported; it is never an error.
func Probe(target any) Binder {
	var b Binder
	if target == nil {
		return b
	}
	if v, ok := target.(DynamicUIDSetter); ok {
		b.dynByUID, b.caps = v, b.caps|CapDynamicByUID
	}
	if v, ok := target.(DynamicSetter); ok {
		b.dynByRef, b.caps = v, b.caps|CapDynamicByReference
	}
	if v, ok := target.(DynamicReferenceSetter); ok {
		b.dynByUIDSecondary, b.caps = v, b.caps|CapDynamicByUIDSecondary
	}
	if v, ok := target.(StaticSetter); ok {
		b.stByRef, b.caps = v, b.caps|CapStaticByReference
	}
	if v, ok := target.(StaticUIDSetter); ok {
		b.stByUID, b.caps = v, b.caps|CapStaticByUID
	}
	if v, ok := target.(StaticReferenceSetter); ok {
		b.stByRefSetter, b.caps = v, b.caps|CapStaticByReferenceSetter
	}
	b.rangeReader, _ = target.(ResultsRangeReader)
	b.dynReader, _ = target.(DynamicBindingReader)
	b.stReader, _ = target.(StaticBindingReader)
	return b
}

func (b Binder) Capabilities() Capability { return b.caps }

// dynamicAttempts lists the dynamic operations in priority order.
func (b Binder) dynamicAttempts(spec *specification.DynamicSpecification) []attempt {
	var out []attempt
	if b.dynByUID != nil {
		out = append(out, attempt{"SetDynamicSpecificationUID", func() error { return b.dynByUID.SetDynamicSpecificationUID(spec.UID) }})
	}
	if b.dynByRef != nil {
		out = append(out, attempt{"SetDynamicSpecification", func() error { return b.dynByRef.SetDynamicSpecification(spec) }})
	}
	if b.dynByUIDSecondary != nil {
		out = append(out, attempt{"SetDynamicSpecificationReference", func() error {
			return b.dynByUIDSecondary.SetDynamicSpecificationReference(spec.UID)
		}})
	}
	return out
}

// staticAttempts lists the static operations in priority order.
func (b Binder) staticAttempts(spec *specification.StaticSpecification) []attempt {
	var out []attempt
	if b.stByRef != nil {
		out = append(out, attempt{"SetSpecification", func() error { return b.stByRef.SetSpecification(spec) }})
	}
	if b.stByUID != nil {
		out = append(out, attempt{"SetSpecificationUID", func() error { return b.stByUID.SetSpecificationUID(spec.UID) }})
	}
	if b.stByRefSetter != nil {
		out = append(out, attempt{"SetSpecificationReference", func() error {
			return b.stByRefSetter.SetSpecificationReference(spec.UID)
		}})
	}
	return out
}

// binding returns the specification currently bound on the object, if any.
// Reader panics count as "nothing bound".
func (b Binder) binding() (uid string, kind specification.Kind, ok bool) {
	if b.dynReader != nil {
		if uid := safeString(b.dynReader.GetDynamicSpecificationUID); uid != "" {
			return uid, specification.KindDynamic, true
		}
	}
	if b.stReader != nil {
		if uid := safeString(b.stReader.GetSpecificationUID); uid != "" {
			return uid, specification.KindStatic, true
		}
	}
	return "", "", false
}

func (b Binder) hasResultsRange() bool {
	if b.rangeReader == nil {
		return false
	}
	var has bool
	_ = safeRun(func() error {
		has = b.rangeReader.HasResultsRange()
		return nil
	})
	return has
}

func safeString(fn func() string) (s string) {
	_ = safeRun(func() error {
		s = fn()
		return nil
	})
	return s
}

// safeRun calls fn, converting a panic into an error.
func safeRun(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
