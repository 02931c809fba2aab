package analysis

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/labspec/internal/domain/specification"
)

var (
	errEmptyUID = errors.New("specification uid is empty")
	errNilSpec  = errors.New("specification is nil")
)

// Target is what Shape returns: an analysis object of some schema shape.
// Binding operations are discovered on it by type assertion.
type Target interface {
	Base() *Record
	GetUID() string
	GetKeyword() string
	GetServiceUID() string
	GetMethodUID() string
	GetSampleTypeUID() string
}

// Shape wraps rec in the object type matching its schema.
func Shape(rec *Record) Target {
	switch rec.Schema {
	case SchemaLegacy:
		return &LegacyAnalysis{wrapperHost{rec}}
	case SchemaPlain:
		return &PlainAnalysis{wrapperHost{rec}}
	default:
		return &Analysis{wrapperHost{rec}}
	}
}

type wrapperHost struct{ *Record }

func (h wrapperHost) ensureRecord() *WrapperRecord {
	if h.Record.Wrapper == nil {
		h.Record.Wrapper = &WrapperRecord{
			UID:         uuid.NewString(),
			AnalysisUID: h.Record.UID,
			CreatedAt:   time.Now().UTC(),
		}
		h.Record.changed = true
	}
	return h.Record.Wrapper
}

// Analysis is the current schema shape.
type Analysis struct{ wrapperHost }

func (a *Analysis) SetDynamicSpecificationUID(uid string) error {
	if uid == "" {
		return errEmptyUID
	}
	a.Record.DynamicSpecificationUID = uid
	a.Record.changed = true
	return nil
}

func (a *Analysis) SetDynamicSpecification(spec *specification.DynamicSpecification) error {
	if spec == nil {
		return errNilSpec
	}
	return a.SetDynamicSpecificationUID(spec.UID)
}

func (a *Analysis) SetSpecification(spec *specification.StaticSpecification) error {
	if spec == nil {
		return errNilSpec
	}
	return a.SetSpecificationUID(spec.UID)
}

func (a *Analysis) SetSpecificationUID(uid string) error {
	if uid == "" {
		return errEmptyUID
	}
	a.Record.SpecificationUID = uid
	a.Record.changed = true
	return nil
}

func (a *Analysis) Wrapper() (any, bool) {
	if a.Record.Wrapper == nil {
		return nil, false
	}
	return &Wrapper{a.Record}, true
}

func (a *Analysis) EnsureWrapper() (any, error) {
	a.ensureRecord()
	return &Wrapper{a.Record}, nil
}

func (a *Analysis) WrapperPrototype() any { return &Wrapper{} }

// LegacyAnalysis only knows how to store a static specification reference.
type LegacyAnalysis struct{ wrapperHost }

func (a *LegacyAnalysis) SetSpecificationReference(uid string) error {
	if uid == "" {
		return errEmptyUID
	}
	a.Record.SpecificationUID = uid
	a.Record.changed = true
	return nil
}

func (a *LegacyAnalysis) Wrapper() (any, bool) {
	if a.Record.Wrapper == nil {
		return nil, false
	}
	return &Wrapper{a.Record}, true
}

func (a *LegacyAnalysis) EnsureWrapper() (any, error) {
	a.ensureRecord()
	return &Wrapper{a.Record}, nil
}

func (a *LegacyAnalysis) WrapperPrototype() any { return &Wrapper{} }

// PlainAnalysis has no binding fields of its own.
type PlainAnalysis struct{ wrapperHost }

func (a *PlainAnalysis) Wrapper() (any, bool) {
	if a.Record.Wrapper == nil {
		return nil, false
	}
	return &StaticWrapper{a.Record}, true
}

func (a *PlainAnalysis) EnsureWrapper() (any, error) {
	a.ensureRecord()
	return &StaticWrapper{a.Record}, nil
}

func (a *PlainAnalysis) WrapperPrototype() any { return &StaticWrapper{} }

// Wrapper hosts either specification kind on behalf of its analysis.
type Wrapper struct{ owner *Record }

func (w *Wrapper) GetSpecificationUID() string {
	return w.owner.Wrapper.SpecificationUID
}

func (w *Wrapper) GetDynamicSpecificationUID() string {
	return w.owner.Wrapper.DynamicSpecificationUID
}

func (w *Wrapper) SetSpecification(spec *specification.StaticSpecification) error {
	if spec == nil {
		return errNilSpec
	}
	return w.SetSpecificationUID(spec.UID)
}

func (w *Wrapper) SetSpecificationUID(uid string) error {
	if uid == "" {
		return errEmptyUID
	}
	w.owner.Wrapper.SpecificationUID = uid
	w.owner.changed = true
	return nil
}

func (w *Wrapper) SetDynamicSpecificationReference(uid string) error {
	if uid == "" {
		return errEmptyUID
	}
	w.owner.Wrapper.DynamicSpecificationUID = uid
	w.owner.changed = true
	return nil
}

// StaticWrapper hosts a static specification only.
type StaticWrapper struct{ owner *Record }

func (w *StaticWrapper) GetSpecificationUID() string {
	return w.owner.Wrapper.SpecificationUID
}

func (w *StaticWrapper) SetSpecificationReference(uid string) error {
	if uid == "" {
		return errEmptyUID
	}
	w.owner.Wrapper.SpecificationUID = uid
	w.owner.changed = true
	return nil
}
