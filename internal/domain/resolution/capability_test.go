package resolution

import (
	"errors"
	"testing"

	"github.com/ehr/labspec/internal/domain/analysis"
	"github.com/ehr/labspec/internal/domain/specification"
)

func TestProbe_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		target any
		want   Capability
	}{
		{"current", shape(newRecord(analysis.SchemaCurrent)), CapDynamicByUID | CapDynamicByReference | CapStaticByReference | CapStaticByUID},
		{"legacy", shape(newRecord(analysis.SchemaLegacy)), CapStaticByReferenceSetter},
		{"plain", shape(newRecord(analysis.SchemaPlain)), 0},
		{"wrapper", &analysis.Wrapper{}, CapStaticByReference | CapStaticByUID | CapDynamicByUIDSecondary},
		{"static wrapper", &analysis.StaticWrapper{}, CapStaticByReferenceSetter},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Probe(tt.target).Capabilities(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCapability_String(t *testing.T) {
	if got := Capability(0).String(); got != "none" {
		t.Errorf("expected none, got %s", got)
	}
	if got := (CapDynamicByUID | CapStaticByUID).String(); got != "dynamic-by-uid|static-by-uid" {
		t.Errorf("unexpected %s", got)
	}
	if !(CapDynamicByUIDSecondary).Dynamic() || (CapDynamicByUIDSecondary).Static() {
		t.Error("secondary dynamic form must count as dynamic only")
	}
}

func TestBinder_AttemptOrder(t *testing.T) {
	b := Probe(shape(newRecord(analysis.SchemaCurrent)))

	var names []string
	for _, a := range b.dynamicAttempts(&specification.DynamicSpecification{UID: "d"}) {
		names = append(names, a.name)
	}
	if len(names) != 2 || names[0] != "SetDynamicSpecificationUID" || names[1] != "SetDynamicSpecification" {
		t.Errorf("unexpected dynamic attempts %v", names)
	}

	names = names[:0]
	for _, a := range b.staticAttempts(&specification.StaticSpecification{UID: "s"}) {
		names = append(names, a.name)
	}
	if len(names) != 2 || names[0] != "SetSpecification" || names[1] != "SetSpecificationUID" {
		t.Errorf("unexpected static attempts %v", names)
	}
}

func TestSafeRun_RecoversPanic(t *testing.T) {
	err := safeRun(func() error { panic("boom") })
	if err == nil {
		t.Fatal("expected error from panic")
	}
	sentinel := errors.New("sentinel")
	if err := safeRun(func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel, got %v", err)
	}
}

func TestTarget_DynamicCapable(t *testing.T) {
	tests := []struct {
		name   string
		target any
		want   bool
	}{
		{"current", shape(newRecord(analysis.SchemaCurrent)), true},
		{"legacy through wrapper", shape(newRecord(analysis.SchemaLegacy)), true},
		{"plain", shape(newRecord(analysis.SchemaPlain)), false},
		{"read only", readOnlyAnalysis{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newTarget(tt.target).dynamicCapable(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTarget_ProbeDoesNotCreateWrapper(t *testing.T) {
	rec := newRecord(analysis.SchemaLegacy)
	tg := newTarget(shape(rec))

	tg.dynamicCapable()
	tg.guard()
	if rec.Wrapper != nil {
		t.Error("probing must not create a wrapper")
	}

	if _, err := tg.ensureWrapper(); err != nil {
		t.Fatalf("ensure wrapper: %v", err)
	}
	first := rec.Wrapper
	if _, err := tg.ensureWrapper(); err != nil {
		t.Fatalf("ensure wrapper again: %v", err)
	}
	if rec.Wrapper != first {
		t.Error("wrapper must be reused")
	}
}
