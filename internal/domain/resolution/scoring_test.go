package resolution

import (
	"testing"

	"github.com/ehr/labspec/internal/domain/analysis"
	"github.com/ehr/labspec/internal/domain/specification"
)

func TestScoreDynamic(t *testing.T) {
	preferred := map[string]struct{}{"Lab defaults": {}}
	a := shape(newRecord(analysis.SchemaCurrent))
	o := newOrder()

	tests := []struct {
		name string
		spec *specification.DynamicSpecification
		want int
	}{
		{
			name: "same client with matching row",
			spec: &specification.DynamicSpecification{ClientUID: "C1", Rows: []specification.Row{{Keyword: "GLU"}}},
			want: 150,
		},
		{
			name: "unscoped with no rows",
			spec: &specification.DynamicSpecification{},
			want: 10,
		},
		{
			name: "rows that could not be decoded",
			spec: &specification.DynamicSpecification{RowsUnavailable: true, Rows: []specification.Row{{Keyword: "GLU"}}},
			want: 10,
		},
		{
			name: "preferred title without matching row",
			spec: &specification.DynamicSpecification{Title: "Lab defaults", Rows: []specification.Row{{Keyword: "NA"}}},
			want: 5,
		},
		{
			name: "keyword matches but declared method differs",
			spec: &specification.DynamicSpecification{Rows: []specification.Row{{Keyword: "GLU", MethodUID: "M2"}}},
			want: 0,
		},
		{
			name: "row scoped to another client",
			spec: &specification.DynamicSpecification{Rows: []specification.Row{{Keyword: "GLU", ClientUID: "C2"}}},
			want: 0,
		},
		{
			name: "other client",
			spec: &specification.DynamicSpecification{ClientUID: "C2", Rows: []specification.Row{{Keyword: "GLU", SampleTypeUID: "S1"}}},
			want: 50,
		},
		{
			name: "everything",
			spec: &specification.DynamicSpecification{Title: "Lab defaults", ClientUID: "C1", Rows: []specification.Row{{Keyword: "GLU"}}},
			want: 155,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreDynamic(tt.spec, a, o, preferred); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestPickDynamic_HighestScoreWins(t *testing.T) {
	preferred := map[string]struct{}{"Lab defaults": {}}
	specs := []*specification.DynamicSpecification{
		{UID: "opaque"},
		{UID: "preferred", Title: "Lab defaults", Rows: []specification.Row{{Keyword: "NA"}}},
		{UID: "scoped", ClientUID: "C1", Rows: []specification.Row{{Keyword: "GLU"}}},
	}

	best, score := pickDynamic(specs, shape(newRecord(analysis.SchemaCurrent)), newOrder(), preferred)
	if best.UID != "scoped" || score != 150 {
		t.Errorf("expected scoped with 150, got %s with %d", best.UID, score)
	}
}

func TestPickDynamic_TieKeepsEnumerationOrder(t *testing.T) {
	specs := []*specification.DynamicSpecification{
		{UID: "first"},
		{UID: "second"},
		{UID: "third"},
	}
	a := shape(newRecord(analysis.SchemaCurrent))

	for i := 0; i < 10; i++ {
		best, _ := pickDynamic(specs, a, newOrder(), nil)
		if best.UID != "first" {
			t.Fatalf("expected first, got %s", best.UID)
		}
	}
}

func TestStrictStatic(t *testing.T) {
	a := shape(newRecord(analysis.SchemaCurrent))
	o := newOrder()

	open := &specification.StaticSpecification{UID: "open"}
	service := &specification.StaticSpecification{UID: "service", ServiceUID: "SV1"}
	method := &specification.StaticSpecification{UID: "method", ServiceUID: "SV1", MethodUID: "M9"}

	if got := strictStatic([]*specification.StaticSpecification{open, method, service}, a, o); got != service {
		t.Errorf("expected service-scoped record, got %+v", got)
	}
	if got := strictStatic([]*specification.StaticSpecification{method, open}, a, o); got != open {
		t.Errorf("expected open record, got %+v", got)
	}
	if got := strictStatic([]*specification.StaticSpecification{method}, a, o); got != nil {
		t.Errorf("expected no match, got %+v", got)
	}
}
