package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/labspec/internal/domain/analysis"
	"github.com/ehr/labspec/internal/domain/resolution"
	"github.com/ehr/labspec/internal/domain/specification"
)

// -- Mock Store --

type mockStore struct {
	orders   map[string]*analysis.Order
	analyses map[string]*analysis.Record
	sequence []string
	saved    []string
	saveErr  error
}

func newMockStore() *mockStore {
	return &mockStore{
		orders:   make(map[string]*analysis.Order),
		analyses: make(map[string]*analysis.Record),
	}
}

func (m *mockStore) CreateOrder(_ context.Context, o *analysis.Order) error {
	m.orders[o.UID] = o
	return nil
}

func (m *mockStore) GetOrder(_ context.Context, uid string) (*analysis.Order, error) {
	o, ok := m.orders[uid]
	if !ok {
		return nil, analysis.ErrNotFound
	}
	return o, nil
}

func (m *mockStore) CreateAnalysis(_ context.Context, rec *analysis.Record) error {
	m.analyses[rec.UID] = rec
	m.sequence = append(m.sequence, rec.UID)
	return nil
}

func (m *mockStore) GetAnalysis(_ context.Context, uid string) (*analysis.Record, error) {
	rec, ok := m.analyses[uid]
	if !ok {
		return nil, analysis.ErrNotFound
	}
	return rec, nil
}

func (m *mockStore) ListAnalyses(_ context.Context, orderUID string) ([]*analysis.Record, error) {
	var result []*analysis.Record
	for _, uid := range m.sequence {
		if rec := m.analyses[uid]; rec.OrderUID == orderUID {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (m *mockStore) SaveBinding(_ context.Context, rec *analysis.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, rec.UID)
	rec.MarkSaved()
	return nil
}

// -- Mock Catalog --

type mockCatalog struct {
	statics  []*specification.StaticSpecification
	dynamics []*specification.DynamicSpecification
}

func (m *mockCatalog) FindStatic(_ context.Context, q specification.StaticQuery) ([]*specification.StaticSpecification, error) {
	var result []*specification.StaticSpecification
	for _, s := range m.statics {
		for _, c := range q.ClientUIDs {
			if s.ClientUID == c {
				result = append(result, s)
				break
			}
		}
	}
	return result, nil
}

func (m *mockCatalog) ListDynamic(_ context.Context) ([]*specification.DynamicSpecification, error) {
	return m.dynamics, nil
}

func (m *mockCatalog) GetDynamic(_ context.Context, uid string) (*specification.DynamicSpecification, error) {
	for _, d := range m.dynamics {
		if d.UID == uid {
			return d, nil
		}
	}
	return nil, specification.ErrNotFound
}

func newTestDispatcher() (*Dispatcher, *mockStore) {
	store := newMockStore()
	ctx := context.Background()
	store.CreateOrder(ctx, &analysis.Order{UID: "order-1", ClientUID: "C1"})
	store.CreateAnalysis(ctx, &analysis.Record{
		UID: "an-glu", OrderUID: "order-1", Keyword: "GLU", ServiceUID: "SV1", SampleTypeUID: "S1",
		Schema: analysis.SchemaCurrent,
	})
	store.CreateAnalysis(ctx, &analysis.Record{
		UID: "an-na", OrderUID: "order-1", Keyword: "NA", ServiceUID: "SV2", SampleTypeUID: "S1",
		Schema: analysis.SchemaPlain,
	})

	cat := &mockCatalog{
		dynamics: []*specification.DynamicSpecification{
			{UID: "dyn-c1", Title: "C1 ranges", ClientUID: "C1", Rows: []specification.Row{{Keyword: "GLU"}}},
		},
		statics: []*specification.StaticSpecification{
			{UID: "st-c1", Title: "C1 default", ClientUID: "C1"},
		},
	}
	r := resolution.New(cat, cat)
	return NewDispatcher(store, r, zerolog.Nop()), store
}

func TestDispatch_OrderCreated(t *testing.T) {
	d, store := newTestDispatcher()

	outcomes, err := d.Dispatch(context.Background(), NewEvent(EventOrderCreated, "order-1", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.Bound() {
			t.Errorf("expected %s bound, got %s (%v)", o.AnalysisUID, o.Status, o.Err)
		}
	}
	if uid, dynamic := store.analyses["an-glu"].EffectiveSpecification(); uid != "dyn-c1" || !dynamic {
		t.Errorf("expected dyn-c1 on GLU, got %s (dynamic=%v)", uid, dynamic)
	}
	if uid, dynamic := store.analyses["an-na"].EffectiveSpecification(); uid != "st-c1" || dynamic {
		t.Errorf("expected st-c1 on NA, got %s (dynamic=%v)", uid, dynamic)
	}
	if len(store.saved) != 2 {
		t.Errorf("expected 2 saves, got %v", store.saved)
	}
}

func TestDispatch_Redelivery(t *testing.T) {
	d, store := newTestDispatcher()
	ev := NewEvent(EventOrderCreated, "order-1", "")

	if _, err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	wrapperUID := store.analyses["an-na"].Wrapper.UID

	outcomes, err := d.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	for _, o := range outcomes {
		if o.Status != resolution.StatusSkipped {
			t.Errorf("expected %s skipped on redelivery, got %s", o.AnalysisUID, o.Status)
		}
	}
	if len(store.saved) != 2 {
		t.Errorf("redelivery must not save again, got %v", store.saved)
	}
	if store.analyses["an-na"].Wrapper.UID != wrapperUID {
		t.Error("wrapper replaced on redelivery")
	}
}

func TestDispatch_AnalysisAddedWithManualRange(t *testing.T) {
	d, store := newTestDispatcher()
	store.analyses["an-glu"].ResultsRange = &analysis.ResultsRange{Min: "1", Max: "2"}

	outcomes, err := d.Dispatch(context.Background(), NewEvent(EventAnalysisAdded, "order-1", "an-glu"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != resolution.StatusSkipped {
		t.Fatalf("expected one skipped outcome, got %+v", outcomes)
	}
	if len(store.saved) != 0 {
		t.Errorf("expected no save, got %v", store.saved)
	}
}

func TestDispatch_AnalysisModified(t *testing.T) {
	d, store := newTestDispatcher()

	outcomes, err := d.Dispatch(context.Background(), NewEvent(EventAnalysisModified, "", "an-na"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcomes[0].Bound() {
		t.Errorf("expected bound, got %s", outcomes[0].Status)
	}
	if len(store.saved) != 1 || store.saved[0] != "an-na" {
		t.Errorf("expected an-na saved, got %v", store.saved)
	}
}

func TestDispatch_Errors(t *testing.T) {
	d, _ := newTestDispatcher()
	ctx := context.Background()

	if _, err := d.Dispatch(ctx, Event{Type: "order.deleted", OrderUID: "order-1"}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
	if _, err := d.Dispatch(ctx, Event{Type: EventAnalysisAdded, OrderUID: "order-1"}); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
	if _, err := d.Dispatch(ctx, NewEvent(EventOrderCreated, "missing", "")); !errors.Is(err, analysis.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown order, got %v", err)
	}
	if _, err := d.ResolveAnalysis(ctx, "order-2", "an-glu"); !errors.Is(err, analysis.ErrNotFound) {
		t.Errorf("expected ErrNotFound for mismatched order, got %v", err)
	}
}

func TestDispatch_SaveFailure(t *testing.T) {
	d, store := newTestDispatcher()
	store.saveErr = errors.New("deadlock detected")

	_, err := d.Dispatch(context.Background(), NewEvent(EventAnalysisAdded, "order-1", "an-glu"))
	if err == nil {
		t.Fatal("expected save error")
	}
	if !store.analyses["an-glu"].Changed() {
		t.Error("unsaved binding must stay marked changed")
	}
}
