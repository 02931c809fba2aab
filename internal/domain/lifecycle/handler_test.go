package lifecycle

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *mockStore, *echo.Echo) {
	d, store := newTestDispatcher()
	return NewHandler(d), store, echo.New()
}

func TestHandler_ResolveOrder(t *testing.T) {
	h, store, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("uid")
	c.SetParamValues("order-1")

	if err := h.ResolveOrder(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		OrderUID string            `json:"order_uid"`
		Outcomes []OutcomeResponse `json:"outcomes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.OrderUID != "order-1" || len(body.Outcomes) != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Outcomes[0].Status != "bound" || body.Outcomes[0].SpecificationUID != "dyn-c1" {
		t.Errorf("unexpected first outcome %+v", body.Outcomes[0])
	}
	if len(store.saved) != 2 {
		t.Errorf("expected bindings saved, got %v", store.saved)
	}
}

func TestHandler_ResolveAnalysis(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("uid", "auid")
	c.SetParamValues("order-1", "an-na")

	if err := h.ResolveAnalysis(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out OutcomeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.AnalysisUID != "an-na" || out.Kind != "static" || out.SpecificationUID != "st-c1" {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestHandler_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	tests := []struct {
		name   string
		names  []string
		values []string
		call   func(echo.Context) error
	}{
		{"unknown order", []string{"uid"}, []string{"missing"}, h.ResolveOrder},
		{"unknown analysis", []string{"uid", "auid"}, []string{"order-1", "missing"}, h.ResolveAnalysis},
		{"analysis of another order", []string{"uid", "auid"}, []string{"order-2", "an-glu"}, h.ResolveAnalysis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
			c.SetParamNames(tt.names...)
			c.SetParamValues(tt.values...)
			err := tt.call(c)
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusNotFound {
				t.Errorf("expected 404, got %v", err)
			}
		})
	}
}
