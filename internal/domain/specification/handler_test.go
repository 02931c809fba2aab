package specification

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() *Handler {
	return NewHandler(&mockCatalog{
		statics: []*StaticSpecification{
			{UID: "s1", Title: "Adults", ClientUID: "C1"},
			{UID: "s2", Title: "Children"},
			{UID: "s3", Title: "Neonates"},
		},
		dynamics: []*DynamicSpecification{
			{UID: "d1", Title: "Glucose", Rows: []Row{{Keyword: "GLU"}}},
			{UID: "d2", Title: "Sodium", Rows: []Row{{Keyword: "NA"}}},
		},
	})
}

func TestHandler_ListStatic(t *testing.T) {
	h := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/specifications/static?limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListStatic(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data    []StaticSpecification `json:"data"`
		Total   int                   `json:"total"`
		HasMore bool                  `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 || body.Total != 3 || !body.HasMore {
		t.Errorf("unexpected page %+v", body)
	}
}

func TestHandler_ListDynamic_Window(t *testing.T) {
	h := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/specifications/dynamic?offset=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDynamic(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data  []DynamicSpecification `json:"data"`
		Total int                    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].UID != "d2" || body.Total != 2 {
		t.Errorf("unexpected page %+v", body)
	}
}

func TestHandler_GetDynamic(t *testing.T) {
	h := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("uid")
	c.SetParamValues("d1")

	if err := h.GetDynamic(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetDynamic_NotFound(t *testing.T) {
	h := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("uid")
	c.SetParamValues("missing")

	err := h.GetDynamic(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	newTestHandler().RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET /api/v1/specifications/static":       false,
		"GET /api/v1/specifications/dynamic":      false,
		"GET /api/v1/specifications/dynamic/:uid": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("route %s not registered", k)
		}
	}
}
