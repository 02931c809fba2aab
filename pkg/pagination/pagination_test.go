package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		target string
		limit  int
		offset int
	}{
		{"/", DefaultLimit, 0},
		{"/?limit=5&offset=10", 5, 10},
		{"/?limit=500", MaxLimit, 0},
		{"/?limit=-1&offset=-3", DefaultLimit, 0},
		{"/?limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := paramsFor(tt.target)
		if p.Limit != tt.limit || p.Offset != tt.offset {
			t.Errorf("%s: expected %d/%d, got %d/%d", tt.target, tt.limit, tt.offset, p.Limit, p.Offset)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a"}, 30, 20, 0)
	if !r.HasMore {
		t.Error("expected HasMore with 30 total")
	}
	r = NewResponse([]string{"a"}, 30, 20, 20)
	if r.HasMore {
		t.Error("expected no more results on the last page")
	}
}

func TestParams_Window(t *testing.T) {
	tests := []struct {
		p          Params
		n          int
		start, end int
	}{
		{Params{Limit: 20, Offset: 0}, 5, 0, 5},
		{Params{Limit: 2, Offset: 2}, 5, 2, 4},
		{Params{Limit: 10, Offset: 50}, 5, 5, 5},
	}
	for _, tt := range tests {
		start, end := tt.p.Window(tt.n)
		if start != tt.start || end != tt.end {
			t.Errorf("%+v over %d: expected [%d,%d), got [%d,%d)", tt.p, tt.n, tt.start, tt.end, start, end)
		}
	}
}

func TestParams_Links(t *testing.T) {
	p := Params{Limit: 10, Offset: 10}
	links := p.Links("/api/v1/specifications/static", 35)
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(links))
	}
	if links[1].Relation != "next" || links[1].URL != "/api/v1/specifications/static?offset=20&limit=10" {
		t.Errorf("unexpected next link %+v", links[1])
	}
	if links[2].Relation != "previous" || links[2].URL != "/api/v1/specifications/static?offset=0&limit=10" {
		t.Errorf("unexpected previous link %+v", links[2])
	}

	first := Params{Limit: 10}.Links("/x", 5)
	if len(first) != 1 || first[0].Relation != "self" {
		t.Errorf("expected only self link, got %+v", first)
	}
}

func TestParams_PreviousOffset(t *testing.T) {
	if got := (Params{Limit: 20, Offset: 5}).PreviousOffset(); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}
