package lifecycle

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/labspec/internal/domain/analysis"
	"github.com/ehr/labspec/internal/domain/resolution"
	"github.com/ehr/labspec/internal/platform/auth"
)

// Handler exposes on-demand resolution over HTTP.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	write := api.Group("", auth.RequireRole(auth.RoleSystem, auth.RoleLabManager))
	write.POST("/orders/:uid/resolve", h.ResolveOrder)
	write.POST("/orders/:uid/analyses/:auid/resolve", h.ResolveAnalysis)
}

// OutcomeResponse is the JSON form of a resolution outcome.
type OutcomeResponse struct {
	resolution.Outcome
	Error string `json:"error,omitempty"`
}

func toResponse(o resolution.Outcome) OutcomeResponse {
	r := OutcomeResponse{Outcome: o}
	if o.Err != nil && o.Status != resolution.StatusInconclusive {
		r.Error = o.Err.Error()
	}
	return r
}

func (h *Handler) ResolveOrder(c echo.Context) error {
	orderUID := c.Param("uid")
	outcomes, err := h.dispatcher.ResolveOrder(c.Request().Context(), orderUID)
	if err != nil {
		return httpError(err)
	}
	resp := make([]OutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		resp = append(resp, toResponse(o))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"order_uid": orderUID,
		"outcomes":  resp,
	})
}

func (h *Handler) ResolveAnalysis(c echo.Context) error {
	out, err := h.dispatcher.ResolveAnalysis(c.Request().Context(), c.Param("uid"), c.Param("auid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toResponse(out))
}

func httpError(err error) error {
	if errors.Is(err, analysis.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "order or analysis not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
