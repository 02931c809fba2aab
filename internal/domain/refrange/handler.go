package refrange

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/labspec/internal/domain/specification"
	"github.com/ehr/labspec/internal/platform/auth"
)

// Handler serves row lookups against a dynamic specification.
type Handler struct {
	catalog   specification.DynamicCatalog
	evaluator *Evaluator
}

func NewHandler(catalog specification.DynamicCatalog, evaluator *Evaluator) *Handler {
	return &Handler{catalog: catalog, evaluator: evaluator}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleAnalyst, auth.RoleLabManager))
	read.POST("/specifications/dynamic/:uid/select-row", h.SelectRow)
}

type SelectRowRequest struct {
	Patient PatientContext `json:"patient"`
	Sample  SampleContext  `json:"sample"`
}

type SelectRowResponse struct {
	SpecificationUID string             `json:"specification_uid"`
	Matched          bool               `json:"matched"`
	Row              *specification.Row `json:"row,omitempty"`
}

func (h *Handler) SelectRow(c echo.Context) error {
	var req SelectRowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	spec, err := h.catalog.GetDynamic(c.Request().Context(), c.Param("uid"))
	if errors.Is(err, specification.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "dynamic specification not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !spec.RowsInspectable() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "specification rows are not available")
	}

	resp := SelectRowResponse{SpecificationUID: spec.UID}
	if row, ok := h.evaluator.SelectRow(spec.Rows, req.Patient, req.Sample); ok {
		resp.Matched = true
		resp.Row = &row
	}
	return c.JSON(http.StatusOK, resp)
}
