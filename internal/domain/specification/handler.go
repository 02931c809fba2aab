package specification

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/labspec/internal/platform/auth"
	"github.com/ehr/labspec/pkg/pagination"
)

// Handler exposes read-only listings of the specification scope.
type Handler struct {
	catalog Catalog
}

func NewHandler(catalog Catalog) *Handler {
	return &Handler{catalog: catalog}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleAnalyst, auth.RoleLabManager))
	read.GET("/specifications/static", h.ListStatic)
	read.GET("/specifications/dynamic", h.ListDynamic)
	read.GET("/specifications/dynamic/:uid", h.GetDynamic)
}

func (h *Handler) ListStatic(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.catalog.ListStatic(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, total)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListDynamic(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, err := h.catalog.ListDynamic(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	total := len(items)
	start, end := pg.Window(total)
	resp := pagination.NewResponse(items[start:end], total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, total)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetDynamic(c echo.Context) error {
	spec, err := h.catalog.GetDynamic(c.Request().Context(), c.Param("uid"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "dynamic specification not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, spec)
}
