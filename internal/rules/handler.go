package rules

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/auth"
)

// Handler serves the activated rule bank for inspection.
type Handler struct {
	engine *logic.Engine
}

func NewHandler(engine *logic.Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.Readers...))
	read.GET("/rules", h.Report)
}

// Report returns the rule report as JSON, or YAML with ?format=yaml.
func (h *Handler) Report(c echo.Context) error {
	rep := h.engine.Report()
	switch c.QueryParam("format") {
	case "", "json":
		return c.JSON(http.StatusOK, rep)
	case "yaml":
		out, err := rep.YAML()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.Blob(http.StatusOK, "application/yaml", out)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "format must be json or yaml")
	}
}
