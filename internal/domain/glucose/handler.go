package glucose

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medai/medai/internal/platform/auth"
	"github.com/medai/medai/internal/platform/httperr"
	"github.com/medai/medai/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.Readers...))
	read.GET("/readings", h.ListReadings)
	read.GET("/readings/:id", h.GetReading)
	read.GET("/reading-history", h.ListHistory)
	read.GET("/reading-history/:id", h.GetHistory)
	read.GET("/insulin-rules", h.ListInsulinRules)
	read.GET("/insulin-rules/:id", h.GetInsulinRule)
	read.GET("/insulin", h.ListInsulin)
	read.GET("/insulin/:id", h.GetInsulin)

	// nurses record readings at the bedside
	record := api.Group("", auth.RequireRole(auth.Readers...))
	record.POST("/readings", h.CreateReading)
	record.PUT("/readings/:id", h.UpdateReading)
	record.DELETE("/readings/:id", h.DeleteReading)

	write := api.Group("", auth.RequireRole(auth.Writers...))
	write.POST("/reading-history", h.CreateHistory)
	write.PUT("/reading-history/:id", h.UpdateHistory)
	write.DELETE("/reading-history/:id", h.DeleteHistory)
	write.POST("/insulin-rules", h.CreateInsulinRule)
	write.PUT("/insulin-rules/:id", h.UpdateInsulinRule)
	write.DELETE("/insulin-rules/:id", h.DeleteInsulinRule)
	write.POST("/insulin", h.CreateInsulin)
	write.PUT("/insulin/:id", h.UpdateInsulin)
	write.DELETE("/insulin/:id", h.DeleteInsulin)
}

// -- Reading --

func (h *Handler) CreateReading(c echo.Context) error {
	var rd Reading
	if err := c.Bind(&rd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateReading(c.Request().Context(), &rd); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &rd)
}

func (h *Handler) GetReading(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	rd, err := h.svc.GetReading(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, rd)
}

func (h *Handler) ListReadings(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := pagination.FilterFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.ListReadings(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateReading(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var rd Reading
	if err := c.Bind(&rd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rd.ID = id
	if err := h.svc.UpdateReading(c.Request().Context(), &rd); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &rd)
}

func (h *Handler) DeleteReading(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteReading(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- ReadingHistory --

func (h *Handler) CreateHistory(c echo.Context) error {
	var hist ReadingHistory
	if err := c.Bind(&hist); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateHistory(c.Request().Context(), &hist); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &hist)
}

func (h *Handler) GetHistory(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	hist, err := h.svc.GetHistory(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, hist)
}

func (h *Handler) ListHistory(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := pagination.FilterFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.ListHistory(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateHistory(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var hist ReadingHistory
	if err := c.Bind(&hist); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hist.ID = id
	if err := h.svc.UpdateHistory(c.Request().Context(), &hist); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &hist)
}

func (h *Handler) DeleteHistory(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteHistory(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- InsulinRule --

func (h *Handler) CreateInsulinRule(c echo.Context) error {
	var rule InsulinRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateInsulinRule(c.Request().Context(), &rule); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &rule)
}

func (h *Handler) GetInsulinRule(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	rule, err := h.svc.GetInsulinRule(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, rule)
}

func (h *Handler) ListInsulinRules(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInsulinRules(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateInsulinRule(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var rule InsulinRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rule.ID = id
	if err := h.svc.UpdateInsulinRule(c.Request().Context(), &rule); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &rule)
}

func (h *Handler) DeleteInsulinRule(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteInsulinRule(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Insulin --

func (h *Handler) CreateInsulin(c echo.Context) error {
	var ins Insulin
	if err := c.Bind(&ins); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateInsulin(c.Request().Context(), &ins); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &ins)
}

func (h *Handler) GetInsulin(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	ins, err := h.svc.GetInsulin(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, ins)
}

func (h *Handler) ListInsulin(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := pagination.FilterFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.ListInsulin(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateInsulin(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var ins Insulin
	if err := c.Bind(&ins); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ins.ID = id
	if err := h.svc.UpdateInsulin(c.Request().Context(), &ins); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &ins)
}

func (h *Handler) DeleteInsulin(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteInsulin(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}
