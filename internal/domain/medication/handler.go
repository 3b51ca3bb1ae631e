package medication

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
	read.GET("/patient-medications", h.ListMedications)
	read.GET("/patient-medications/:id", h.GetMedication)
	read.GET("/recommendations", h.ListRecommendations)
	read.GET("/recommendations/:id", h.GetRecommendation)

	write := api.Group("", auth.RequireRole(auth.Writers...))
	write.POST("/patient-medications", h.CreateMedication)
	write.PUT("/patient-medications/:id", h.UpdateMedication)
	write.DELETE("/patient-medications/:id", h.DeleteMedication)
	write.POST("/recommendations", h.CreateRecommendation)
	write.PUT("/recommendations/:id", h.UpdateRecommendation)
	write.DELETE("/recommendations/:id", h.DeleteRecommendation)
}

// -- PatientMedication --

func (h *Handler) CreateMedication(c echo.Context) error {
	var m PatientMedication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateMedication(c.Request().Context(), &m); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := pagination.FilterFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.ListMedications(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var m PatientMedication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.UpdateMedication(c.Request().Context(), &m); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Recommendation --

func (h *Handler) CreateRecommendation(c echo.Context) error {
	var rec Recommendation
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRecommendation(c.Request().Context(), &rec); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &rec)
}

func (h *Handler) GetRecommendation(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	rec, err := h.svc.GetRecommendation(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, rec)
}

func (h *Handler) ListRecommendations(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := pagination.FilterFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.ListRecommendations(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateRecommendation(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var rec Recommendation
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec.ID = id
	if err := h.svc.UpdateRecommendation(c.Request().Context(), &rec); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &rec)
}

func (h *Handler) DeleteRecommendation(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRecommendation(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}
