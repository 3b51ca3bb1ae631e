package patient

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
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/patient-labs", h.ListLabs)
	read.GET("/patient-labs/:id", h.GetLab)

	write := api.Group("", auth.RequireRole(auth.Writers...))
	write.POST("/patients", h.CreatePatient)
	write.PUT("/patients/:id", h.UpdatePatient)
	write.DELETE("/patients/:id", h.DeletePatient)
	write.POST("/patient-labs", h.CreateLab)
	write.PUT("/patient-labs/:id", h.UpdateLab)
	write.DELETE("/patient-labs/:id", h.DeleteLab)
}

// -- Patient --

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), c.QueryParam("name"), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), &p); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- PatientLab --

func (h *Handler) CreateLab(c echo.Context) error {
	var l PatientLab
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateLab(c.Request().Context(), &l); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &l)
}

func (h *Handler) GetLab(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	l, err := h.svc.GetLab(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, l)
}

func (h *Handler) ListLabs(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := pagination.FilterFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.ListLabs(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateLab(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var l PatientLab
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.ID = id
	if err := h.svc.UpdateLab(c.Request().Context(), &l); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &l)
}

func (h *Handler) DeleteLab(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLab(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}
