package formulary

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
	read.GET("/drug-units", h.ListUnits)
	read.GET("/drugs", h.ListDrugs)
	read.GET("/drugs/:id", h.GetDrug)
	read.GET("/dosages", h.ListDosages)
	read.GET("/dosages/:id", h.GetDosage)
	read.GET("/contraindications", h.ListContraindications)
	read.GET("/contraindications/:id", h.GetContraindication)

	write := api.Group("", auth.RequireRole(auth.Writers...))
	write.POST("/drug-units", h.CreateUnit)
	write.DELETE("/drug-units/:name", h.DeleteUnit)
	write.POST("/drugs", h.CreateDrug)
	write.PUT("/drugs/:id", h.UpdateDrug)
	write.DELETE("/drugs/:id", h.DeleteDrug)
	write.POST("/dosages", h.CreateDosage)
	write.PUT("/dosages/:id", h.UpdateDosage)
	write.DELETE("/dosages/:id", h.DeleteDosage)
	write.POST("/contraindications", h.CreateContraindication)
	write.PUT("/contraindications/:id", h.UpdateContraindication)
	write.DELETE("/contraindications/:id", h.DeleteContraindication)
}

// -- DrugUnit --

func (h *Handler) CreateUnit(c echo.Context) error {
	var u DrugUnit
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateUnit(c.Request().Context(), &u); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) ListUnits(c echo.Context) error {
	units, err := h.svc.ListUnits(c.Request().Context())
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, units)
}

func (h *Handler) DeleteUnit(c echo.Context) error {
	if err := h.svc.DeleteUnit(c.Request().Context(), c.Param("name")); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Drug --

func (h *Handler) CreateDrug(c echo.Context) error {
	var d Drug
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDrug(c.Request().Context(), &d); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &d)
}

func (h *Handler) GetDrug(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDrug(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, d)
}

func (h *Handler) ListDrugs(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDrugs(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDrug(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var d Drug
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDrug(c.Request().Context(), &d); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &d)
}

func (h *Handler) DeleteDrug(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDrug(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Dosage --

func (h *Handler) CreateDosage(c echo.Context) error {
	var d Dosage
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDosage(c.Request().Context(), &d); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &d)
}

func (h *Handler) GetDosage(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDosage(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, d)
}

func (h *Handler) ListDosages(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDosages(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDosage(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var d Dosage
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDosage(c.Request().Context(), &d); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &d)
}

func (h *Handler) DeleteDosage(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDosage(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Contraindication --

func (h *Handler) CreateContraindication(c echo.Context) error {
	var ci Contraindication
	if err := c.Bind(&ci); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateContraindication(c.Request().Context(), &ci); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusCreated, &ci)
}

func (h *Handler) GetContraindication(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	ci, err := h.svc.GetContraindication(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return httperr.JSONRow(c, http.StatusOK, ci)
}

func (h *Handler) ListContraindications(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListContraindications(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateContraindication(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	var ci Contraindication
	if err := c.Bind(&ci); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ci.ID = id
	if err := h.svc.UpdateContraindication(c.Request().Context(), &ci); err != nil {
		return httperr.From(err, http.StatusBadRequest)
	}
	return httperr.JSONRow(c, http.StatusOK, &ci)
}

func (h *Handler) DeleteContraindication(c echo.Context) error {
	id, err := httperr.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteContraindication(c.Request().Context(), id); err != nil {
		return httperr.From(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}
