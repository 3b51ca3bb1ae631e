package loader

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medai/medai/internal/platform/auth"
)

// MaxUploadSize bounds an uploaded CSV file.
const MaxUploadSize = 10 << 20

type Handler struct {
	loader *Loader
}

func NewHandler(l *Loader) *Handler {
	return &Handler{loader: l}
}

// RegisterRoutes mounts the admin upload endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/admin/load", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/patients", h.LoadPatients)
	admin.POST("/insulin-rules", h.LoadInsulinRules)
}

func (h *Handler) LoadPatients(c echo.Context) error {
	f, err := ParseFormat(c.QueryParam("format"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	src, err := upload(c)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := h.loader.Patients(c.Request().Context(), src, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) LoadInsulinRules(c echo.Context) error {
	src, err := upload(c)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := h.loader.InsulinRules(c.Request().Context(), src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

// upload opens the multipart "file" field.
func upload(c echo.Context) (io.ReadCloser, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if file.Size > MaxUploadSize {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds 10 MiB")
	}
	src, err := file.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	return src, nil
}
