// Package httperr maps service and rule-engine errors onto echo HTTP
// errors.
package httperr

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/db"
)

// ViolationBody is the 422 response for failed constraints.
type ViolationBody struct {
	Message    string            `json:"message"`
	Violations []logic.Violation `json:"violations"`
}

// From converts err to an *echo.HTTPError. Constraint failures become 422,
// missing rows 404, stale updates 409; anything else gets the fallback
// status.
func From(err error, fallback int) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var ce *logic.ConstraintError
	if errors.As(err, &ce) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ViolationBody{
			Message:    ce.Error(),
			Violations: ce.Violations,
		})
	}
	if errors.Is(err, db.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if errors.Is(err, logic.ErrStaleRow) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if errors.Is(err, logic.ErrMaxNestLevel) || errors.Is(err, logic.ErrNoPersister) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return echo.NewHTTPError(fallback, err.Error())
}

// JSONRow writes row as JSON with its checksum in the ETag header, for
// clients to send back as If-Match.
func JSONRow(c echo.Context, code int, row logic.Row) error {
	c.Response().Header().Set("ETag", logic.ETag(row))
	return c.JSON(code, row)
}

// ParamID parses the named path parameter as a positive row id.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
