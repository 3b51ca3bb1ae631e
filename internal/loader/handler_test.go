package loader

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medai/medai/internal/platform/auth"
)

func newTestServer(t *testing.T, role string) *echo.Echo {
	t.Helper()
	e := echo.New()
	api := e.Group("/api/v1")
	api.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithUser(c.Request().Context(), "user-1", []string{role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(newTestLoader(t, seeded())).RegisterRoutes(api)
	return e
}

func multipartRequest(t *testing.T, target, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHandler_LoadPatients(t *testing.T) {
	e := newTestServer(t, auth.RoleAdmin)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/api/v1/admin/load/patients?format=full", fullCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Loaded != 2 || res.Skipped != 1 || len(res.Errors) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHandler_LoadInsulinRules(t *testing.T) {
	e := newTestServer(t, auth.RoleAdmin)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/api/v1/admin/load/insulin-rules", insulinCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_LoadRejects(t *testing.T) {
	e := newTestServer(t, auth.RoleAdmin)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/api/v1/admin/load/patients?format=xlsx", fullCSV))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/load/patients", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without file, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/api/v1/admin/load/insulin-rules", "Level\n1\n"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing columns, got %d", rec.Code)
	}
}

func TestHandler_LoadRequiresAdmin(t *testing.T) {
	e := newTestServer(t, auth.RolePhysician)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "/api/v1/admin/load/patients", fullCSV))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for physician, got %d", rec.Code)
	}
}
