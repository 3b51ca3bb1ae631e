package glucose

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medai/medai/internal/platform/auth"
	"github.com/medai/medai/pkg/pagination"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func TestHandler_CreateReading(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":1,"time_of_reading":"Lunch","reading_value":145.5,"reading_date":"2024-05-01T12:10:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateReading(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var r Reading
	_ = json.Unmarshal(rec.Body.Bytes(), &r)
	if r.ID == 0 || !r.ReadingDate.Equal(day(2024, 5, 1)) {
		t.Errorf("unexpected reading: %+v", r)
	}
}

func TestHandler_CreateReading_UnknownSlot(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":1,"time_of_reading":"brunch","reading_date":"2024-05-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateReading(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_GetReading_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/readings/abc", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := h.GetReading(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListReadings_Filter(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()
	for _, r := range []*Reading{
		{PatientID: 1, TimeOfReading: "Breakfast", ReadingDate: day(2024, 5, 1)},
		{PatientID: 2, TimeOfReading: "Breakfast", ReadingDate: day(2024, 5, 1)},
	} {
		if err := h.svc.CreateReading(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/readings?patient_id=2&reading_date=2024-05-01", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.ListReadings(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 reading, got %d", resp.Total)
	}
}

func TestHandler_ListInsulin_InvalidFilter(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/insulin?reading_date=05/01/2024", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.ListInsulin(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_NurseMayRecordReadings(t *testing.T) {
	h, e := newTestHandler()
	api := e.Group("/api/v1")
	api.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithUser(c.Request().Context(), "nurse-1", []string{auth.RoleNurse})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	h.RegisterRoutes(api)

	body := `{"patient_id":1,"time_of_reading":"Dinner","reading_date":"2024-05-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201 for nurse reading, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/insulin-rules",
		strings.NewReader(`{"blood_sugar_reading":"Lunch","blood_sugar_level":150}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for nurse rule write, got %d", rec.Code)
	}
}
