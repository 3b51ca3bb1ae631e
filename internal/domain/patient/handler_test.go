package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medai/medai/internal/platform/httperr"
	"github.com/medai/medai/internal/platform/middleware"
	"github.com/medai/medai/pkg/pagination"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func birthDateJSON(years int) string {
	return time.Now().AddDate(-years, 0, -1).UTC().Format(time.RFC3339)
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()
	body := fmt.Sprintf(`{"name":"Grace","birth_date":%q,"weight":160,"patient_sex":"f"}`, birthDateJSON(61))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p Patient
	_ = json.Unmarshal(rec.Body.Bytes(), &p)
	if p.Age == nil || *p.Age != 61 {
		t.Errorf("expected derived age 61, got %v", p.Age)
	}
	if p.PatientSex == nil || *p.PatientSex != "F" {
		t.Errorf("expected normalized sex F, got %v", p.PatientSex)
	}
}

func TestHandler_CreatePatient_Minor(t *testing.T) {
	h, e := newTestHandler()
	body := fmt.Sprintf(`{"name":"Tim","birth_date":%q}`, birthDateJSON(9))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreatePatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
	body2, ok := httpErr.Message.(httperr.ViolationBody)
	if !ok || len(body2.Violations) != 1 {
		t.Errorf("expected one violation, got %#v", httpErr.Message)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("12")

	err := h.GetPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListPatients_ByName(t *testing.T) {
	h, e := newTestHandler()
	for _, name := range []string{"Ada", "Grace", "Adele"} {
		_ = h.svc.CreatePatient(context.Background(), &Patient{Name: name, BirthDate: yearsAgo(30)})
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients?name=ad", nil), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Errorf("expected 2 matches, got %d", resp.Total)
	}
}

func TestHandler_ListLabs_InvalidFilter(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patient-labs?patient_id=abc", nil), httptest.NewRecorder())

	err := h.ListLabs(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	h, e := newTestHandler()
	p := &Patient{Name: "Ada", BirthDate: yearsAgo(30)}
	_ = h.svc.CreatePatient(context.Background(), p)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(p.ID))
	if err := h.DeletePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_UpdatePatient_IfMatch(t *testing.T) {
	h, e := newTestHandler()
	p := &Patient{Name: "Ada", BirthDate: yearsAgo(30)}
	if err := h.svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(p.ID))
	if err := h.GetPatient(c); err != nil {
		t.Fatalf("get: %v", err)
	}
	read := rec.Header().Get("ETag")
	if read == "" {
		t.Fatal("expected ETag on read")
	}

	put := func(name, ifMatch string) (*httptest.ResponseRecorder, error) {
		body := fmt.Sprintf(`{"name":%q,"birth_date":%q}`, name, birthDateJSON(30))
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("If-Match", ifMatch)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(p.ID))
		return rec, middleware.IfMatch()(h.UpdatePatient)(c)
	}

	rec, err := put("Ada Lovelace", read)
	if err != nil {
		t.Fatalf("update with current ETag: %v", err)
	}
	written := rec.Header().Get("ETag")
	if written == "" || written == read {
		t.Errorf("expected a new ETag after update, got %q", written)
	}

	// a second client still holding the first ETag
	_, err = put("Ada Byron", read)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
	stored, _ := h.svc.GetPatient(context.Background(), p.ID)
	if stored.Name != "Ada Lovelace" {
		t.Errorf("stale update must not be stored, got %q", stored.Name)
	}

	if _, err := put("Ada King", written); err != nil {
		t.Errorf("update with the ETag returned by the last write: %v", err)
	}
}
