package formulary

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

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_CreateDrug(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/drugs", `{"drug_name":"Ozempic","drug_type":"injectable"}`), rec)

	if err := h.CreateDrug(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var d Drug
	_ = json.Unmarshal(rec.Body.Bytes(), &d)
	if d.ID == 0 || d.DrugName != "Ozempic" {
		t.Errorf("unexpected drug %+v", d)
	}
}

func TestHandler_CreateDrug_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/drugs", `{"drug_type":"oral"}`), httptest.NewRecorder())

	err := h.CreateDrug(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetDrug_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("404")

	err := h.GetDrug(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_GetDrug_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-number")

	err := h.GetDrug(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListDrugs(t *testing.T) {
	h, e := newTestHandler()
	for _, name := range []string{"Metformin", "Glimepiride", "Tradjenta"} {
		_ = h.svc.CreateDrug(context.Background(), &Drug{DrugName: name})
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/drugs?limit=2", nil), rec)
	if err := h.ListDrugs(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 3 || !resp.HasMore {
		t.Errorf("expected total 3 with more pages, got %+v", resp)
	}
}

func TestHandler_CreateContraindication_Unprocessable(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/contraindications", `{"drug_id_1":3,"drug_id_2":3}`), httptest.NewRecorder())

	err := h.CreateContraindication(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_DeleteUnit_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("name")
	c.SetParamValues("grains")

	err := h.DeleteUnit(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_RoutesRequireRoles(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/drugs", strings.NewReader(`{"drug_name":"X"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithUser(req.Context(), "n1", []string{auth.RoleNurse}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected nurse write to be forbidden, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/drugs", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "n1", []string{auth.RoleNurse}))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected nurse read to succeed, got %d", rec.Code)
	}
}
