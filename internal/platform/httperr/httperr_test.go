package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/db"
)

func TestFrom(t *testing.T) {
	constraint := &logic.ConstraintError{Violations: []logic.Violation{
		{Entity: "Patient", Constraint: "adult", Message: "Patient must be 18 or older"},
	}}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"constraint", fmt.Errorf("create patient: %w", constraint), http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("patient 7: %w", db.ErrNotFound), http.StatusNotFound},
		{"nest level", fmt.Errorf("insert Reading: %w", logic.ErrMaxNestLevel), http.StatusInternalServerError},
		{"stale update", fmt.Errorf("update Patient 3: %w", logic.ErrStaleRow), http.StatusConflict},
		{"passthrough", echo.NewHTTPError(http.StatusForbidden, "nope"), http.StatusForbidden},
		{"fallback", errors.New("name is required"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := From(tt.err, http.StatusBadRequest); got.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got.Code)
			}
		})
	}
}

func TestFrom_ConstraintBody(t *testing.T) {
	err := &logic.ConstraintError{Violations: []logic.Violation{
		{Entity: "Contraindication", Constraint: "distinct_drugs", Message: "Drug_1 and Drug_2 must be different"},
	}}
	body, ok := From(err, http.StatusBadRequest).Message.(ViolationBody)
	if !ok {
		t.Fatalf("expected ViolationBody, got %T", From(err, http.StatusBadRequest).Message)
	}
	if len(body.Violations) != 1 || body.Violations[0].Constraint != "distinct_drugs" {
		t.Errorf("unexpected violations: %+v", body.Violations)
	}
}

type unit struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"unit_name" json:"unit_name"`
}

func (u *unit) Entity() string         { return "Unit" }
func (u *unit) PrimaryKey() int64      { return u.ID }
func (u *unit) SetPrimaryKey(id int64) { u.ID = id }

func TestJSONRow(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	u := &unit{ID: 4, Name: "mg"}

	if err := JSONRow(c, http.StatusOK, u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("ETag"); got != logic.ETag(u) {
		t.Errorf("expected ETag %s, got %q", logic.ETag(u), got)
	}
	if !strings.Contains(rec.Body.String(), `"unit_name":"mg"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestParamID(t *testing.T) {
	e := echo.New()
	for _, tt := range []struct {
		raw string
		ok  bool
	}{{"42", true}, {"0", false}, {"-3", false}, {"abc", false}} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(tt.raw)
		id, err := ParamID(c, "id")
		if tt.ok && (err != nil || id != 42) {
			t.Errorf("%s: expected 42, got %d (%v)", tt.raw, id, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s: expected error", tt.raw)
		}
	}
}
