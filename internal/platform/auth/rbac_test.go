package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		roles   []string
		require []string
		allowed bool
	}{
		{"matching role", []string{RolePhysician}, []string{RolePhysician, RoleNurse}, true},
		{"admin passes", []string{RoleAdmin}, []string{RolePhysician}, true},
		{"nurse cannot write", []string{RoleNurse}, Writers, false},
		{"nurse can read", []string{RoleNurse}, Readers, true},
		{"no roles", nil, []string{RolePhysician}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithUser(req.Context(), "u", tt.roles))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireRole(tt.require...)(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})(c)

			if tt.allowed {
				if err != nil {
					t.Fatalf("expected access, got %v", err)
				}
				if rec.Code != http.StatusOK {
					t.Errorf("expected 200, got %d", rec.Code)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusForbidden {
				t.Errorf("expected 403, got %v", err)
			}
		})
	}
}
