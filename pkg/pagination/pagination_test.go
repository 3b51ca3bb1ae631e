package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newContext(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext(""))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(newContext("limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_PageParams(t *testing.T) {
	q := url.Values{"page[limit]": {"25"}, "page[offset]": {"5"}}
	p := FromContext(newContext(q.Encode()))

	if p.Limit != 25 {
		t.Errorf("expected limit 25, got %d", p.Limit)
	}
	if p.Offset != 5 {
		t.Errorf("expected offset 5, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(newContext("limit=500"))

	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(newContext("offset=-5"))

	if p.Offset != 0 {
		t.Errorf("expected offset 0 for negative input, got %d", p.Offset)
	}
}

func TestSQL(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}
	expected := "LIMIT 20 OFFSET 40"
	if p.SQL() != expected {
		t.Errorf("expected %q, got %q", expected, p.SQL())
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b", "c"}
	r := NewResponse(data, 10, 3, 0)

	if r.Total != 10 {
		t.Errorf("expected total 10, got %d", r.Total)
	}
	if !r.HasMore {
		t.Error("expected has_more to be true when offset+limit < total")
	}

	r2 := NewResponse(data, 3, 3, 0)
	if r2.HasMore {
		t.Error("expected has_more to be false when offset+limit >= total")
	}

	if r3 := NewResponse(nil, 0, 3, 0); r3.Data == nil {
		t.Error("expected nil data to be replaced by an empty list")
	}
}

func TestParams_HasNext(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   bool
	}{
		{"more results", Params{Limit: 10, Offset: 0}, 25, true},
		{"exact end", Params{Limit: 10, Offset: 15}, 25, false},
		{"no results", Params{Limit: 10, Offset: 0}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.HasNext(tt.total); got != tt.want {
				t.Errorf("HasNext() = %v, want %v", got, tt.want)
			}
		})
	}
	if got := (Params{Limit: 10, Offset: 5}).NextOffset(); got != 15 {
		t.Errorf("NextOffset() = %d, want 15", got)
	}
}

func TestFilterFromContext(t *testing.T) {
	f, err := FilterFromContext(newContext("patient_id=42&reading_date=2026-03-04"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.PatientID == nil || *f.PatientID != 42 {
		t.Errorf("expected patient 42, got %v", f.PatientID)
	}
	if f.Date == nil || f.Date.Format(DateLayout) != "2026-03-04" {
		t.Errorf("expected date 2026-03-04, got %v", f.Date)
	}
	if f.Empty() {
		t.Error("expected filter to be non-empty")
	}

	q := url.Values{"filter[patient_id]": {"7"}}
	f, err = FilterFromContext(newContext(q.Encode()))
	if err != nil || f.PatientID == nil || *f.PatientID != 7 {
		t.Errorf("expected filter[patient_id] to be honoured, got %v, %v", f.PatientID, err)
	}

	f, err = FilterFromContext(newContext(""))
	if err != nil || !f.Empty() {
		t.Errorf("expected empty filter, got %+v, %v", f, err)
	}
}

func TestFilterFromContext_Invalid(t *testing.T) {
	for _, q := range []string{"patient_id=abc", "patient_id=-1", "reading_date=03/04/2026"} {
		if _, err := FilterFromContext(newContext(q)); err == nil {
			t.Errorf("expected error for %q", q)
		}
	}
}

func TestFilter_Where(t *testing.T) {
	pid := int64(9)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	clause, args := Filter{}.Where("reading_date")
	if clause != "" || args != nil {
		t.Errorf("expected empty clause, got %q %v", clause, args)
	}

	clause, args = Filter{PatientID: &pid, Date: &day}.Where("reading_date")
	if clause != " WHERE patient_id = $1 AND reading_date = $2" {
		t.Errorf("unexpected clause %q", clause)
	}
	if len(args) != 2 || args[0] != pid {
		t.Errorf("unexpected args %v", args)
	}

	clause, args = Filter{PatientID: &pid, Date: &day}.Where("")
	if clause != " WHERE patient_id = $1" || len(args) != 1 {
		t.Errorf("expected date to be ignored, got %q %v", clause, args)
	}
}
