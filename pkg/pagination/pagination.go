package pagination

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	DateLayout = "2006-01-02"
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset query parameters, clamping limit to
// MaxLimit.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit, _ = strconv.Atoi(c.QueryParam("page[limit]"))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset <= 0 {
		offset, _ = strconv.Atoi(c.QueryParam("page[offset]"))
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	if data == nil {
		data = []struct{}{}
	}
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// SQL returns the LIMIT and OFFSET clause for SQL queries.
func (p Params) SQL() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", p.Limit, p.Offset)
}

func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// Filter holds the list filters shared by the clinical endpoints.
type Filter struct {
	PatientID *int64
	Date      *time.Time
}

// Empty reports whether no filter was given.
func (f Filter) Empty() bool {
	return f.PatientID == nil && f.Date == nil
}

// FilterFromContext parses patient_id and reading_date (or the
// filter[...] spelling of either).
func FilterFromContext(c echo.Context) (Filter, error) {
	var f Filter
	if raw := firstParam(c, "patient_id", "filter[patient_id]"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, fmt.Errorf("invalid patient_id %q", raw)
		}
		f.PatientID = &id
	}
	if raw := firstParam(c, "reading_date", "filter[reading_date]"); raw != "" {
		d, err := time.Parse(DateLayout, raw)
		if err != nil {
			return f, fmt.Errorf("invalid reading_date %q: want YYYY-MM-DD", raw)
		}
		f.Date = &d
	}
	return f, nil
}

func firstParam(c echo.Context, names ...string) string {
	for _, n := range names {
		if v := c.QueryParam(n); v != "" {
			return v
		}
	}
	return ""
}

// Where renders f as a SQL WHERE clause (empty when f is empty) with
// positional arguments starting at $1. dateColumn names the column the
// date filter compares against; an empty dateColumn ignores the date.
func (f Filter) Where(dateColumn string) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.Date != nil && dateColumn != "" {
		args = append(args, *f.Date)
		conds = append(conds, fmt.Sprintf("%s = $%d", dateColumn, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
