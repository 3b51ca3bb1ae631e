package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// table is a CSV file read into memory with columns addressed by header
// name.
type table struct {
	cols map[string]int
	rows [][]string
}

func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	t := &table{cols: make(map[string]int, len(header))}
	for i, h := range header {
		// spreadsheet exports prefix the first header with a BOM
		t.cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	t.rows = rows
	return t, nil
}

func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := t.cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("csv: missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

// record is one data row. Line is its 1-based line number in the file.
type record struct {
	t    *table
	Line int
	vals []string
}

func (t *table) records() []record {
	out := make([]record, len(t.rows))
	for i, v := range t.rows {
		out[i] = record{t: t, Line: i + 2, vals: v}
	}
	return out
}

// str returns the trimmed cell, or "" for absent columns and NaN cells.
func (r record) str(col string) string {
	i, ok := r.t.cols[col]
	if !ok || i >= len(r.vals) {
		return ""
	}
	v := strings.TrimSpace(r.vals[i])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

func (r record) float(col string) (*float64, error) {
	s := r.str(col)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", col, err)
	}
	return &f, nil
}

// int accepts "12" as well as "12.0".
func (r record) int(col string) (*int64, error) {
	f, err := r.float(col)
	if err != nil || f == nil {
		return nil, err
	}
	n := int64(math.Round(*f))
	return &n, nil
}
