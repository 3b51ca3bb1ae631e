package logic

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// ErrStaleRow is returned when a client updates a row that changed since it
// was read.
var ErrStaleRow = errors.New("logic: row changed since it was read")

type ifMatchKey struct{}

// WithIfMatch returns a context carrying the checksum a client last saw for
// the row it is about to update. An empty checksum disables the check.
func WithIfMatch(ctx context.Context, checksum string) context.Context {
	if checksum == "" {
		return ctx
	}
	return context.WithValue(ctx, ifMatchKey{}, checksum)
}

// IfMatchFrom returns the checksum stored by WithIfMatch, or "".
func IfMatchFrom(ctx context.Context) string {
	s, _ := ctx.Value(ifMatchKey{}).(string)
	return s
}

// Checksum hashes the attribute values of row. Rows with the same stored
// values have the same checksum.
func Checksum(row Row) string {
	h := fnv.New64a()
	for _, a := range Attributes(row) {
		v, _ := Get(row, a)
		if t, ok := v.(time.Time); ok {
			// postgres keeps microseconds
			v = t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
		}
		fmt.Fprintf(h, "%s=%v\x00", a, v)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// ETag formats the checksum of row as a weak entity tag.
func ETag(row Row) string {
	return `W/"` + Checksum(row) + `"`
}

// ParseETag extracts the checksum from an entity tag like W/"ab12" or "ab12".
func ParseETag(etag string) string {
	etag = strings.TrimSpace(etag)
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}

// checkIfMatch compares the client's checksum with the stored row. Only the
// first client-issued update of a session is checked; rows changed by rules
// are not.
func (s *Session) checkIfMatch(row, old Row) error {
	if s.current != nil || s.ifMatchChecked || old == nil {
		return nil
	}
	want := IfMatchFrom(s.ctx)
	if want == "" {
		return nil
	}
	s.ifMatchChecked = true
	if got := Checksum(old); got != want {
		return fmt.Errorf("update %s %d: %w", row.Entity(), row.PrimaryKey(), ErrStaleRow)
	}
	return nil
}
