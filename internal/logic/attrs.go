package logic

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

type structInfo struct {
	names  []string
	fields map[string][]int
}

var structCache sync.Map // reflect.Type -> *structInfo

func infoOf(t reflect.Type) *structInfo {
	if v, ok := structCache.Load(t); ok {
		return v.(*structInfo)
	}
	info := &structInfo{fields: make(map[string][]int)}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if _, dup := info.fields[name]; dup {
			continue
		}
		info.names = append(info.names, name)
		info.fields[name] = f.Index
	}
	v, _ := structCache.LoadOrStore(t, info)
	return v.(*structInfo)
}

func structOf(row Row) (reflect.Value, *structInfo, error) {
	v := reflect.ValueOf(row)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, nil, fmt.Errorf("%s: row must be a non-nil pointer to a struct, got %T", entityOf(row), row)
	}
	v = v.Elem()
	return v, infoOf(v.Type()), nil
}

func entityOf(row Row) string {
	if row == nil {
		return "<nil>"
	}
	return row.Entity()
}

// Attributes returns the db attribute names of row in field order.
func Attributes(row Row) []string {
	_, info, err := structOf(row)
	if err != nil {
		return nil
	}
	return info.names
}

// HasAttribute reports whether row declares attr.
func HasAttribute(row Row, attr string) bool {
	_, info, err := structOf(row)
	if err != nil {
		return false
	}
	_, ok := info.fields[attr]
	return ok
}

// Get returns the value of attr with pointers dereferenced; a nil pointer
// yields nil. The boolean is false when the attribute does not exist.
func Get(row Row, attr string) (any, bool) {
	v, info, err := structOf(row)
	if err != nil {
		return nil, false
	}
	idx, ok := info.fields[attr]
	if !ok {
		return nil, false
	}
	f := v.FieldByIndex(idx)
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return nil, true
		}
		return f.Elem().Interface(), true
	}
	return f.Interface(), true
}

// Set assigns value to attr, allocating pointer fields and converting
// between numeric kinds. A nil value clears the field.
func Set(row Row, attr string, value any) error {
	v, info, err := structOf(row)
	if err != nil {
		return err
	}
	idx, ok := info.fields[attr]
	if !ok {
		return fmt.Errorf("%s: unknown attribute %q", row.Entity(), attr)
	}
	f := v.FieldByIndex(idx)

	src := reflect.ValueOf(value)
	for src.IsValid() && src.Kind() == reflect.Pointer {
		if src.IsNil() {
			src = reflect.Value{}
			break
		}
		src = src.Elem()
	}
	if !src.IsValid() {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}

	target := f.Type()
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	converted, err := convert(src, target)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", row.Entity(), attr, err)
	}
	if f.Kind() == reflect.Pointer {
		p := reflect.New(target)
		p.Elem().Set(converted)
		f.Set(p)
		return nil
	}
	f.Set(converted)
	return nil
}

func convert(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	if src.Type().AssignableTo(target) {
		return src, nil
	}
	if isNumeric(src.Kind()) && isNumeric(target.Kind()) {
		return src.Convert(target), nil
	}
	if src.Kind() == reflect.String && target.Kind() == reflect.String {
		return src.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %s to %s", src.Type(), target)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Snapshot returns a shallow copy of row. Pointer fields are shared with
// the original, so callers replace rather than mutate through them.
func Snapshot(row Row) Row {
	v := reflect.ValueOf(row)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return row
	}
	cp := reflect.New(v.Elem().Type())
	cp.Elem().Set(v.Elem())
	out, ok := cp.Interface().(Row)
	if !ok {
		return row
	}
	return out
}

// diff lists the attributes whose values differ between old and cur.
func diff(old, cur Row) []string {
	var out []string
	for _, a := range Attributes(cur) {
		ov, _ := Get(old, a)
		nv, _ := Get(cur, a)
		if !equalValues(ov, nv) {
			out = append(out, a)
		}
	}
	return out
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
