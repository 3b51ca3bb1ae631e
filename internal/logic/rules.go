package logic

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
)

// EventKind selects the point in the session lifecycle where a row event
// runs.
type EventKind int

const (
	EventEarlyAllClasses EventKind = iota
	EventEarly
	EventRow
	EventAfterFlush
	EventCommit
)

func (k EventKind) String() string {
	switch k {
	case EventEarlyAllClasses:
		return "early_all_classes"
	case EventEarly:
		return "early"
	case EventRow:
		return "row"
	case EventAfterFlush:
		return "after_flush"
	case EventCommit:
		return "commit"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// EventFunc is the callback of a row event. Rows it inserts, updates or
// deletes through lr.Session join the same transaction one nest level
// deeper.
type EventFunc func(ctx context.Context, lr *LogicRow) error

// Constraint rejects a row when Check returns false. ErrorMsg may reference
// attributes as {attr} or {row.attr}.
type Constraint struct {
	Entity    string
	Name      string
	DependsOn []string
	Check     func(lr *LogicRow) bool
	ErrorMsg  string
}

// Formula derives Attribute from other attributes of the same row or of a
// parent ("Drug.drug_name").
type Formula struct {
	Entity    string
	Attribute string
	DependsOn []string
	Calc      func(ctx context.Context, lr *LogicRow) (any, error)
}

// Copy sets Attribute from the parent's ParentAttribute when the row is
// inserted or its foreign key changes. Later parent changes are not
// propagated.
type Copy struct {
	Entity          string
	Attribute       string
	Parent          string
	ParentAttribute string
}

// RowEvent is a callback bound to an entity (empty for all entities).
type RowEvent struct {
	Kind   EventKind
	Entity string
	Name   string
	Fn     EventFunc
}

// Relationship links a child entity to its parent through ForeignKey.
// Name distinguishes several relationships between the same pair and
// defaults to the parent entity name.
type Relationship struct {
	Name         string
	Parent       string
	Child        string
	ForeignKey   string
	LoadParent   func(ctx context.Context, child Row) (Row, error)
	LoadChildren func(ctx context.Context, parent Row) ([]Row, error)
}

func (r Relationship) role() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Parent
}

// RuleBank collects rule declarations until Activate turns them into a
// dependency graph.
type RuleBank struct {
	constraints   []Constraint
	formulas      []Formula
	copies        []Copy
	events        []RowEvent
	relationships []Relationship
	models        map[string]reflect.Type
}

func NewRuleBank() *RuleBank {
	return &RuleBank{models: make(map[string]reflect.Type)}
}

func (b *RuleBank) Constraint(c Constraint) { b.constraints = append(b.constraints, c) }

func (b *RuleBank) Formula(f Formula) { b.formulas = append(b.formulas, f) }

func (b *RuleBank) Copy(c Copy) { b.copies = append(b.copies, c) }

func (b *RuleBank) Relationship(r Relationship) { b.relationships = append(b.relationships, r) }

func (b *RuleBank) EarlyRowEventAllClasses(name string, fn EventFunc) {
	b.events = append(b.events, RowEvent{Kind: EventEarlyAllClasses, Name: name, Fn: fn})
}

func (b *RuleBank) EarlyRowEvent(entity, name string, fn EventFunc) {
	b.events = append(b.events, RowEvent{Kind: EventEarly, Entity: entity, Name: name, Fn: fn})
}

func (b *RuleBank) RowEvent(entity, name string, fn EventFunc) {
	b.events = append(b.events, RowEvent{Kind: EventRow, Entity: entity, Name: name, Fn: fn})
}

func (b *RuleBank) AfterFlushRowEvent(entity, name string, fn EventFunc) {
	b.events = append(b.events, RowEvent{Kind: EventAfterFlush, Entity: entity, Name: name, Fn: fn})
}

func (b *RuleBank) CommitRowEvent(entity, name string, fn EventFunc) {
	b.events = append(b.events, RowEvent{Kind: EventCommit, Entity: entity, Name: name, Fn: fn})
}

// Model registers prototype rows so Activate can check that every attribute
// a rule names exists.
func (b *RuleBank) Model(rows ...Row) {
	for _, r := range rows {
		b.models[r.Entity()] = reflect.TypeOf(r)
	}
}

func (b *RuleBank) hasAttribute(entity, attr string) (known, ok bool) {
	t, known := b.models[entity]
	if !known {
		return false, true
	}
	proto, _ := reflect.New(t.Elem()).Interface().(Row)
	return true, HasAttribute(proto, attr)
}

var placeholder = regexp.MustCompile(`\{(?:row\.)?([A-Za-z_][A-Za-z0-9_]*)\}`)

// renderMessage substitutes {attr} placeholders with the row's values.
func renderMessage(msg string, row Row) string {
	return placeholder.ReplaceAllStringFunc(msg, func(m string) string {
		attr := placeholder.FindStringSubmatch(m)[1]
		v, ok := Get(row, attr)
		if !ok {
			return m
		}
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}
