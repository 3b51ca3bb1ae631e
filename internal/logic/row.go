package logic

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Row is a persisted entity the engine can evaluate rules against.
// Attributes are the struct fields tagged with `db:"name"`; a zero primary
// key means the row has not been inserted yet.
type Row interface {
	Entity() string
	PrimaryKey() int64
	SetPrimaryKey(id int64)
}

// Action is the kind of change a logic row carries.
type Action int

const (
	Insert Action = iota
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "ins"
	case Update:
		return "upd"
	case Delete:
		return "dlt"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// LogicRow is a row under evaluation within a session.
type LogicRow struct {
	Row       Row
	OldRow    Row
	Action    Action
	NestLevel int
	Session   *Session

	changed       map[string]bool
	parentChanges map[string]bool
	parents       map[string]Row
}

func (lr *LogicRow) IsInserted() bool { return lr.Action == Insert }
func (lr *LogicRow) IsUpdated() bool { return lr.Action == Update }
func (lr *LogicRow) IsDeleted() bool { return lr.Action == Delete }

// Entity is shorthand for lr.Row.Entity().
func (lr *LogicRow) Entity() string { return lr.Row.Entity() }

// AttrChanged reports whether attr differs from the old row. Every attribute
// counts as changed on insert.
func (lr *LogicRow) AttrChanged(attr string) bool {
	if lr.Action == Insert {
		return true
	}
	return lr.changed[attr]
}

// Changed returns the changed attribute names in sorted order.
func (lr *LogicRow) Changed() []string {
	out := make([]string, 0, len(lr.changed))
	for k := range lr.changed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get reads an attribute of the current row.
func (lr *LogicRow) Get(attr string) any {
	v, _ := Get(lr.Row, attr)
	return v
}

// Old reads an attribute of the old row, or nil on insert.
func (lr *LogicRow) Old(attr string) any {
	if lr.OldRow == nil {
		return nil
	}
	v, _ := Get(lr.OldRow, attr)
	return v
}

// Parent loads the parent row reached through the relationship named role
// (the parent entity name unless the relationship declares its own name).
// Parents are cached for the lifetime of the logic row.
func (lr *LogicRow) Parent(ctx context.Context, role string) (Row, error) {
	if p, ok := lr.parents[role]; ok {
		return p, nil
	}
	if lr.Session == nil {
		return nil, fmt.Errorf("%s: parent %s: row is not attached to a session", lr.Entity(), role)
	}
	rel, ok := lr.Session.engine.graph.parentOf(lr.Entity(), role)
	if !ok {
		return nil, fmt.Errorf("%s: no relationship to parent %s", lr.Entity(), role)
	}
	if rel.LoadParent == nil {
		return nil, fmt.Errorf("%s: relationship %s has no parent loader", lr.Entity(), role)
	}
	p, err := rel.LoadParent(ctx, lr.Row)
	if err != nil {
		return nil, fmt.Errorf("%s: load parent %s: %w", lr.Entity(), role, err)
	}
	if lr.parents == nil {
		lr.parents = make(map[string]Row)
	}
	lr.parents[role] = p
	return p, nil
}

// Log writes a debug line tagged with the row's entity, action and nest
// level.
func (lr *LogicRow) Log(msg string) {
	l := zerolog.Nop()
	if lr.Session != nil {
		l = lr.Session.log
	}
	l.Debug().
		Str("entity", lr.Entity()).
		Str("action", lr.Action.String()).
		Int("nest_level", lr.NestLevel).
		Int64("key", lr.Row.PrimaryKey()).
		Msg(msg)
}

func (lr *LogicRow) markChanged(attr string) {
	if lr.changed == nil {
		lr.changed = make(map[string]bool)
	}
	lr.changed[attr] = true
}

// refreshChanged recomputes the changed set from the old and current rows.
func (lr *LogicRow) refreshChanged() {
	lr.changed = make(map[string]bool)
	if lr.Action == Insert || lr.OldRow == nil {
		for _, a := range Attributes(lr.Row) {
			lr.changed[a] = true
		}
		return
	}
	for _, a := range diff(lr.OldRow, lr.Row) {
		lr.changed[a] = true
	}
}

func (lr *LogicRow) anyChanged(attrs []string) bool {
	for _, a := range attrs {
		if lr.AttrChanged(a) {
			return true
		}
	}
	return false
}
