package logic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constCalc(v any) func(context.Context, *LogicRow) (any, error) {
	return func(context.Context, *LogicRow) (any, error) { return v, nil }
}

func entryBank() *RuleBank {
	store := newMemStore()
	b := NewRuleBank()
	b.Model(&account{}, &entry{})
	b.Relationship(store.relationship())
	// declared out of dependency order on purpose
	b.Formula(Formula{Entity: "Entry", Attribute: "rated", DependsOn: []string{"total", "Account.rate"}, Calc: constCalc(0.0)})
	b.Formula(Formula{Entity: "Entry", Attribute: "total", DependsOn: []string{"amount", "fee"}, Calc: constCalc(0.0)})
	b.Formula(Formula{Entity: "Entry", Attribute: "fee", DependsOn: []string{"amount"}, Calc: constCalc(0.0)})
	b.Copy(Copy{Entity: "Entry", Attribute: "tier", Parent: "Account", ParentAttribute: "tier"})
	return b
}

func TestActivate_OrdersFormulasByDependency(t *testing.T) {
	g, err := entryBank().Activate()
	require.NoError(t, err)
	assert.Equal(t, []string{"fee", "total", "rated"}, g.Order("Entry"))
}

func TestActivate_DeclarationOrderBreaksTies(t *testing.T) {
	b := NewRuleBank()
	b.Formula(Formula{Entity: "Entry", Attribute: "total", DependsOn: []string{"amount"}, Calc: constCalc(0.0)})
	b.Formula(Formula{Entity: "Entry", Attribute: "fee", DependsOn: []string{"amount"}, Calc: constCalc(0.0)})
	b.Formula(Formula{Entity: "Entry", Attribute: "memo", Calc: constCalc("x")})

	g, err := b.Activate()
	require.NoError(t, err)
	assert.Equal(t, []string{"total", "fee", "memo"}, g.Order("Entry"))
}

func TestActivate_DetectsCycle(t *testing.T) {
	b := NewRuleBank()
	b.Formula(Formula{Entity: "Entry", Attribute: "fee", DependsOn: []string{"total"}, Calc: constCalc(0.0)})
	b.Formula(Formula{Entity: "Entry", Attribute: "total", DependsOn: []string{"fee"}, Calc: constCalc(0.0)})

	_, err := b.Activate()
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle), "expected CycleError, got %v", err)
	assert.Equal(t, []string{"Entry.fee", "Entry.total", "Entry.fee"}, cycle.Path)
	assert.Contains(t, err.Error(), "Entry.fee -> Entry.total -> Entry.fee")
}

func TestActivate_DetectsSelfLoop(t *testing.T) {
	b := NewRuleBank()
	b.Formula(Formula{Entity: "Entry", Attribute: "total", DependsOn: []string{"total"}, Calc: constCalc(0.0)})

	_, err := b.Activate()
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"Entry.total", "Entry.total"}, cycle.Path)
}

func TestActivate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		declare func(b *RuleBank)
	}{
		{"parent reference without relationship", func(b *RuleBank) {
			b.Formula(Formula{Entity: "Entry", Attribute: "rated", DependsOn: []string{"Account.rate"}, Calc: constCalc(0.0)})
		}},
		{"copy without relationship", func(b *RuleBank) {
			b.Copy(Copy{Entity: "Entry", Attribute: "tier", Parent: "Account", ParentAttribute: "tier"})
		}},
		{"formula declared twice", func(b *RuleBank) {
			b.Formula(Formula{Entity: "Entry", Attribute: "fee", Calc: constCalc(0.0)})
			b.Formula(Formula{Entity: "Entry", Attribute: "fee", Calc: constCalc(1.0)})
		}},
		{"unknown attribute", func(b *RuleBank) {
			b.Formula(Formula{Entity: "Entry", Attribute: "fees", Calc: constCalc(0.0)})
		}},
		{"unknown dependency", func(b *RuleBank) {
			b.Formula(Formula{Entity: "Entry", Attribute: "fee", DependsOn: []string{"amt"}, Calc: constCalc(0.0)})
		}},
		{"formula without calc", func(b *RuleBank) {
			b.Formula(Formula{Entity: "Entry", Attribute: "fee"})
		}},
		{"constraint without check", func(b *RuleBank) {
			b.Constraint(Constraint{Entity: "Entry", Name: "positive"})
		}},
		{"event without callback", func(b *RuleBank) {
			b.RowEvent("Entry", "noop", nil)
		}},
		{"all-classes event with entity", func(b *RuleBank) {
			b.events = append(b.events, RowEvent{Kind: EventEarlyAllClasses, Entity: "Entry", Name: "x", Fn: func(context.Context, *LogicRow) error { return nil }})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewRuleBank()
			b.Model(&account{}, &entry{})
			tt.declare(b)
			_, err := b.Activate()
			assert.Error(t, err)
		})
	}
}

func TestGraph_Affected(t *testing.T) {
	g, err := entryBank().Activate()
	require.NoError(t, err)

	assert.Equal(t, []string{"fee", "total", "rated"}, g.AffectedAttributes("Entry", []string{"Entry.amount"}))
	assert.Equal(t, []string{"total", "rated"}, g.AffectedAttributes("Entry", []string{"Entry.fee"}))
	assert.Equal(t, []string{"rated"}, g.AffectedAttributes("Entry", []string{"Account.rate"}))
	assert.Empty(t, g.AffectedAttributes("Entry", []string{"Entry.memo"}))
	assert.Empty(t, g.AffectedAttributes("Account", []string{"Account.rate"}))
}

func TestGraph_Cascades(t *testing.T) {
	g, err := entryBank().Activate()
	require.NoError(t, err)

	assert.Equal(t, []string{"Entry"}, g.CascadeChildren("Account", []string{"name", "rate"}))
	// copies do not cascade
	assert.Empty(t, g.CascadeChildren("Account", []string{"tier"}))
	assert.Empty(t, g.CascadeChildren("Entry", []string{"amount"}))
}

func TestRuleBankReport(t *testing.T) {
	b := entryBank()
	b.Constraint(Constraint{Entity: "Entry", Name: "positive", DependsOn: []string{"amount"}, Check: func(*LogicRow) bool { return true }, ErrorMsg: "amount must be positive"})
	b.CommitRowEvent("Entry", "audit", func(context.Context, *LogicRow) error { return nil })
	b.EarlyRowEventAllClasses("stamp", func(context.Context, *LogicRow) error { return nil })

	rep, err := b.Report()
	require.NoError(t, err)
	require.Len(t, rep.Entities, 2)
	assert.Equal(t, "*", rep.Entities[0].Entity)

	e := rep.Entities[1]
	assert.Equal(t, "Entry", e.Entity)
	assert.Equal(t, []string{"Account via account_id"}, e.Parents)
	require.Len(t, e.Formulas, 3)
	assert.Equal(t, "fee", e.Formulas[0].Attribute)
	assert.Equal(t, []CopyReport{{Attribute: "tier", From: "Account.tier"}}, e.Copies)
	assert.Equal(t, []EventReport{{Kind: "commit", Name: "audit"}}, e.Events)

	out, err := rep.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "entity: Entry")
	assert.Contains(t, string(out), "depends_on:")

	js, err := rep.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(js), `"attribute": "rated"`)
}

func TestRuleBankReport_ListsCycles(t *testing.T) {
	b := NewRuleBank()
	b.Formula(Formula{Entity: "Entry", Attribute: "fee", DependsOn: []string{"total"}, Calc: constCalc(0.0)})
	b.Formula(Formula{Entity: "Entry", Attribute: "total", DependsOn: []string{"fee"}, Calc: constCalc(0.0)})

	rep, err := b.Report()
	require.NoError(t, err)
	require.Len(t, rep.Cycles, 1)
	assert.Contains(t, rep.String(), "cycle: Entry.fee -> Entry.total -> Entry.fee")
}
