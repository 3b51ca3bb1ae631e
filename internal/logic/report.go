package logic

import (
	"encoding/json"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Report lists the declared rules per entity with formulas in evaluation
// order.
type Report struct {
	Entities []EntityReport `json:"entities" yaml:"entities"`
	Cycles   [][]string     `json:"cycles,omitempty" yaml:"cycles,omitempty"`
}

type EntityReport struct {
	Entity      string             `json:"entity" yaml:"entity"`
	Parents     []string           `json:"parents,omitempty" yaml:"parents,omitempty"`
	Formulas    []FormulaReport    `json:"formulas,omitempty" yaml:"formulas,omitempty"`
	Copies      []CopyReport       `json:"copies,omitempty" yaml:"copies,omitempty"`
	Constraints []ConstraintReport `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Events      []EventReport      `json:"events,omitempty" yaml:"events,omitempty"`
}

type FormulaReport struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

type CopyReport struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	From      string `json:"from" yaml:"from"`
}

type ConstraintReport struct {
	Name      string   `json:"name" yaml:"name"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Message   string   `json:"message" yaml:"message"`
}

type EventReport struct {
	Kind string `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
}

// Report builds the report of an activated graph.
func (g *Graph) Report() Report {
	byEntity := make(map[string]*EntityReport)
	get := func(entity string) *EntityReport {
		if entity == "" {
			entity = "*"
		}
		r, ok := byEntity[entity]
		if !ok {
			r = &EntityReport{Entity: entity}
			byEntity[entity] = r
		}
		return r
	}

	for child, rels := range g.parents {
		r := get(child)
		for role, rel := range rels {
			label := rel.Parent + " via " + rel.ForeignKey
			if role != rel.Parent {
				label = role + ": " + label
			}
			r.Parents = append(r.Parents, label)
		}
		sort.Strings(r.Parents)
	}
	for entity, fs := range g.formulas {
		r := get(entity)
		attrs := g.order[entity]
		if len(attrs) < len(fs) {
			attrs = sortedKeys(fs)
		}
		for _, attr := range attrs {
			r.Formulas = append(r.Formulas, FormulaReport{Attribute: attr, DependsOn: fs[attr].DependsOn})
		}
	}
	for entity, cs := range g.copies {
		r := get(entity)
		for _, c := range cs {
			r.Copies = append(r.Copies, CopyReport{Attribute: c.Attribute, From: node(c.Parent, c.ParentAttribute)})
		}
	}
	for entity, cs := range g.constraints {
		r := get(entity)
		for _, c := range cs {
			r.Constraints = append(r.Constraints, ConstraintReport{Name: c.Name, DependsOn: c.DependsOn, Message: c.ErrorMsg})
		}
	}
	for _, kind := range []EventKind{EventEarlyAllClasses, EventEarly, EventRow, EventAfterFlush, EventCommit} {
		for entity, evs := range g.events[kind] {
			r := get(entity)
			for _, ev := range evs {
				r.Events = append(r.Events, EventReport{Kind: kind.String(), Name: ev.Name})
			}
		}
	}

	rep := Report{Cycles: g.cycles}
	for _, entity := range sortedKeys(byEntity) {
		rep.Entities = append(rep.Entities, *byEntity[entity])
	}
	return rep
}

// Report builds the report without failing on cycles, which are listed
// instead.
func (b *RuleBank) Report() (Report, error) {
	g, err := b.build()
	if err != nil {
		return Report{}, err
	}
	return g.Report(), nil
}

func (r Report) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}

func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// String summarises the report one entity per line.
func (r Report) String() string {
	var b strings.Builder
	for _, e := range r.Entities {
		b.WriteString(e.Entity)
		if len(e.Formulas) > 0 {
			b.WriteString(" formulas=")
			attrs := make([]string, len(e.Formulas))
			for i, f := range e.Formulas {
				attrs[i] = f.Attribute
			}
			b.WriteString(strings.Join(attrs, ","))
		}
		b.WriteString("\n")
	}
	for _, c := range r.Cycles {
		b.WriteString("cycle: " + strings.Join(c, " -> ") + "\n")
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
