package logic

import (
	"fmt"
	"sort"
	"strings"
)

// dependencyGraph maps an attribute node ("Entity.attr") to the derived
// attribute nodes that must be recomputed when it changes.
type dependencyGraph map[string][]string

// Graph is an activated rule bank.
type Graph struct {
	edges       dependencyGraph
	formulas    map[string]map[string]Formula
	declared    map[string]int
	order       map[string][]string
	copies      map[string][]Copy
	constraints map[string][]Constraint
	events      map[EventKind]map[string][]RowEvent
	parents     map[string]map[string]Relationship
	children    map[string][]Relationship
	parentDeps  map[string]map[string]map[string]bool
	cycles      [][]string
}

type cascade struct {
	rel   Relationship
	seeds []string
}

func node(entity, attr string) string { return entity + "." + attr }

func entityOfNode(n string) string {
	e, _, _ := strings.Cut(n, ".")
	return e
}

func newGraph() *Graph {
	return &Graph{
		edges:       make(dependencyGraph),
		formulas:    make(map[string]map[string]Formula),
		declared:    make(map[string]int),
		order:       make(map[string][]string),
		copies:      make(map[string][]Copy),
		constraints: make(map[string][]Constraint),
		events:      make(map[EventKind]map[string][]RowEvent),
		parents:     make(map[string]map[string]Relationship),
		children:    make(map[string][]Relationship),
		parentDeps:  make(map[string]map[string]map[string]bool),
	}
}

// Activate validates the declarations and builds the attribute dependency
// graph. A cycle among derivations is reported as *CycleError.
func (b *RuleBank) Activate() (*Graph, error) {
	g, err := b.build()
	if err != nil {
		return nil, err
	}
	if len(g.cycles) > 0 {
		return nil, &CycleError{Path: g.cycles[0]}
	}
	return g, nil
}

func (b *RuleBank) build() (*Graph, error) {
	g := newGraph()

	for _, r := range b.relationships {
		if r.Parent == "" || r.Child == "" || r.ForeignKey == "" {
			return nil, fmt.Errorf("relationship %q: parent, child and foreign key are required", r.role())
		}
		if err := b.checkAttr(r.Child, r.ForeignKey, "relationship "+r.role()); err != nil {
			return nil, err
		}
		if g.parents[r.Child] == nil {
			g.parents[r.Child] = make(map[string]Relationship)
		}
		if _, dup := g.parents[r.Child][r.role()]; dup {
			return nil, fmt.Errorf("relationship %s -> %s declared twice", r.Child, r.role())
		}
		g.parents[r.Child][r.role()] = r
		g.children[r.Parent] = append(g.children[r.Parent], r)
	}

	for i, f := range b.formulas {
		if f.Entity == "" || f.Attribute == "" || f.Calc == nil {
			return nil, fmt.Errorf("formula %s: entity, attribute and calc are required", node(f.Entity, f.Attribute))
		}
		if err := b.checkAttr(f.Entity, f.Attribute, "formula"); err != nil {
			return nil, err
		}
		if g.formulas[f.Entity] == nil {
			g.formulas[f.Entity] = make(map[string]Formula)
		}
		if _, dup := g.formulas[f.Entity][f.Attribute]; dup {
			return nil, fmt.Errorf("formula %s declared twice", node(f.Entity, f.Attribute))
		}
		g.formulas[f.Entity][f.Attribute] = f
		g.declared[node(f.Entity, f.Attribute)] = i
	}

	for _, c := range b.copies {
		rel, ok := g.parents[c.Entity][c.Parent]
		if !ok {
			return nil, fmt.Errorf("copy %s: no relationship to parent %s", node(c.Entity, c.Attribute), c.Parent)
		}
		if _, clash := g.formulas[c.Entity][c.Attribute]; clash {
			return nil, fmt.Errorf("copy %s: attribute is already derived by a formula", node(c.Entity, c.Attribute))
		}
		if err := b.checkAttr(c.Entity, c.Attribute, "copy"); err != nil {
			return nil, err
		}
		if err := b.checkAttr(rel.Parent, c.ParentAttribute, "copy "+node(c.Entity, c.Attribute)); err != nil {
			return nil, err
		}
		g.copies[c.Entity] = append(g.copies[c.Entity], c)
		g.addEdge(node(c.Entity, rel.ForeignKey), node(c.Entity, c.Attribute))
	}

	for _, f := range b.formulas {
		target := node(f.Entity, f.Attribute)
		for _, dep := range f.DependsOn {
			role, attr, isParent := strings.Cut(dep, ".")
			if !isParent {
				if err := b.checkAttr(f.Entity, dep, "formula "+target); err != nil {
					return nil, err
				}
				g.addEdge(node(f.Entity, dep), target)
				continue
			}
			rel, ok := g.parents[f.Entity][role]
			if !ok {
				return nil, fmt.Errorf("formula %s: no relationship to parent %s", target, role)
			}
			if err := b.checkAttr(rel.Parent, attr, "formula "+target); err != nil {
				return nil, err
			}
			g.addEdge(node(rel.Parent, attr), target)
			g.addParentDep(f.Entity, role, attr)
		}
	}

	for i, c := range b.constraints {
		if c.Entity == "" || c.Check == nil {
			return nil, fmt.Errorf("constraint %q: entity and check are required", c.Name)
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("%s_constraint_%d", strings.ToLower(c.Entity), i+1)
		}
		for _, dep := range c.DependsOn {
			if err := b.checkAttr(c.Entity, dep, "constraint "+c.Name); err != nil {
				return nil, err
			}
		}
		g.constraints[c.Entity] = append(g.constraints[c.Entity], c)
	}

	for _, ev := range b.events {
		if ev.Fn == nil {
			return nil, fmt.Errorf("%s event %q has no callback", ev.Kind, ev.Name)
		}
		if (ev.Kind == EventEarlyAllClasses) != (ev.Entity == "") {
			return nil, fmt.Errorf("%s event %q: entity must be empty only for all-classes events", ev.Kind, ev.Name)
		}
		if g.events[ev.Kind] == nil {
			g.events[ev.Kind] = make(map[string][]RowEvent)
		}
		g.events[ev.Kind][ev.Entity] = append(g.events[ev.Kind][ev.Entity], ev)
	}

	g.cycles = g.findCycles()
	g.computeOrder()
	return g, nil
}

func (b *RuleBank) checkAttr(entity, attr, where string) error {
	if attr == "" {
		return fmt.Errorf("%s: empty attribute on %s", where, entity)
	}
	if known, ok := b.hasAttribute(entity, attr); known && !ok {
		return fmt.Errorf("%s: %s has no attribute %q", where, entity, attr)
	}
	return nil
}

func (g *Graph) addEdge(from, to string) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
	if _, ok := g.edges[to]; !ok {
		g.edges[to] = nil
	}
}

func (g *Graph) addParentDep(child, role, attr string) {
	if g.parentDeps[child] == nil {
		g.parentDeps[child] = make(map[string]map[string]bool)
	}
	if g.parentDeps[child][role] == nil {
		g.parentDeps[child][role] = make(map[string]bool)
	}
	g.parentDeps[child][role][attr] = true
}

func (g *Graph) nodes() []string {
	out := make([]string, 0, len(g.edges))
	for n := range g.edges {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// findCycles returns one path per strongly connected component that forms
// a cycle: components with more than one node, or a node with a self loop.
func (g *Graph) findCycles() [][]string {
	var cycles [][]string
	for _, scc := range g.tarjanSCC() {
		if len(scc) > 1 || g.hasSelfLoop(scc[0]) {
			cycles = append(cycles, g.cyclePath(scc))
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

func (g *Graph) hasSelfLoop(n string) bool {
	for _, m := range g.edges[n] {
		if m == n {
			return true
		}
	}
	return false
}

func (g *Graph) tarjanSCC() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.nodes() {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// cyclePath walks edges inside scc from its smallest node back to itself.
func (g *Graph) cyclePath(scc []string) []string {
	members := make(map[string]bool, len(scc))
	start := scc[0]
	for _, n := range scc {
		members[n] = true
		if n < start {
			start = n
		}
	}
	if len(scc) == 1 {
		return []string{start, start}
	}

	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		var next string
		for _, m := range g.edges[current] {
			if members[m] && (!visited[m] || m == start) {
				next = m
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		visited[next] = true
		current = next
	}
	return path
}

// computeOrder sorts each entity's formulas so that every formula follows
// the formulas it depends on. Declaration order breaks ties.
func (g *Graph) computeOrder() {
	for entity, fs := range g.formulas {
		indegree := make(map[string]int, len(fs))
		for attr := range fs {
			indegree[attr] += 0
		}
		for attr := range fs {
			for _, m := range g.edges[node(entity, attr)] {
				if entityOfNode(m) != entity {
					continue
				}
				_, dep, _ := strings.Cut(m, ".")
				if _, ok := fs[dep]; ok {
					indegree[dep]++
				}
			}
		}

		var order []string
		for len(indegree) > 0 {
			next := ""
			for attr, d := range indegree {
				if d != 0 {
					continue
				}
				if next == "" || g.declared[node(entity, attr)] < g.declared[node(entity, next)] {
					next = attr
				}
			}
			if next == "" {
				// remaining formulas sit on a cycle
				break
			}
			delete(indegree, next)
			order = append(order, next)
			for _, m := range g.edges[node(entity, next)] {
				if entityOfNode(m) != entity {
					continue
				}
				_, dep, _ := strings.Cut(m, ".")
				if _, ok := indegree[dep]; ok {
					indegree[dep]--
				}
			}
		}
		g.order[entity] = order
	}
}

// Order returns the formula attributes of entity in evaluation order.
func (g *Graph) Order(entity string) []string {
	return append([]string(nil), g.order[entity]...)
}

// Affected returns the formulas of entity reachable from the seed nodes,
// in evaluation order. Seeds are node names such as "Patient.birth_date" or
// a parent attribute like "Drug.drug_name".
func (g *Graph) Affected(entity string, seeds []string) []Formula {
	return g.affected(entity, seeds, nil)
}

// affected is Affected plus the formulas computing any of outputs, so a
// derived attribute written by the caller is recomputed rather than kept.
func (g *Graph) affected(entity string, seeds, outputs []string) []Formula {
	reached := make(map[string]bool)
	for _, a := range outputs {
		if _, ok := g.formulas[entity][a]; ok {
			reached[node(entity, a)] = true
		}
	}
	queue := append([]string(nil), seeds...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range g.edges[n] {
			if reached[m] || entityOfNode(m) != entity {
				continue
			}
			reached[m] = true
			queue = append(queue, m)
		}
	}

	var out []Formula
	for _, attr := range g.order[entity] {
		if reached[node(entity, attr)] {
			out = append(out, g.formulas[entity][attr])
		}
	}
	return out
}

// AffectedAttributes is Affected reduced to attribute names.
func (g *Graph) AffectedAttributes(entity string, seeds []string) []string {
	fs := g.Affected(entity, seeds)
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Attribute
	}
	return out
}

// Cascades returns the child relationships of entity whose formulas read
// one of the changed parent attributes.
func (g *Graph) Cascades(entity string, changed []string) []cascade {
	var out []cascade
	for _, rel := range g.children[entity] {
		deps := g.parentDeps[rel.Child][rel.role()]
		var seeds []string
		for _, a := range changed {
			if deps[a] {
				seeds = append(seeds, node(entity, a))
			}
		}
		if len(seeds) > 0 {
			out = append(out, cascade{rel: rel, seeds: seeds})
		}
	}
	return out
}

// CascadeChildren lists the child entities Cascades would touch.
func (g *Graph) CascadeChildren(entity string, changed []string) []string {
	var out []string
	for _, c := range g.Cascades(entity, changed) {
		out = append(out, c.rel.Child)
	}
	return out
}

func (g *Graph) formulasFor(entity string) []Formula {
	var out []Formula
	for _, attr := range g.order[entity] {
		out = append(out, g.formulas[entity][attr])
	}
	return out
}

func (g *Graph) eventsFor(kind EventKind, entity string) []RowEvent {
	return g.events[kind][entity]
}

func (g *Graph) parentOf(child, role string) (Relationship, bool) {
	r, ok := g.parents[child][role]
	return r, ok
}
