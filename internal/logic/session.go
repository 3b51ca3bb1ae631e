package logic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Session is the unit of work of one Engine.Run. It is not safe for
// concurrent use.
type Session struct {
	ID uuid.UUID

	ctx       context.Context
	engine    *Engine
	log       zerolog.Logger
	pending   []*LogicRow
	flushed   []*LogicRow
	processed []*LogicRow
	committed map[*LogicRow]bool
	current   *LogicRow

	ifMatchChecked bool
}

func newSession(ctx context.Context, e *Engine) *Session {
	id := uuid.New()
	return &Session{
		ID:        id,
		ctx:       ctx,
		engine:    e,
		log:       e.log.With().Str("session_id", id.String()).Logger(),
		committed: make(map[*LogicRow]bool),
	}
}

// Context returns the session context. It carries the session transaction,
// so repository reads made with it see rows already flushed.
func (s *Session) Context() context.Context { return s.ctx }

// Insert queues a new row.
func (s *Session) Insert(row Row) error {
	lr, err := s.newLogicRow(row, nil, Insert)
	if err != nil {
		return err
	}
	s.pending = append(s.pending, lr)
	return nil
}

// Update queues a change to an existing row. old is the row as stored
// before the change; when nil every attribute is treated as changed. A row
// already pending in this session is merged rather than queued twice. The
// first update the caller queues fails with ErrStaleRow when the context
// carries an If-Match checksum that old no longer has.
func (s *Session) Update(row, old Row) error {
	if err := s.checkIfMatch(row, old); err != nil {
		return err
	}
	if lr := s.findPending(row); lr != nil {
		lr.Row = row
		return nil
	}
	lr, err := s.newLogicRow(row, old, Update)
	if err != nil {
		return err
	}
	s.pending = append(s.pending, lr)
	return nil
}

// Delete queues removal of row.
func (s *Session) Delete(row Row) error {
	if lr := s.findPending(row); lr != nil {
		if lr.Action == Insert {
			s.dropPending(lr)
			return nil
		}
		lr.Row = row
		lr.Action = Delete
		return nil
	}
	lr, err := s.newLogicRow(row, Snapshot(row), Delete)
	if err != nil {
		return err
	}
	s.pending = append(s.pending, lr)
	return nil
}

// Flush processes every pending row and the after-flush events they
// trigger, so inserted rows have primary keys. Commit events still run when
// the session commits.
func (s *Session) Flush() error {
	return s.flush(s.ctx)
}

// FindPending returns the first queued row of entity that match accepts,
// or nil. Callbacks use it to merge into a row queued earlier in the
// session that has no primary key yet.
func (s *Session) FindPending(entity string, match func(Row) bool) Row {
	for _, lr := range s.pending {
		if lr.Action != Delete && lr.Row.Entity() == entity && match(lr.Row) {
			return lr.Row
		}
	}
	return nil
}

func (s *Session) newLogicRow(row Row, old Row, action Action) (*LogicRow, error) {
	if row == nil {
		return nil, fmt.Errorf("logic: nil row")
	}
	level := 0
	if s.current != nil {
		level = s.current.NestLevel + 1
	}
	if level > s.engine.maxNestLevel {
		return nil, fmt.Errorf("%s %s at nest level %d: %w", action, row.Entity(), level, ErrMaxNestLevel)
	}
	return &LogicRow{
		Row:       row,
		OldRow:    old,
		Action:    action,
		NestLevel: level,
		Session:   s,
	}, nil
}

func (s *Session) findPending(row Row) *LogicRow {
	for _, lr := range s.pending {
		if lr.Row == row {
			return lr
		}
		if row.PrimaryKey() != 0 && lr.Row.Entity() == row.Entity() && lr.Row.PrimaryKey() == row.PrimaryKey() {
			return lr
		}
	}
	return nil
}

func (s *Session) dropPending(target *LogicRow) {
	out := s.pending[:0]
	for _, lr := range s.pending {
		if lr != target {
			out = append(out, lr)
		}
	}
	s.pending = out
}

// commit flushes until nothing is pending, running commit events once per
// processed row along the way.
func (s *Session) commit(ctx context.Context) error {
	for {
		if err := s.flush(ctx); err != nil {
			return err
		}
		for i := 0; i < len(s.processed); i++ {
			lr := s.processed[i]
			if s.committed[lr] {
				continue
			}
			s.committed[lr] = true
			if err := s.runEvents(ctx, EventCommit, lr); err != nil {
				return err
			}
		}
		if len(s.pending) == 0 {
			return nil
		}
	}
}

func (s *Session) flush(ctx context.Context) error {
	for len(s.pending) > 0 {
		ctx, span := s.engine.tracer.Start(ctx, "logic.flush")
		for len(s.pending) > 0 {
			lr := s.pending[0]
			s.pending = s.pending[1:]
			if err := s.process(ctx, lr); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
				return err
			}
		}
		span.End()

		flushed := s.flushed
		s.flushed = nil
		for _, lr := range flushed {
			if err := s.runEvents(ctx, EventAfterFlush, lr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) process(ctx context.Context, lr *LogicRow) error {
	prev := s.current
	s.current = lr
	defer func() { s.current = prev }()

	g := s.engine.graph
	entity := lr.Entity()
	lr.refreshChanged()

	if err := s.runEvents(ctx, EventEarlyAllClasses, lr); err != nil {
		return err
	}
	if err := s.runEvents(ctx, EventEarly, lr); err != nil {
		return err
	}
	if lr.Action != Delete {
		// early events may have edited the row
		lr.refreshChanged()
		if err := s.applyCopies(ctx, lr); err != nil {
			return err
		}
		if err := s.applyFormulas(ctx, lr); err != nil {
			return err
		}
		if err := s.checkConstraints(lr); err != nil {
			return err
		}
	}
	if err := s.runEvents(ctx, EventRow, lr); err != nil {
		return err
	}

	p, err := s.engine.persister(entity)
	if err != nil {
		return err
	}
	switch lr.Action {
	case Insert:
		err = p.Insert(ctx, lr.Row)
	case Update:
		err = p.Update(ctx, lr.Row)
	case Delete:
		err = p.Delete(ctx, lr.Row)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", lr.Action, entity, err)
	}
	rowsProcessed.WithLabelValues(entity, lr.Action.String()).Inc()
	s.log.Debug().
		Str("entity", entity).
		Str("action", lr.Action.String()).
		Int("nest_level", lr.NestLevel).
		Int64("key", lr.Row.PrimaryKey()).
		Strs("changed", lr.Changed()).
		Msg("logic row flushed")

	if lr.Action == Update {
		for _, c := range g.Cascades(entity, lr.Changed()) {
			if err := s.cascade(ctx, lr, c); err != nil {
				return err
			}
		}
	}

	s.flushed = append(s.flushed, lr)
	s.processed = append(s.processed, lr)
	return nil
}

func (s *Session) applyCopies(ctx context.Context, lr *LogicRow) error {
	for _, c := range s.engine.graph.copies[lr.Entity()] {
		rel, _ := s.engine.graph.parentOf(lr.Entity(), c.Parent)
		if !lr.AttrChanged(rel.ForeignKey) {
			continue
		}
		if fk, _ := Get(lr.Row, rel.ForeignKey); fk == nil {
			continue
		}
		parent, err := lr.Parent(ctx, c.Parent)
		if err != nil {
			return err
		}
		v, _ := Get(parent, c.ParentAttribute)
		if err := Set(lr.Row, c.Attribute, v); err != nil {
			return err
		}
		lr.markChanged(c.Attribute)
		ruleFirings.WithLabelValues(lr.Entity(), "copy").Inc()
	}
	return nil
}

func (s *Session) applyFormulas(ctx context.Context, lr *LogicRow) error {
	g := s.engine.graph
	entity := lr.Entity()

	var formulas []Formula
	if lr.Action == Insert {
		formulas = g.formulasFor(entity)
	} else {
		seeds := make([]string, 0, len(lr.changed)+len(lr.parentChanges))
		for _, a := range lr.Changed() {
			seeds = append(seeds, node(entity, a))
		}
		for n := range lr.parentChanges {
			seeds = append(seeds, n)
		}
		formulas = g.affected(entity, seeds, lr.Changed())
	}

	for _, f := range formulas {
		v, err := f.Calc(ctx, lr)
		if err != nil {
			return fmt.Errorf("formula %s: %w", node(entity, f.Attribute), err)
		}
		before, _ := Get(lr.Row, f.Attribute)
		if err := Set(lr.Row, f.Attribute, v); err != nil {
			return err
		}
		after, _ := Get(lr.Row, f.Attribute)
		if !equalValues(before, after) || lr.Action == Insert {
			lr.markChanged(f.Attribute)
		}
		ruleFirings.WithLabelValues(entity, "formula").Inc()
	}
	return nil
}

func (s *Session) checkConstraints(lr *LogicRow) error {
	var violations []Violation
	for _, c := range s.engine.graph.constraints[lr.Entity()] {
		if lr.Action != Insert && len(c.DependsOn) > 0 && !lr.anyChanged(c.DependsOn) {
			continue
		}
		ruleFirings.WithLabelValues(lr.Entity(), "constraint").Inc()
		if c.Check(lr) {
			continue
		}
		constraintFailures.WithLabelValues(lr.Entity(), c.Name).Inc()
		violations = append(violations, Violation{
			Entity:     lr.Entity(),
			Constraint: c.Name,
			Message:    renderMessage(c.ErrorMsg, lr.Row),
		})
	}
	if len(violations) > 0 {
		return &ConstraintError{Violations: violations}
	}
	return nil
}

// cascade queues the children of lr whose formulas read a changed parent
// attribute.
func (s *Session) cascade(ctx context.Context, lr *LogicRow, c cascade) error {
	if c.rel.LoadChildren == nil {
		return fmt.Errorf("relationship %s -> %s has no child loader", c.rel.Child, c.rel.role())
	}
	children, err := c.rel.LoadChildren(ctx, lr.Row)
	if err != nil {
		return fmt.Errorf("load %s children of %s: %w", c.rel.Child, lr.Entity(), err)
	}
	for _, child := range children {
		clr := s.findPending(child)
		if clr == nil {
			clr, err = s.newLogicRow(child, Snapshot(child), Update)
			if err != nil {
				return err
			}
			s.pending = append(s.pending, clr)
		}
		if clr.parentChanges == nil {
			clr.parentChanges = make(map[string]bool)
		}
		for _, n := range c.seeds {
			clr.parentChanges[n] = true
		}
		if clr.parents == nil {
			clr.parents = make(map[string]Row)
		}
		clr.parents[c.rel.role()] = lr.Row
	}
	return nil
}

func (s *Session) runEvents(ctx context.Context, kind EventKind, lr *LogicRow) error {
	entity := ""
	if kind != EventEarlyAllClasses {
		entity = lr.Entity()
	}
	events := s.engine.graph.eventsFor(kind, entity)
	if len(events) == 0 {
		return nil
	}

	prev := s.current
	s.current = lr
	defer func() { s.current = prev }()

	for _, ev := range events {
		ectx, span := s.engine.tracer.Start(ctx, "logic.event")
		span.SetAttributes(
			attribute.String("logic.event", ev.Name),
			attribute.String("logic.kind", kind.String()),
			attribute.String("logic.entity", lr.Entity()),
			attribute.Int("logic.nest_level", lr.NestLevel),
		)
		ruleFirings.WithLabelValues(lr.Entity(), kind.String()).Inc()
		err := ev.Fn(ectx, lr)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if err != nil {
			return fmt.Errorf("%s event %s on %s: %w", kind, ev.Name, lr.Entity(), err)
		}
	}
	return nil
}
