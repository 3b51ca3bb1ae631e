// Package logic evaluates declarative row rules (constraints, formulas,
// parent copies and row events) against the rows changed in a transaction.
//
// Rules are declared on a RuleBank and activated into a Graph, which orders
// derivations by their attribute dependencies and rejects cycles. An Engine
// runs units of work: rows queued on a Session are flushed in order, each
// one passing through early events, copies, formulas, constraints and row
// events before it is persisted. After-flush and commit events run once the
// queue drains, and the rows they queue are flushed in turn, one nest level
// deeper, until nothing is pending.
package logic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medai/medai/internal/platform/db"
)

// DefaultMaxNestLevel bounds how deep callbacks may keep queueing rows.
const DefaultMaxNestLevel = 10

// Engine runs logic sessions against an activated rule graph. It is safe
// for concurrent use once persisters are registered.
type Engine struct {
	graph        *Graph
	beginner     db.TxBeginner
	log          zerolog.Logger
	tracer       trace.Tracer
	maxNestLevel int

	mu         sync.RWMutex
	persisters map[string]Persister
}

// Option configures an Engine.
type Option func(*Engine)

// WithTxBeginner makes Run open a database transaction for each session
// that is not already inside one.
func WithTxBeginner(b db.TxBeginner) Option {
	return func(e *Engine) { e.beginner = b }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l.With().Str("component", "logic").Logger() }
}

func WithMaxNestLevel(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxNestLevel = n
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine activates bank and returns an engine for it.
func NewEngine(bank *RuleBank, opts ...Option) (*Engine, error) {
	g, err := bank.Activate()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		graph:        g,
		log:          zerolog.Nop(),
		tracer:       otel.Tracer("github.com/medai/medai/internal/logic"),
		maxNestLevel: DefaultMaxNestLevel,
		persisters:   make(map[string]Persister),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Register sets the persister used to write rows of entity.
func (e *Engine) Register(entity string, p Persister) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.persisters[entity] = p
}

func (e *Engine) persister(entity string) (Persister, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.persisters[entity]
	if !ok {
		return nil, fmt.Errorf("%s: %w", entity, ErrNoPersister)
	}
	return p, nil
}

// Graph returns the activated rule graph.
func (e *Engine) Graph() *Graph { return e.graph }

// MaxNestLevel returns the configured nesting bound.
func (e *Engine) MaxNestLevel() int { return e.maxNestLevel }

// Run executes fn as one unit of work. Rows queued on the session are
// flushed and committed after fn returns; any error from fn, a rule or a
// persister rolls the transaction back.
func (e *Engine) Run(ctx context.Context, fn func(s *Session) error) (err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "logic.session")
	defer func() {
		if p := recover(); p != nil {
			sessionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
			span.SetStatus(codes.Error, fmt.Sprint(p))
			span.End()
			panic(p)
		}
		outcome := "commit"
		if err != nil {
			outcome = "rollback"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		sessionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		span.End()
	}()

	var tx pgx.Tx
	if e.beginner != nil && db.TxFromContext(ctx) == nil {
		tx, err = e.beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		ctx = db.ContextWithTx(ctx, tx)
		// a panicking rule must not leave the connection inside an open
		// transaction
		defer func() {
			if p := recover(); p != nil {
				e.rollback(ctx, tx)
				panic(p)
			}
			if err != nil {
				e.rollback(ctx, tx)
			}
		}()
	}

	s := newSession(ctx, e)
	span.SetAttributes(attribute.String("logic.session_id", s.ID.String()))

	if err = fn(s); err != nil {
		return err
	}
	if err = s.commit(ctx); err != nil {
		s.log.Debug().Err(err).Msg("logic session failed")
		return err
	}
	if tx != nil {
		if err = tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
	}
	s.log.Debug().Int("rows", len(s.processed)).Msg("logic session committed")
	return nil
}

func (e *Engine) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		e.log.Error().Err(err).Msg("rollback logic session")
	}
}

// Report describes the activated rule bank.
func (e *Engine) Report() Report {
	return e.graph.Report()
}
