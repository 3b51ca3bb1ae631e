package logic

import (
	"context"
	"fmt"
)

// Persister writes rows of one entity. Insert must assign the primary key.
type Persister interface {
	Insert(ctx context.Context, row Row) error
	Update(ctx context.Context, row Row) error
	Delete(ctx context.Context, row Row) error
}

// PersisterFuncs adapts typed repository methods to a Persister.
type PersisterFuncs[T Row] struct {
	InsertFn func(ctx context.Context, row T) error
	UpdateFn func(ctx context.Context, row T) error
	DeleteFn func(ctx context.Context, row T) error
}

func (p PersisterFuncs[T]) Insert(ctx context.Context, row Row) error {
	return p.call(ctx, "insert", p.InsertFn, row)
}

func (p PersisterFuncs[T]) Update(ctx context.Context, row Row) error {
	return p.call(ctx, "update", p.UpdateFn, row)
}

func (p PersisterFuncs[T]) Delete(ctx context.Context, row Row) error {
	return p.call(ctx, "delete", p.DeleteFn, row)
}

func (p PersisterFuncs[T]) call(ctx context.Context, op string, fn func(context.Context, T) error, row Row) error {
	t, ok := row.(T)
	if !ok {
		return fmt.Errorf("%s %s: unexpected row type %T", op, row.Entity(), row)
	}
	if fn == nil {
		return fmt.Errorf("%s %s: %w", op, row.Entity(), ErrNoPersister)
	}
	return fn(ctx, t)
}
