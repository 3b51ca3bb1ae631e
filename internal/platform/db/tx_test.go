package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestConn_FallsBackWithoutTx(t *testing.T) {
	var fallback Querier
	if got := Conn(context.Background(), fallback); got != fallback {
		t.Error("expected fallback querier without a transaction in context")
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound(pgx.ErrNoRows, "patient 7")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err.Error() != "patient 7: not found" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	other := fmt.Errorf("connection reset")
	if got := NotFound(other, "patient 7"); got != other {
		t.Errorf("expected other errors to pass through, got %v", got)
	}
	if NotFound(nil, "x") != nil {
		t.Error("expected nil to stay nil")
	}
}
