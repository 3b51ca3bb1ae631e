package logic

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMaxNestLevel is returned when callbacks keep enqueueing rows past
	// the engine's nesting bound.
	ErrMaxNestLevel = errors.New("logic: maximum nest level exceeded")
	// ErrNoPersister is returned when a row's entity has no persister.
	ErrNoPersister = errors.New("logic: no persister registered")
)

// Violation is one failed constraint.
type Violation struct {
	Entity     string `json:"entity"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// ConstraintError aborts a session when one or more constraints fail.
type ConstraintError struct {
	Violations []Violation
}

func (e *ConstraintError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "constraint failed: " + strings.Join(msgs, "; ")
}

// CycleError reports a dependency cycle found while activating rules.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("logic: rule dependency cycle: %s", strings.Join(e.Path, " -> "))
}
