// Package query executes validated, read-only SQL and reports failures with
// a kind the HTTP layer can map to a status.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Records returns the rows as column-keyed maps.
func (r Result) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make(map[string]any, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		out = append(out, record)
	}
	return out
}

// Engine runs SQL that has already passed the validator.
type Engine interface {
	Execute(ctx context.Context, sql string) (Result, error)
}

type ErrorKind string

const (
	KindTimeout           ErrorKind = "TIMEOUT"
	KindConnectionRefused ErrorKind = "CONNECTION_REFUSED"
	KindSyntax            ErrorKind = "SYNTAX_ERROR"
	KindOther             ErrorKind = "OTHER"
)

type ExecutionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query (%s): %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func NewExecutionError(kind ErrorKind, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Err: err}
}

// KindOf returns the kind of an ExecutionError anywhere in err's chain, or
// KindOther.
func KindOf(err error) ErrorKind {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	return KindOther
}

// Fatal reports errors that should surface to the caller instead of
// degrading the answer.
func Fatal(err error) bool {
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		return false
	}
	return execErr.Kind == KindTimeout || execErr.Kind == KindConnectionRefused
}
