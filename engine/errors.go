package engine

import (
	"fmt"
	"strings"
)

// ValidationError is a caller-fixable failure. Every problem found during
// validation is accumulated before the error is returned.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// ErrIfAny wraps accumulated problems into a *ValidationError, or nil.
func ErrIfAny(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// ExecutionError is an environment or data failure during query execution.
// It names the chart and column under evaluation so the caller can diagnose
// without seeing raw engine internals.
type ExecutionError struct {
	Chart  string
	Column string
	Msg    string
	Err    error
}

func (e *ExecutionError) Error() string {
	ctx := e.Chart
	if e.Column != "" {
		ctx += "/" + e.Column
	}
	if e.Err != nil {
		return fmt.Sprintf("execution failed (%s): %s: %v", ctx, e.Msg, e.Err)
	}
	return fmt.Sprintf("execution failed (%s): %s", ctx, e.Msg)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func execErr(chart, column, msg string, err error) error {
	return &ExecutionError{Chart: chart, Column: column, Msg: msg, Err: err}
}
