package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a missing project, section, task or user, or one
// outside the caller's scope.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidOperationError rejects a request that is well-formed but not allowed
// in the current state.
type InvalidOperationError struct {
	Reason  string
	Details map[string]any
}

func (e InvalidOperationError) Error() string { return e.Reason }

// ConflictError carries the number of records blocking the operation.
type ConflictError struct {
	Reason string
	Count  int
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s (%d blocking)", e.Reason, e.Count)
}

type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return e.Reason
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}
