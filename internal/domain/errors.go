// Package domain holds the error taxonomy shared by the workflows, the
// spreadsheet codec and the HTTP layer.
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrSchema     = errors.New("schema error")
	ErrInput      = errors.New("input error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStore      = errors.New("store error")
)

// Error carries one of the sentinel kinds above plus an optional cause.
// errors.Is matches both.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Schema(format string, args ...any) error {
	return &Error{Kind: ErrSchema, Message: fmt.Sprintf(format, args...)}
}

func Input(format string, args ...any) error {
	return &Error{Kind: ErrInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// Store wraps a persistence failure. Errors that already carry a kind are
// returned unchanged so a NotFound raised below the workflow keeps its kind.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: ErrStore, Message: op, Err: err}
}

// Message returns the human readable part of err without the cause chain.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
