package domain

import (
	"errors"
	"fmt"
)

// ErrorClass separates the two disjoint failure categories: parse errors
// surface at load time before any case runs, runtime errors surface while a
// case executes. They are never conflated.
type ErrorClass int

const (
	ParseError ErrorClass = iota
	RuntimeError
)

func (c ErrorClass) String() string {
	if c == RuntimeError {
		return "runtime"
	}
	return "parse"
}

// Error is the error type carried across the interpreter, with enough
// context to point a user at the failing document position.
type Error struct {
	Class   ErrorClass
	Phase   string // "load", "resolve", "action", "export", "expect", "env"
	File    string
	Line    int
	Step    int // 1-based step number, 0 when not step-scoped
	Check   int // 1-based expectation number within the step, 0 when unset
	Message string
	Cause   error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("[%s/%s]", e.Class, e.Phase)
	if e.File != "" {
		s += " " + e.File
	}
	if e.Line > 0 {
		s += fmt.Sprintf(":%d", e.Line)
	}
	if e.Step > 0 {
		s += fmt.Sprintf(" step %d", e.Step)
		if e.Check > 0 {
			s += fmt.Sprintf(" expectation %d", e.Check)
		}
	}
	s += ": " + e.Message
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewParseError creates a load-phase error.
func NewParseError(phase, file string, line int, message string, cause error) *Error {
	return &Error{
		Class:   ParseError,
		Phase:   phase,
		File:    file,
		Line:    line,
		Message: message,
		Cause:   cause,
	}
}

// NewRuntimeError creates an execution-phase error.
func NewRuntimeError(phase, file string, step int, message string, cause error) *Error {
	return &Error{
		Class:   RuntimeError,
		Phase:   phase,
		File:    file,
		Step:    step,
		Message: message,
		Cause:   cause,
	}
}

// IsParseError reports whether err belongs to the parse class.
func IsParseError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == ParseError
}

// IsRuntimeError reports whether err belongs to the runtime class.
func IsRuntimeError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == RuntimeError
}
