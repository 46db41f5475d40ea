// Package qerrors provides the error taxonomy for the query engine.
// Every failure surfaced by plan building, optimization, compilation, or
// execution is one of the kinds defined here, with operation context and
// error wrapping support.
package qerrors

import (
	"fmt"
)

// Kind classifies an engine error.
type Kind int

const (
	// KindSchema covers unknown columns, duplicate column names, and type
	// combinations with no promotion rule. Raised as early as possible.
	KindSchema Kind = iota
	// KindComputation covers invalid runtime values, such as unsupported
	// casts discovered during evaluation.
	KindComputation
	// KindCompile covers logical constructs the optimizer or physical
	// compiler cannot lower. Fatal, never retried.
	KindCompile
	// KindSource covers data-source collaborator failures, wrapped with
	// the originating scan's identity.
	KindSource
)

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindComputation:
		return "computation"
	case KindCompile:
		return "compile"
	case KindSource:
		return "source"
	default:
		return "unknown"
	}
}

// Error is the standardized error value across all engine operations.
type Error struct {
	Kind    Kind   // Failure class
	Op      string // Operation name (e.g. "Filter", "Join", "Collect")
	Column  string // Column name if applicable
	Message string // Human-readable description
	Cause   error  // Underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s error in %s on column %q: %s", e.Kind, e.Op, e.Column, e.Message)
	}
	return fmt.Sprintf("%s error in %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on kind alone when the target carries no further context, so
// callers can test errors.Is(err, qerrors.Schema("", "")) style sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Column == "" && t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op && e.Column == t.Column && e.Message == t.Message
}

// Sentinel values for errors.Is kind checks.
var (
	ErrSchema      = &Error{Kind: KindSchema}
	ErrComputation = &Error{Kind: KindComputation}
	ErrCompile     = &Error{Kind: KindCompile}
	ErrSource      = &Error{Kind: KindSource}
)

// ColumnNotFound reports a reference to a column the schema does not have.
func ColumnNotFound(op, column string) *Error {
	return &Error{Kind: KindSchema, Op: op, Column: column, Message: "column not found"}
}

// DuplicateColumn reports a column name that appears twice in one frame.
func DuplicateColumn(op, column string) *Error {
	return &Error{Kind: KindSchema, Op: op, Column: column, Message: "duplicate column name"}
}

// TypeMismatch reports an operand pair with no promotion rule.
func TypeMismatch(op, detail string) *Error {
	return &Error{Kind: KindSchema, Op: op, Message: detail}
}

// Schema creates a generic schema error.
func Schema(op, message string) *Error {
	return &Error{Kind: KindSchema, Op: op, Message: message}
}

// Computation creates a runtime evaluation error.
func Computation(op, message string) *Error {
	return &Error{Kind: KindComputation, Op: op, Message: message}
}

// UnsupportedCast reports a cast with no implementing conversion.
func UnsupportedCast(op, from, to string) *Error {
	return &Error{
		Kind:    KindComputation,
		Op:      op,
		Message: fmt.Sprintf("unsupported cast from %s to %s", from, to),
	}
}

// Compile creates an optimizer/physical-compiler lowering error.
func Compile(op, message string) *Error {
	return &Error{Kind: KindCompile, Op: op, Message: message}
}

// WrapSource wraps a collaborator failure with the originating scan identity.
func WrapSource(scan string, cause error) *Error {
	return &Error{
		Kind:    KindSource,
		Op:      "Scan",
		Message: fmt.Sprintf("reading %s", scan),
		Cause:   cause,
	}
}
