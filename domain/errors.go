package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine for invalid input wraps
// exactly one of them, so callers can tell the family apart with [errors.Is].
var (
	// ErrMalformedQuery is the kind of errors caused by invalid query
	// documents.
	ErrMalformedQuery = errors.New("malformed query")
	// ErrMalformedUpdate is the kind of errors caused by invalid update
	// documents.
	ErrMalformedUpdate = errors.New("malformed update")
	// ErrArrayFilter is the kind of errors caused by invalid array filters
	// or by filtered positional paths that cannot be applied.
	ErrArrayFilter = errors.New("array filter error")
	// ErrTypeMismatch is the kind of errors caused by an operator applied
	// to a value of the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrConstraintViolated is returned when an index constraint (such as
	// uniqueness) is violated.
	ErrConstraintViolated = errors.New("constraint violated")
)

// Error codes reported by [Error]. They are the numeric codes wire protocol
// clients expect.
const (
	CodeBadValue                   = 2
	CodeFailedToParse              = 9
	CodeTypeMismatch               = 14
	CodePathNotViable              = 28
	CodeConflictingUpdateOperators = 40
	CodeDollarPrefixedFieldName    = 52
	CodeEmptyFieldName             = 56
	CodeImmutableField             = 66
	CodeDuplicateKey               = 11000
)

// Error is a failure caused by caller input. Kind is one of the error kinds
// declared in this package.
type Error struct {
	Kind error
	Code int
	Msg  string
}

// NewError returns a new [Error] with a formatted message.
func NewError(kind error, code int, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Error implements [error].
func (e *Error) Error() string {
	return e.Msg
}

// Unwrap returns the kind of the error.
func (e *Error) Unwrap() error {
	return e.Kind
}

// ErrImmutableField is returned when an update would change or remove the
// identifier field of a document.
type ErrImmutableField struct {
	Field string
}

// Error implements [error].
func (e ErrImmutableField) Error() string {
	return fmt.Sprintf("Performing an update on the path '%s' would modify the immutable field '%s'", e.Field, e.Field)
}

// Unwrap returns [ErrMalformedUpdate].
func (e ErrImmutableField) Unwrap() error {
	return ErrMalformedUpdate
}

// Code returns [CodeImmutableField].
func (e ErrImmutableField) Code() int { return CodeImmutableField }

// ErrNonPointer is returned when a decoding target is not a pointer.
var ErrNonPointer = errors.New("target must be a pointer")

// ErrDecode is returned when a document cannot be decoded into a target.
type ErrDecode struct {
	Source any
	Target any
}

// Error implements [error].
func (e ErrDecode) Error() string {
	return fmt.Sprintf("cannot decode %T into %T", e.Source, e.Target)
}

// ErrTargetNil is returned when the passed target, which should be a pointer,
// is passed as a nil value.
type ErrTargetNil struct{}

func (e *ErrTargetNil) Error() string { return "target interface is nil" }

// CodeOf returns the numeric code of err, or zero if err carries none.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c interface{ Code() int }
	if errors.As(err, &c) {
		return c.Code()
	}
	return 0
}
