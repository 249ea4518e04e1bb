// Package odserr defines the error kinds surfaced by the schema, instance
// store and external component codec. Every failure carries a stable Kind plus
// a message naming the offending element, attribute, relation or instance.
package odserr

import (
	"errors"
	"fmt"
)

// Kind classifies an error. The zero value is never produced by this package.
type Kind int

const (
	// NotFound reports an unknown element, attribute, relation, instance,
	// enumeration item, unit or file.
	NotFound Kind = iota + 1
	// BadParameter reports an empty or invalid name, a value of the wrong data
	// kind, a value out of range or an ambiguous target without qualifier.
	BadParameter
	// BadOperation reports a structurally forbidden mutation.
	BadOperation
	// ImplementationProblem reports an internal invariant violation.
	ImplementationProblem
	// NotImplemented reports an unsupported data kind or feature combination.
	NotImplemented
	// UnknownError wraps unexpected I/O and backend failures.
	UnknownError
)

var kindNames = map[Kind]string{
	NotFound:              "not found",
	BadParameter:          "bad parameter",
	BadOperation:          "bad operation",
	ImplementationProblem: "implementation problem",
	NotImplemented:        "not implemented",
	UnknownError:          "unknown error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the concrete error type returned across the module.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so the package sentinels work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound              = &Error{Kind: NotFound}
	ErrBadParameter          = &Error{Kind: BadParameter}
	ErrBadOperation          = &Error{Kind: BadOperation}
	ErrImplementationProblem = &Error{Kind: ImplementationProblem}
	ErrNotImplemented        = &Error{Kind: NotImplemented}
	ErrUnknown               = &Error{Kind: UnknownError}
)

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around cause. A nil cause yields nil.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or UnknownError
// when err is non-nil but carries no kind. It returns 0 for a nil error.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnknownError
}

// Convenience constructors used throughout the module.

func NotFoundf(format string, args ...any) error { return New(NotFound, format, args...) }

func BadParameterf(format string, args ...any) error { return New(BadParameter, format, args...) }

func BadOperationf(format string, args ...any) error { return New(BadOperation, format, args...) }

func ImplementationProblemf(format string, args ...any) error {
	return New(ImplementationProblem, format, args...)
}

func NotImplementedf(format string, args ...any) error { return New(NotImplemented, format, args...) }
