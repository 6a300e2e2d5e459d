package config

import (
	"errors"
	"fmt"
)

// Error is a typed configuration error. Every resolution failure is an *Error.
type Error struct {
	Kind    ErrorKind
	Field   string
	Value   string
	Min     uint64
	Max     uint64
	Message string
	Cause   error
}

// ErrorKind categorizes a configuration error.
type ErrorKind int

const (
	ErrKindArgParse ErrorKind = iota
	ErrKindMissingValue
	ErrKindIntervalOrder
	ErrKindIO
	ErrKindUnknownInterface
	ErrKindInvalidValue
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindArgParse:
		return "argument parse error"
	case ErrKindMissingValue:
		return "missing value"
	case ErrKindIntervalOrder:
		return "interval order violation"
	case ErrKindIO:
		return "i/o error"
	case ErrKindUnknownInterface:
		return "unknown interface"
	case ErrKindInvalidValue:
		return "invalid value"
	default:
		return "unknown error"
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewArgParseError wraps a command-line parsing failure.
func NewArgParseError(cause error) *Error {
	return &Error{
		Kind:    ErrKindArgParse,
		Message: "invalid arguments",
		Cause:   cause,
	}
}

// NewMissingValueError reports a required field left empty.
func NewMissingValueError(field string) *Error {
	return &Error{
		Kind:    ErrKindMissingValue,
		Field:   field,
		Message: fmt.Sprintf("no value provided for %s", field),
	}
}

// NewIntervalOrderError reports a minimum interval above the maximum.
func NewIntervalOrderError(minSeconds, maxSeconds uint64) *Error {
	return &Error{
		Kind:    ErrKindIntervalOrder,
		Field:   fieldMinInterval,
		Min:     minSeconds,
		Max:     maxSeconds,
		Message: fmt.Sprintf("min-interval %ds is greater than max-interval %ds", minSeconds, maxSeconds),
	}
}

// NewIOError wraps a settings file failure.
func NewIOError(path, op string, cause error) *Error {
	return &Error{
		Kind:    ErrKindIO,
		Field:   fieldConfig,
		Value:   path,
		Message: fmt.Sprintf("cannot %s settings file %s", op, path),
		Cause:   cause,
	}
}

// NewUnknownInterfaceError reports an interface name that is not enumerable.
func NewUnknownInterfaceError(name string) *Error {
	return &Error{
		Kind:    ErrKindUnknownInterface,
		Field:   fieldInterface,
		Value:   name,
		Message: fmt.Sprintf("network interface %q not found", name),
	}
}

// NewInvalidValueError reports a malformed literal for field.
func NewInvalidValueError(field, value string, cause error) *Error {
	return &Error{
		Kind:    ErrKindInvalidValue,
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("invalid %s %q", field, value),
		Cause:   cause,
	}
}

// AsError attempts to convert an error to an *Error.
// Returns nil if not possible.
func AsError(err error) *Error {
	var cfgErr *Error
	if errors.As(err, &cfgErr) {
		return cfgErr
	}
	return nil
}

// IsKind reports whether err is a configuration error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	cfgErr := AsError(err)
	return cfgErr != nil && cfgErr.Kind == kind
}

// IsIntervalOrder checks if the error is a min-greater-than-max violation.
func IsIntervalOrder(err error) bool {
	return IsKind(err, ErrKindIntervalOrder)
}
