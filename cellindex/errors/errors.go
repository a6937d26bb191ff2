package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorKind string

const (
	ErrIO           ErrorKind = "io"
	ErrSQL          ErrorKind = "sql"
	ErrConfig       ErrorKind = "config"
	ErrPredicate    ErrorKind = "predicate"
	ErrTypeMismatch ErrorKind = "type_mismatch"
	ErrUnknownField ErrorKind = "unknown_field"
	ErrData         ErrorKind = "data"
	ErrNotFound     ErrorKind = "not_found"
	ErrInternal     ErrorKind = "internal"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// ConfigError reports a malformed schema or a schema/table mismatch.
// These are detected at index (re)build time and are never retried.
func ConfigError(field, msg string) *Error {
	return &Error{Kind: ErrConfig, Field: field, Message: msg}
}

func Configf(field, format string, args ...any) *Error {
	return &Error{Kind: ErrConfig, Field: field, Message: fmt.Sprintf(format, args...)}
}

// PredicateError reports a predicate rejected at query construction time.
func PredicateError(field, msg string) *Error {
	return &Error{Kind: ErrPredicate, Field: field, Message: msg}
}

func Predicatef(field, format string, args ...any) *Error {
	return &Error{Kind: ErrPredicate, Field: field, Message: fmt.Sprintf(format, args...)}
}

func TypeMismatch(field, msg string) *Error {
	return &Error{Kind: ErrTypeMismatch, Field: field, Message: msg}
}

func UnknownFieldError(field string) *Error {
	return &Error{Kind: ErrUnknownField, Message: "no mapper for field", Field: field}
}

func DataError(field string, cause error) *Error {
	return &Error{Kind: ErrData, Field: field, Message: "invalid value", Cause: cause}
}

func NotFoundError(key string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("row not found: %s", key)}
}

func Internalf(format string, args ...any) *Error {
	return &Error{Kind: ErrInternal, Message: fmt.Sprintf(format, args...)}
}

func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
