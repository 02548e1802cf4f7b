package toolsearch

import (
	"errors"
	"fmt"
)

// Kind classifies tool-search failures for callers that branch on failure
// class rather than message text.
type Kind string

const (
	KindUnknown        Kind = "UNKNOWN_ERROR"
	KindInitialization Kind = "INITIALIZATION_ERROR"
	KindConfiguration  Kind = "CONFIGURATION_ERROR"
	KindEmbedding      Kind = "EMBEDDING_ERROR"
	KindUpsert         Kind = "UPSERT_ERROR"
	KindQuery          Kind = "QUERY_ERROR"
	KindDelete         Kind = "DELETE_ERROR"
	KindFetch          Kind = "FETCH_ERROR"
	KindValidation     Kind = "VALIDATION_ERROR"
	KindActionNotFound Kind = "ACTION_NOT_FOUND"
	KindExecution      Kind = "EXECUTION_ERROR"
)

// Error carries a failure kind, a message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds a typed error without a cause.
func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapError builds a typed error with a cause.
func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
