// Package apperr classifies workflow errors so that every transport maps them
// the same way. Service packages declare their sentinels with New and callers
// inspect them with errors.Is or KindOf.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a workflow error.
type Kind string

const (
	// KindValidation: missing or malformed input; nothing was written.
	KindValidation Kind = "validation"
	// KindNotFound: a referenced record does not exist.
	KindNotFound Kind = "not_found"
	// KindStateConflict: the record is not in a state that allows the operation.
	KindStateConflict Kind = "state_conflict"
	// KindUnauthorized: the actor lacks the organisational right to act.
	KindUnauthorized Kind = "unauthorized"
	// KindDependency: another record blocks the operation.
	KindDependency Kind = "dependency"
	// KindInternal: anything unclassified.
	KindInternal Kind = "internal"
)

// HTTPStatus maps a kind to the response status used by the API.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict, KindDependency:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Code is stable and machine-readable; Details
// carries whatever the caller needs to resolve the problem by hand.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
}

// New declares a sentinel error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error carrying the same code, so a sentinel still matches
// after WithDetails or Wrapf copied it.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrapf returns a copy of e whose message is prefixed with context.
func (e *Error) Wrapf(format string, args ...interface{}) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...) + ": " + e.Message
	return &cp
}

// Validation builds an ad hoc validation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// DetailsOf returns the details of the first *Error in err's chain.
func DetailsOf(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
