// Package apperrors classifies every failure the client can surface to an
// actor into a small fixed taxonomy.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the client-observable failure class
type Kind string

const (
	KindUnknown         Kind = "Unknown"
	KindValidation      Kind = "ValidationError"
	KindUnauthenticated Kind = "Unauthenticated"
	KindUnverified      Kind = "Unverified"
	KindForbidden       Kind = "Forbidden"
	KindInvalidState    Kind = "InvalidState"
	KindNotFound        Kind = "NotFound"
	KindNetwork         Kind = "NetworkError"
	KindServer          Kind = "ServerError"
)

// Sentinels for errors.Is matching by kind
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrUnverified      = &Error{Kind: KindUnverified}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrServer          = &Error{Kind: KindServer}
)

// Error is a classified failure
type Error struct {
	Kind    Kind
	Message string
	Status  int               // HTTP status when the failure came from the API
	Fields  map[string]string // per-field messages for validation failures
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels (no message) by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: orDefault(msg, "Please log in to continue")}
}

func Unverified(msg string) *Error {
	return &Error{Kind: KindUnverified, Message: orDefault(msg, "Please verify your email first")}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: orDefault(msg, "You are not allowed to do that")}
}

func InvalidState(msg string) *Error {
	return &Error{Kind: KindInvalidState, Message: orDefault(msg, "This action is not available right now")}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: orDefault(msg, "Not found")}
}

// Network wraps a transport failure; the cause is kept for logs only
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Message: "Network error, please try again", Err: err}
}

func Server(msg string, status int) *Error {
	return &Error{Kind: KindServer, Message: orDefault(msg, "Server error, please try again later"), Status: status}
}

// Unknown carries the raw server message of a response that could not be classified
func Unknown(msg string, status int) *Error {
	return &Error{Kind: KindUnknown, Message: orDefault(msg, fmt.Sprintf("Request failed (status %d)", status)), Status: status}
}

// Validation builds a form-level failure from field messages
func Validation(fields map[string]string) *Error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fields[k])
	}

	return &Error{Kind: KindValidation, Message: strings.Join(parts, "; "), Fields: fields}
}

// KindOf returns the kind of err, or KindUnknown for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Result is the uniform success/failure shape handed to presentation code
type Result struct {
	Success bool
	Kind    Kind
	Reason  string
}

// ToResult converts an operation outcome into a Result
func ToResult(err error) Result {
	if err == nil {
		return Result{Success: true}
	}

	var e *Error
	if errors.As(err, &e) {
		return Result{Kind: e.Kind, Reason: e.Error()}
	}
	return Result{Kind: KindUnknown, Reason: "Something went wrong"}
}

func orDefault(msg, def string) string {
	if strings.TrimSpace(msg) == "" {
		return def
	}
	return msg
}
