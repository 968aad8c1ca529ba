// Package result is the uniform outcome type returned by every core
// operation: {ok: true, data} on success, {ok: false, error, code} on failure.
package result

import (
	"encoding/json"
	"errors"
	"net/http"

	"coinstock/backend/internal/store"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeNotReady   = "NOT_READY"
	CodeStore      = "STORE_ERROR"
)

// Result must be checked with OK before Data or Error is read.
type Result[T any] struct {
	OK    bool   `json:"ok"`
	Data  T      `json:"data"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

// MarshalJSON emits exactly one of the two envelope shapes.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(struct {
			OK   bool `json:"ok"`
			Data T    `json:"data"`
		}{OK: true, Data: r.Data})
	}
	return json.Marshal(struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		Code  string `json:"code,omitempty"`
	}{OK: false, Error: r.Error, Code: r.Code})
}

func Success[T any](data T) Result[T] {
	return Result[T]{OK: true, Data: data}
}

func Failure[T any](message string, code string) Result[T] {
	if message == "" {
		message = "unknown error"
	}
	return Result[T]{OK: false, Error: message, Code: code}
}

func Invalid[T any](message string) Result[T] {
	return Failure[T](message, CodeValidation)
}

// FromError converts a store error into the failure shape. Not-ready always
// maps to CodeNotReady so callers can tell it apart; otherwise a
// store-provided code is preferred over the generic kind code.
func FromError[T any](err error) Result[T] {
	if err == nil {
		return Failure[T]("unknown error", CodeStore)
	}
	return Failure[T](err.Error(), CodeFor(err))
}

func CodeFor(err error) string {
	if errors.Is(err, store.ErrNotReady) {
		return CodeNotReady
	}
	if code := store.CodeOf(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return CodeValidation
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, store.ErrConflict):
		return CodeConflict
	default:
		return CodeStore
	}
}

// Unwrap converts the envelope back into Go's value/error pair.
func (r Result[T]) Unwrap() (T, error) {
	if !r.OK {
		var zero T
		return zero, &Error{Message: r.Error, Code: r.Code}
	}
	return r.Data, nil
}

func (r Result[T]) HTTPStatus(okStatus int) int {
	if r.OK {
		return okStatus
	}
	return StatusFor(r.Code)
}

type Error struct {
	Message string
	Code    string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusFor maps envelope codes, including the SQLSTATEs the stores keep,
// onto HTTP statuses.
func StatusFor(code string) int {
	switch code {
	case CodeValidation, "23514", "23503", "23502", "22P02", "22023":
		return http.StatusBadRequest
	case CodeNotFound, "P0002":
		return http.StatusNotFound
	case CodeConflict, "23505":
		return http.StatusConflict
	case CodeNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
