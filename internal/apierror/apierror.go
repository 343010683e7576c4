// Package apierror provides the error taxonomy of the terminal agent and the
// envelope used for every 4xx/5xx response of the local API.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError means a required field is missing or malformed.
// It is raised before any network call is attempted.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Detail
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Detail + " (" + strings.Join(parts, ", ") + ")"
}

// TransportError means the remote API could not be reached or timed out.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: remote API unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a non-2xx answer. Detail is the server message, shown verbatim.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote API returned %d", e.Status)
	}
	return e.Detail
}

var (
	// ErrInvalidTransition is returned when a session action does not match
	// its current status (e.g. closing a session that is already closed).
	ErrInvalidTransition = errors.New("cash session is not open")
	// ErrQueueExhausted marks a queued request dropped after the retry ceiling.
	ErrQueueExhausted = errors.New("queued request exhausted its retries")
)

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsServer reports whether err is (or wraps) a ServerError.
func IsServer(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// HTTPStatus maps an error from the taxonomy to the status the local API
// answers with.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		te *TransportError
		se *ServerError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.As(err, &te):
		return http.StatusServiceUnavailable
	case errors.As(err, &se):
		if se.Status >= 400 && se.Status < 600 {
			return se.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Body builds the response envelope for err.
func Body(err error) any {
	var (
		ve *ValidationError
		se *ServerError
	)
	if errors.As(err, &ve) {
		return ve
	}
	// Server messages reach the operator verbatim, without our wrapping.
	if errors.As(err, &se) {
		return New(se.Error())
	}
	return New(err.Error())
}
