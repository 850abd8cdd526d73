// Package fetch implements the authentication-gated, timeout-bounded fetch
// executor and the cached resource accessors built on top of it. Every
// operation resolves to a typed Result; nothing in this package panics or
// returns a bare error across the boundary.
package fetch

import "net/http"

// ErrorKind classifies every failure the data-access layer can produce.
type ErrorKind string

const (
	// ErrUnauthenticated: no session appeared within the gate's grace
	// period. Recoverable by redirecting to login.
	ErrUnauthenticated ErrorKind = "unauthenticated"
	// ErrTimeout: the underlying call exceeded the fixed budget.
	// Recoverable by a manual refetch.
	ErrTimeout ErrorKind = "timeout"
	// ErrRequestFailed: the upstream reported an error; its message is
	// surfaced verbatim.
	ErrRequestFailed ErrorKind = "request_failed"
	// ErrJobSubmissionFailed: the tracking record could not be created, so
	// no external call was made.
	ErrJobSubmissionFailed ErrorKind = "job_submission_failed"
	// ErrJobExternalFailed: the analysis service rejected or failed the job.
	ErrJobExternalFailed ErrorKind = "job_external_failed"
	// ErrJobTimedOut: the polling budget ran out without a terminal status.
	// Fatal only to the client's observation, not to the backend job.
	ErrJobTimedOut ErrorKind = "job_timed_out"
)

// Result is the tagged success/failure union produced by every executor
// invocation.
type Result[T any] struct {
	OK      bool
	Data    T
	Kind    ErrorKind
	Message string
}

func Success[T any](data T) Result[T] {
	return Result[T]{OK: true, Data: data}
}

func Failure[T any](kind ErrorKind, message string) Result[T] {
	return Result[T]{Kind: kind, Message: message}
}

// HTTPStatus maps an error kind to the status code the HTTP surface returns.
func (r Result[T]) HTTPStatus() int {
	if r.OK {
		return http.StatusOK
	}
	switch r.Kind {
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrTimeout, ErrJobTimedOut:
		return http.StatusGatewayTimeout
	case ErrJobExternalFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
