package domain

import (
	"context"
	"errors"
)

// Status tags the outcome of a catalog operation.
type Status string

const (
	StatusOK              Status = "ok"
	StatusTooManyResults  Status = "too_many_results"
	StatusAuthFailed      Status = "auth_failed"
	StatusTransportFailed Status = "transport_failed"
	StatusCancelled       Status = "cancelled"
)

// Result is the tagged outcome of a search. Items is empty unless Status is
// StatusOK or StatusCancelled (partial work). Signal is set for
// StatusTooManyResults and Err holds the cause of a failure. Partial marks an
// ok list where some items could not be completed; such results are served
// but never cached.
type Result[T any] struct {
	Items   []T
	Status  Status
	Signal  *ErrorSignal
	Err     error
	Partial bool
}

// OK wraps a successful item list. A nil list is normalized to empty.
func OK[T any](items []T) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Status: StatusOK}
}

// PartialOK wraps an ok list that is missing some data, with err describing
// what is missing.
func PartialOK[T any](items []T, err error) Result[T] {
	res := OK(items)
	res.Partial = true
	res.Err = err
	return res
}

// Signaled wraps an error signal.
func Signaled[T any](signal ErrorSignal) Result[T] {
	return Result[T]{Items: []T{}, Status: StatusTooManyResults, Signal: &signal}
}

// Failed classifies err into a failure status.
func Failed[T any](err error) Result[T] {
	return Result[T]{Items: []T{}, Status: Classify(err), Err: err}
}

// Cancelled keeps whatever was gathered before the context ended.
func Cancelled[T any](items []T, err error) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Status: StatusCancelled, Err: err}
}

// Succeeded reports whether the catalog answered with an ordinary list.
func (r Result[T]) Succeeded() bool {
	return r.Status == StatusOK
}

// Classify maps an error onto the status reported to callers.
func Classify(err error) Status {
	var (
		authErr      *AuthError
		transportErr *TransportError
	)
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &authErr):
		return StatusAuthFailed
	case errors.As(err, &transportErr):
		return StatusTransportFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusTransportFailed
	}
}
