package datastore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrDeadline is returned when a call exceeds the configured per-RPC deadline.
	ErrDeadline = errors.New("datastore deadline exceeded")

	// ErrUnavailable is returned when the store cannot be reached or the
	// circuit breaker is open.
	ErrUnavailable = errors.New("datastore unavailable")

	// ErrCanceled is returned when the caller went away mid-call.
	ErrCanceled = errors.New("datastore call canceled")

	// ErrRejected is returned when the store answers a write with an error status.
	ErrRejected = errors.New("datastore rejected request")
)

// Error is a failed datastore call. It unwraps to one of the package
// sentinels when the failure has a known class.
type Error struct {
	Method string
	Code   codes.Code
	Detail string
	kind   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("datastore %s: %s: %s", e.Method, e.Code, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.kind
}

func wrapError(method string, err error) error {
	if err == nil {
		return nil
	}

	e := &Error{Method: method}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Code, e.Detail, e.kind = codes.DeadlineExceeded, err.Error(), ErrDeadline
		return e
	case errors.Is(err, context.Canceled):
		e.Code, e.Detail, e.kind = codes.Canceled, err.Error(), ErrCanceled
		return e
	}

	st := status.Convert(err)
	e.Code, e.Detail = st.Code(), st.Message()
	switch st.Code() {
	case codes.DeadlineExceeded:
		e.kind = ErrDeadline
	case codes.Canceled:
		e.kind = ErrCanceled
	case codes.Unavailable:
		e.kind = ErrUnavailable
	}
	return e
}
