// Package edr parses OGC EDR query parameters and translates them into a
// single datastore GetObservations request.
package edr

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// ErrNoParameterMatch is returned when wildcard parameter names match no
// series in the store.
var ErrNoParameterMatch = errors.New("no parameter names match the request")

// ValidationError is a rejected query parameter.
type ValidationError struct {
	Field   string
	Message string

	// Status is the HTTP status to answer with; zero means 400.
	Status int
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// HTTPStatus returns the status code to surface the error with.
func (e *ValidationError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors accumulates messages keyed by field.
type ValidationErrors map[string]string

// Add records message for field, keeping the first message per field.
func (v ValidationErrors) Add(field, message string) {
	if _, ok := v[field]; !ok {
		v[field] = message
	}
}

// Err returns nil when nothing was recorded.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return strings.Join(parts, "; ")
}
