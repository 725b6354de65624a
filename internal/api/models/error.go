package models

import (
	"encoding/json"
	"net/http"
)

// DetailNotFound is the detail of every empty query result.
const DetailNotFound = "Requested data not found"

// ErrorDetail is the body of every error response. Detail is either a
// message or an object keyed by the offending query parameter.
type ErrorDetail struct {
	Detail any `json:"detail"`
}

// NewErrorDetail creates an ErrorDetail.
func NewErrorDetail(detail any) *ErrorDetail {
	return &ErrorDetail{Detail: detail}
}

// FieldDetail creates an ErrorDetail of the form {"detail": {field: message}}.
func FieldDetail(field, message string) *ErrorDetail {
	return &ErrorDetail{Detail: map[string]string{field: message}}
}

// Write writes the ErrorDetail as JSON to the ResponseWriter.
func (e *ErrorDetail) Write(w http.ResponseWriter, status int, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}
