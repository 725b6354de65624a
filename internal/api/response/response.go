// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/eurodeo/esoh/internal/api/middleware"
	"github.com/eurodeo/esoh/internal/api/models"
	"github.com/eurodeo/esoh/internal/formatter"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	write(w, r, status, "application/json", data)
}

// Document writes a formatted CoverageJSON or GeoJSON document under its
// own media type.
func Document(w http.ResponseWriter, r *http.Request, doc formatter.Response) {
	write(w, r, http.StatusOK, doc.MediaType(), doc)
}

func write(w http.ResponseWriter, r *http.Request, status int, contentType string, data interface{}) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a {"detail": ...} error response.
func Error(w http.ResponseWriter, r *http.Request, status int, detail *models.ErrorDetail) {
	detail.Write(w, status, middleware.GetRequestID(r.Context()))
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail any) {
	Error(w, r, http.StatusBadRequest, models.NewErrorDetail(detail))
}

// NotFound writes a 404 with the standard empty-result detail.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, http.StatusNotFound, models.NewErrorDetail(models.DetailNotFound))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, http.StatusInternalServerError, models.NewErrorDetail(detail))
}

// GatewayTimeout writes a 504 Gateway Timeout error response.
func GatewayTimeout(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, http.StatusGatewayTimeout, models.NewErrorDetail(detail))
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, http.StatusServiceUnavailable, models.NewErrorDetail(detail))
}
