package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/eurodeo/esoh/internal/api/response"
	"github.com/eurodeo/esoh/internal/ingest"
)

const (
	// MaxJSONBody caps the size of a /json request body.
	MaxJSONBody = 32 << 20

	// MaxBUFRUpload caps the size of a /bufr upload.
	MaxBUFRUpload = 64 << 20
)

// bufrFields are the multipart fields a BUFR file is accepted under.
var bufrFields = []string{"files", "file"}

// Ingester is the ingest pipeline behind the handlers.
type Ingester interface {
	IngestJSON(ctx context.Context, body []byte) (ingest.Result, error)
	IngestBUFR(ctx context.Context, data []byte) (ingest.Result, error)
}

// IngestHandler handles the ingest endpoints.
type IngestHandler struct {
	service Ingester
	logger  zerolog.Logger
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(service Ingester, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{service: service, logger: logger}
}

// JSON handles POST /json - a single envelope or a list of envelopes.
func (h *IngestHandler) JSON(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	if err != nil {
		h.write(w, r, ingest.Result{}, readError(err))
		return
	}

	res, err := h.service.IngestJSON(r.Context(), body)
	h.write(w, r, res, err)
}

// BUFR handles POST /bufr - a multipart upload of one BUFR file.
func (h *IngestHandler) BUFR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBUFRUpload)
	if err := r.ParseMultipartForm(MaxBUFRUpload); err != nil {
		h.write(w, r, ingest.Result{}, readError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	data, err := formFile(r)
	if err != nil {
		h.write(w, r, ingest.Result{}, err)
		return
	}

	res, err := h.service.IngestBUFR(r.Context(), data)
	h.write(w, r, res, err)
}

func formFile(r *http.Request) ([]byte, error) {
	for _, field := range bufrFields {
		f, _, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ingest.ErrInvalidMessage, err)
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("%w: read upload: %v", ingest.ErrInvalidMessage, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: multipart field %q is required", ingest.ErrInvalidMessage, bufrFields[0])
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: request body exceeds %d bytes", ingest.ErrInvalidMessage, tooLarge.Limit)
	}
	return fmt.Errorf("%w: read body: %v", ingest.ErrInvalidMessage, err)
}

// write answers with res, or with the result err maps to.
func (h *IngestHandler) write(w http.ResponseWriter, r *http.Request, res ingest.Result, err error) {
	if err != nil {
		res = ingest.ErrorResult(err)
		event := h.logger.Warn()
		if res.StatusCode >= http.StatusInternalServerError {
			event = h.logger.Error()
		}
		event.Err(err).Int("status", res.StatusCode).Msg("ingest failed")
	}
	response.JSON(w, r, res.StatusCode, res)
}
