package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/eurodeo/esoh/internal/api/models"
	"github.com/eurodeo/esoh/internal/api/response"
	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/edr"
	"github.com/eurodeo/esoh/internal/formatter"
)

// errConflictingParameter is returned when two series share a parameter
// name but disagree on what it measures.
var errConflictingParameter = errors.New("conflicting parameter definitions")

// writeError maps query and datastore errors onto HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var ve *edr.ValidationError
	var ves edr.ValidationErrors

	switch {
	case errors.As(err, &ve):
		response.Error(w, r, ve.HTTPStatus(), models.FieldDetail(ve.Field, ve.Message))
	case errors.As(err, &ves):
		response.BadRequest(w, r, map[string]string(ves))
	case errors.Is(err, edr.ErrNoParameterMatch), errors.Is(err, formatter.ErrNoData):
		response.NotFound(w, r)
	case errors.Is(err, datastore.ErrDeadline):
		logger.Error().Err(err).Msg("datastore deadline exceeded")
		response.GatewayTimeout(w, r, err.Error())
	case errors.Is(err, datastore.ErrCanceled):
		logger.Debug().Err(err).Msg("request canceled")
		response.ServiceUnavailable(w, r, err.Error())
	default:
		logger.Error().Err(err).Msg("request failed")
		response.InternalError(w, r, err.Error())
	}
}
