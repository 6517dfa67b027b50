// Package api exposes the story service over JSON HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
)

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// respondError renders a domain error with its mapped HTTP status. Foreign
// errors become opaque 500s; their details stay in the logs.
func respondError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()

	message := err.Error()
	var metadata map[string]string
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		metadata = appErr.Metadata
	}
	if code == apperrors.CodeUnknown {
		logger.Error().Err(err).Msg("internal error")
		message = "internal error"
	}

	respond(w, status, errorResponse{Error: errorBody{
		Code:     string(code),
		Message:  message,
		Metadata: metadata,
	}})
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}
