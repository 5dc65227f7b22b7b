package api

import (
	"encoding/json"
	"net/http"

	"codeberg.org/mutker/plugmon/internal/errors"
)

// Error is the body of every failed request.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // the client may have gone away
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := statusFor(code)
	writeJSON(w, status, Error{
		Status:  status,
		Code:    string(code),
		Message: err.Error(),
	})
}

// statusFor maps an error code onto an HTTP status.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrNotFound, errors.ErrNoData:
		return http.StatusNotFound
	case errors.ErrValidation, errors.ErrConfirmationRequired, errors.ErrInvalidArgument:
		return http.StatusBadRequest
	case errors.ErrNetwork, errors.ErrUpstream:
		return http.StatusBadGateway
	case errors.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
