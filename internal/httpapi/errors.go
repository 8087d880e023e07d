package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"litertd/internal/bridge"
	"litertd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

var errDownloadsDisabled = errors.New("model downloads are not enabled")

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeServiceError maps well-known bridge errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) int {
	var status int
	switch {
	case bridge.IsNotFound(err):
		status = http.StatusNotFound
	case bridge.IsTooBusy(err):
		status = http.StatusTooManyRequests
		IncrementBackpressure("session_busy")
	case bridge.IsUnsupported(err) || errors.Is(err, errDownloadsDisabled):
		status = http.StatusNotImplemented
	case bridge.IsAlreadyReleased(err):
		status = http.StatusConflict
	default:
		if he, ok := err.(HTTPError); ok {
			status = he.StatusCode()
		} else {
			status = http.StatusInternalServerError
		}
	}
	writeJSONError(w, status, err.Error())
	return status
}
