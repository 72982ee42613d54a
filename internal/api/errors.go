package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
)

var (
	// ErrRouteNotFound is reported for unknown paths.
	ErrRouteNotFound = errors.New("route not found")
	// ErrMethodNotAllowed is reported when the path exists under another verb.
	ErrMethodNotAllowed = errors.New("method not allowed")
	// ErrFeedUnavailable wraps failures of the upstream ephemeris feed.
	ErrFeedUnavailable = errors.New("ephemeris feed unavailable")
)

// StatusFor maps query and upstream errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable

	case errors.Is(err, core.ErrNoDataLoaded),
		errors.Is(err, core.ErrIndexOutOfRange),
		errors.Is(err, core.ErrNoEpochNearNow),
		errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound

	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest

	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed

	case errors.Is(err, core.ErrGeocoding),
		errors.Is(err, ErrFeedUnavailable):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

const noDataHint = "fetch the feed with POST /post-data"

// writeError renders err as a JSON body. 5xx responses are logged at error
// level, everything else at debug.
func writeError(w http.ResponseWriter, r *http.Request, base logging.Logger, err error) {
	ctx := r.Context()
	status := StatusFor(err)
	log := logging.FromContext(ctx, base)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logging.Int("status", status), logging.Err(err))
	} else {
		log.Debug(ctx, "request rejected", logging.Int("status", status), logging.Err(err))
	}
	body := errorBody{
		Error:     err.Error(),
		RequestID: logging.RequestIDFromContext(ctx),
	}
	if errors.Is(err, core.ErrNoDataLoaded) {
		body.Hint = noDataHint
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
