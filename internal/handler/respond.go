package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sitebook/gateway/internal/envelope"
	"github.com/sitebook/gateway/internal/query"
	"github.com/sitebook/gateway/internal/resource"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps gateway errors onto HTTP: upstream client errors keep
// their status, business rejections are 422, missing entities 404, and
// upstream or network failures 502.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		rejected *resource.RejectedError
		invalid  *envelope.InvalidDataError
		rerr     *resource.Error
	)

	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": rejected.Message})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
	case errors.Is(err, query.ErrInactive):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
	case errors.As(err, &rerr) && rerr.StatusCode >= 400 && rerr.StatusCode < 500:
		writeJSON(w, rerr.StatusCode, map[string]string{"error": rerr.Message})
	case errors.As(err, &rerr):
		logger.Warn("upstream failure", zap.String("resource", rerr.Resource), zap.String("op", rerr.Op), zap.Error(rerr.Err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": rerr.Message})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "upstream timed out"})
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads this.
		writeJSON(w, http.StatusRequestTimeout, map[string]string{"error": "request cancelled"})
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
