package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sitebook/gateway/internal/activity"
	"github.com/sitebook/gateway/internal/enum"
	"github.com/sitebook/gateway/internal/middleware"
	"github.com/sitebook/gateway/internal/notify"
	"go.uber.org/zap"
)

// ActivityStore is satisfied by *activity.Store.
type ActivityStore interface {
	ListRecent(ctx context.Context, businessID string, limit int) ([]notify.Notification, error)
}

type ActivityHandler struct {
	store  ActivityStore
	logger *zap.Logger
}

// NewActivityHandler accepts a nil store; the endpoint then answers 503.
func NewActivityHandler(store ActivityStore, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{store: store, logger: logger}
}

func (h *ActivityHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.RoleAdmin)).Get("/activity", h.List)
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "activity log is not configured"})
		return
	}

	limit := activity.DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	claims := middleware.ClaimsFromContext(r.Context())
	items, err := h.store.ListRecent(r.Context(), claims.BusinessID, limit)
	if err != nil {
		h.logger.Error("list activity", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}
