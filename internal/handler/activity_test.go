package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sitebook/gateway/internal/handler"
	"github.com/sitebook/gateway/internal/middleware"
	"github.com/sitebook/gateway/internal/notify"
	"go.uber.org/zap"
)

type fakeActivity struct {
	businessID string
	limit      int
	items      []notify.Notification
}

func (f *fakeActivity) ListRecent(_ context.Context, businessID string, limit int) ([]notify.Notification, error) {
	f.businessID, f.limit = businessID, limit
	return f.items, nil
}

func activityServer(store handler.ActivityStore) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	h := handler.NewActivityHandler(store, zap.NewNop())
	h.RegisterRoutes(r)
	return r
}

func getActivity(t *testing.T, srv http.Handler, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, role))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func TestActivity_List(t *testing.T) {
	store := &fakeActivity{items: []notify.Notification{
		notify.New(notify.KindSuccess, "materials", "create", "Created"),
	}}
	srv := activityServer(store)

	rr := getActivity(t, srv, "/activity?limit=10", "admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if store.businessID != "3" || store.limit != 10 {
		t.Errorf("store called with business=%q limit=%d", store.businessID, store.limit)
	}

	items := decode[[]notify.Notification](t, rr)
	if len(items) != 1 || items[0].Entity != "materials" {
		t.Errorf("items: got %+v", items)
	}
}

func TestActivity_DefaultLimit(t *testing.T) {
	store := &fakeActivity{}
	rr := getActivity(t, activityServer(store), "/activity", "super_admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if store.limit != 50 {
		t.Errorf("limit: got %d, want 50", store.limit)
	}
}

func TestActivity_Errors(t *testing.T) {
	tests := []struct {
		name  string
		store handler.ActivityStore
		path  string
		role  string
		want  int
	}{
		{"manager denied", &fakeActivity{}, "/activity", "manager", http.StatusForbidden},
		{"bad limit", &fakeActivity{}, "/activity?limit=abc", "admin", http.StatusBadRequest},
		{"negative limit", &fakeActivity{}, "/activity?limit=-1", "admin", http.StatusBadRequest},
		{"not configured", nil, "/activity", "admin", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := getActivity(t, activityServer(tt.store), tt.path, tt.role)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
