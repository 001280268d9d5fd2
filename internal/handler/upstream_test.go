package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/sitebook/gateway/internal/auth"
	"github.com/sitebook/gateway/internal/entity"
	"github.com/sitebook/gateway/internal/enum"
	"github.com/sitebook/gateway/internal/export"
	"github.com/sitebook/gateway/internal/handler"
	"github.com/sitebook/gateway/internal/middleware"
	"github.com/sitebook/gateway/internal/notify"
	"github.com/sitebook/gateway/internal/query"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// --- Fake upstream ---

// fakeUpstream mimics the backend's REST conventions: lists filtered by the
// site_id header, POST-only writes and /{resource}/delete/{id}.
type fakeUpstream struct {
	mu      sync.Mutex
	records map[string][]map[string]any
	nextID  int
	fail    map[string]int // resource -> status to answer with
	calls   map[string]int // "METHOD /path"

	lastAuth  string
	lastSite  string
	lastQuery string
	lastBody  map[string]any
	lastFiles []string
}

func newFakeUpstream(t *testing.T) (*fakeUpstream, string) {
	t.Helper()
	f := &fakeUpstream{
		records: map[string][]map[string]any{},
		nextID:  100,
		fail:    map[string]int{},
		calls:   map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Post("/login", f.login)
	r.Get("/{res}", f.list)
	r.Get("/{res}/{id}", f.detail)
	r.Post("/{res}", f.create)
	r.Post("/{res}/delete/{id}", f.remove)
	r.Post("/{res}/{id}", f.update)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func (f *fakeUpstream) seed(res string, recs ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[res] = append(f.records[res], recs...)
}

func (f *fakeUpstream) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeUpstream) snapshot() (auth, site, query string, body map[string]any, files []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth, f.lastSite, f.lastQuery, f.lastBody, f.lastFiles
}

func (f *fakeUpstream) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[r.Method+" "+r.URL.Path]++
		f.lastAuth = r.Header.Get("Authorization")
		f.lastSite = r.Header.Get(apiclient.HeaderSiteID)
		f.lastQuery = r.URL.RawQuery
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeUpstream) failing(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	status := f.fail[chi.URLParam(r, "res")]
	f.mu.Unlock()
	if status == 0 {
		return false
	}
	reply(w, status, map[string]any{"message": "upstream exploded"})
	return true
}

func (f *fakeUpstream) login(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password string }
	json.NewDecoder(r.Body).Decode(&req)
	if req.Email != "ram@site.in" || req.Password != "secret" {
		reply(w, http.StatusUnauthorized, map[string]any{"status": false, "message": "Invalid credentials"})
		return
	}
	reply(w, http.StatusOK, map[string]any{
		"status": true,
		"data": map[string]any{
			"token": "up-tok",
			"user":  map[string]any{"id": 7, "business_id": 3, "name": "Ram", "role": "Manager"},
		},
	})
}

func (f *fakeUpstream) list(w http.ResponseWriter, r *http.Request) {
	if f.failing(w, r) {
		return
	}
	site := r.Header.Get(apiclient.HeaderSiteID)

	f.mu.Lock()
	out := []map[string]any{}
	for _, rec := range f.records[chi.URLParam(r, "res")] {
		if site != "" && site != enum.AllSites && rec["site_id"] != nil && fmt.Sprint(rec["site_id"]) != site {
			continue
		}
		out = append(out, rec)
	}
	f.mu.Unlock()

	reply(w, http.StatusOK, map[string]any{"status": true, "message": "Fetched", "data": out})
}

func (f *fakeUpstream) find(res, id string) (int, map[string]any) {
	for i, rec := range f.records[res] {
		if fmt.Sprint(rec["id"]) == id {
			return i, rec
		}
	}
	return -1, nil
}

func (f *fakeUpstream) detail(w http.ResponseWriter, r *http.Request) {
	if f.failing(w, r) {
		return
	}
	f.mu.Lock()
	_, rec := f.find(chi.URLParam(r, "res"), chi.URLParam(r, "id"))
	f.mu.Unlock()

	if rec == nil {
		reply(w, http.StatusNotFound, map[string]any{"message": "Not found"})
		return
	}
	reply(w, http.StatusOK, map[string]any{"data": rec})
}

// fields reads a JSON or multipart body.
func (f *fakeUpstream) fields(r *http.Request) (map[string]any, []string) {
	body := map[string]any{}
	var files []string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.ParseMultipartForm(1 << 20)
		for k, v := range r.MultipartForm.Value {
			body[k] = v[0]
		}
		for _, fhs := range r.MultipartForm.File {
			for _, fh := range fhs {
				files = append(files, fh.Filename)
			}
		}
	} else {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
	}

	f.mu.Lock()
	f.lastBody, f.lastFiles = body, files
	f.mu.Unlock()
	return body, files
}

func (f *fakeUpstream) create(w http.ResponseWriter, r *http.Request) {
	if f.failing(w, r) {
		return
	}
	body, files := f.fields(r)
	if body["name"] == "reject" {
		reply(w, http.StatusOK, map[string]any{"status": false, "message": "Duplicate entry"})
		return
	}

	f.mu.Lock()
	f.nextID++
	body["id"] = f.nextID
	if len(files) > 0 {
		body["image"] = files[0]
	}
	res := chi.URLParam(r, "res")
	f.records[res] = append(f.records[res], body)
	f.mu.Unlock()

	reply(w, http.StatusOK, map[string]any{"status": true, "message": "Created", "data": body})
}

func (f *fakeUpstream) update(w http.ResponseWriter, r *http.Request) {
	if f.failing(w, r) {
		return
	}
	body, _ := f.fields(r)

	f.mu.Lock()
	_, rec := f.find(chi.URLParam(r, "res"), chi.URLParam(r, "id"))
	if rec != nil {
		for k, v := range body {
			if k != "_method" {
				rec[k] = v
			}
		}
	}
	f.mu.Unlock()

	if rec == nil {
		reply(w, http.StatusNotFound, map[string]any{"message": "Not found"})
		return
	}
	reply(w, http.StatusOK, map[string]any{"status": true, "message": "Updated", "data": rec})
}

func (f *fakeUpstream) remove(w http.ResponseWriter, r *http.Request) {
	if f.failing(w, r) {
		return
	}
	res := chi.URLParam(r, "res")

	f.mu.Lock()
	i, _ := f.find(res, chi.URLParam(r, "id"))
	if i >= 0 {
		f.records[res] = append(f.records[res][:i], f.records[res][i+1:]...)
	}
	f.mu.Unlock()

	if i < 0 {
		reply(w, http.StatusOK, map[string]any{"status": false, "message": "Record does not exist"})
		return
	}
	reply(w, http.StatusOK, map[string]any{"status": true, "message": "Deleted"})
}

// --- Gateway under test ---

type notes struct {
	mu   sync.Mutex
	list []notify.Notification
}

func (n *notes) Notify(_ context.Context, note notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, note)
	return nil
}

func (n *notes) all() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.list...)
}

type gateway struct {
	up    *fakeUpstream
	h     http.Handler
	notes *notes
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	up, baseURL := newFakeUpstream(t)
	n := &notes{}

	logger := zap.NewNop()
	deps := handler.Deps{
		Upstream: apiclient.New(apiclient.Options{BaseURL: baseURL, Timeout: 5 * time.Second}, logger),
		Cache:    query.NewClient(query.NewMemoryStore(0), query.Options{Retry: query.RetryPolicy{Max: 0}}, logger),
		Notifier: n,
		Logger:   logger,
	}
	staff := handler.Roles{Read: []string{enum.RoleStaff}, Write: []string{enum.RoleSupervisor}}

	authHandler := handler.NewAuthHandler(deps.Upstream, testSecret, time.Hour, logger)

	r := chi.NewRouter()
	authHandler.RegisterRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Use(middleware.SiteScope)
		r.Get("/auth/me", authHandler.Me)

		r.Route("/materials", handler.NewResourceHandler[entity.Material](deps, enum.ResourceMaterials, staff,
			handler.WithExport("Materials", export.MaterialColumns)).RegisterRoutes)
		r.Route("/sites", handler.NewResourceHandler[entity.Site](deps, enum.ResourceSites, staff).RegisterRoutes)
		r.Route("/razorpay-settings", handler.NewResourceHandler[entity.RazorpaySetting](deps, enum.ResourceRazorpaySettings,
			handler.Roles{Read: []string{enum.RoleAdmin}, Write: []string{enum.RoleAdmin}},
			handler.WithTransform(entity.RazorpaySetting.Redacted)).RegisterRoutes)
		handler.NewWhatsAppHandler(deps, "91").RegisterRoutes(r)
	})

	return &gateway{up: up, h: r, notes: n}
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, auth.Identity{
		UserID:        "7",
		BusinessID:    "3",
		Role:          role,
		Name:          "Ram",
		UpstreamToken: "up-tok",
	}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

// call sends an authenticated request as role with site selected.
func (g *gateway) call(t *testing.T, method, path, role, site string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, role))
	}
	if site != "" {
		req.Header.Set(apiclient.HeaderSiteID, site)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	g.h.ServeHTTP(rr, req)
	return rr
}

func (g *gateway) callJSON(t *testing.T, method, path, role, site string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return g.call(t, method, path, role, site, strings.NewReader(string(raw)), "application/json")
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}
