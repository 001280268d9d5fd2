package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/sitebook/gateway/internal/entity"
	"github.com/sitebook/gateway/internal/envelope"
	"github.com/sitebook/gateway/internal/export"
	"github.com/sitebook/gateway/internal/middleware"
	"github.com/sitebook/gateway/internal/resource"
)

const maxUploadSize = 32 << 20

// Roles gates a resource. Callers need at least the rank of Read to list
// and view records, and of Write to change them.
type Roles struct {
	Read  []string
	Write []string
}

// ResourceHandler serves one upstream resource under /api/{path}.
type ResourceHandler[T entity.Entity] struct {
	deps      Deps
	path      string
	roles     Roles
	transform func(T) T
	sheet     string
	columns   []export.Column[T]
}

type ResourceOption[T entity.Entity] func(*ResourceHandler[T])

// WithTransform rewrites every record before it is returned.
func WithTransform[T entity.Entity](fn func(T) T) ResourceOption[T] {
	return func(h *ResourceHandler[T]) { h.transform = fn }
}

// WithExport enables GET /export.xlsx.
func WithExport[T entity.Entity](sheet string, columns []export.Column[T]) ResourceOption[T] {
	return func(h *ResourceHandler[T]) {
		h.sheet = sheet
		h.columns = columns
	}
}

func NewResourceHandler[T entity.Entity](deps Deps, path string, roles Roles, opts ...ResourceOption[T]) *ResourceHandler[T] {
	h := &ResourceHandler[T]{deps: deps, path: path, roles: roles}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ResourceHandler[T]) Path() string { return h.path }

// RegisterRoutes registers the CRUD endpoints. Updates and deletes are also
// reachable with POST for clients that cannot send PUT or DELETE.
func (h *ResourceHandler[T]) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(h.roles.Read...))
		r.Get("/", h.List)
		if len(h.columns) > 0 {
			r.Get("/export.xlsx", h.Export)
		}
		r.Get("/{id}", h.Detail)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(h.roles.Write...))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Post("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/delete/{id}", h.Delete)
	})
}

// --- Response types ---

type listResponse[T any] struct {
	envelope.Envelope[[]T]
	IsRefetching bool `json:"is_refetching"`
}

// --- Handlers ---

// List returns the collection for the selected site. Query parameters other
// than site_id are passed upstream as filters.
func (h *ResourceHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	res, err := hooksFor[T](h.deps, r, h.path).List(r.Context(), filters(r))
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}

	env := res.Data
	env.Data = h.applyAll(env.Data)
	writeJSON(w, http.StatusOK, listResponse[T]{Envelope: env, IsRefetching: res.IsRefetching})
}

func (h *ResourceHandler[T]) Detail(w http.ResponseWriter, r *http.Request) {
	v, err := hooksFor[T](h.deps, r, h.path).Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.Envelope[T]{Status: true, Message: envelope.MsgListed, Data: h.apply(v)})
}

func (h *ResourceHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	env, err := hooksFor[T](h.deps, r, h.path).Create(r.Context(), p)
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}
	env.Data = h.apply(env.Data)
	writeJSON(w, http.StatusCreated, env)
}

func (h *ResourceHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	env, err := hooksFor[T](h.deps, r, h.path).Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}
	env.Data = h.apply(env.Data)
	writeJSON(w, http.StatusOK, env)
}

func (h *ResourceHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	if err := hooksFor[T](h.deps, r, h.path).Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.Envelope[any]{Status: true, Message: envelope.MsgDeleted})
}

// Export renders the filtered collection as a workbook.
func (h *ResourceHandler[T]) Export(w http.ResponseWriter, r *http.Request) {
	res, err := hooksFor[T](h.deps, r, h.path).List(r.Context(), filters(r))
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}

	data, err := export.Workbook(h.sheet, h.columns, h.applyAll(res.Data.Data))
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, h.path))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *ResourceHandler[T]) apply(v T) T {
	if h.transform == nil {
		return v
	}
	return h.transform(v)
}

func (h *ResourceHandler[T]) applyAll(items []T) []T {
	if h.transform == nil {
		return items
	}
	out := make([]T, len(items))
	for i, v := range items {
		out[i] = h.transform(v)
	}
	return out
}

// --- Request helpers ---

func filters(r *http.Request) url.Values {
	q := r.URL.Query()
	q.Del(apiclient.HeaderSiteID)
	if len(q) == 0 {
		return nil
	}
	return q
}

// readPayload accepts a JSON object or a multipart form with files.
func readPayload(r *http.Request) (resource.Payload, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		return readMultipart(r)
	}

	fields := map[string]any{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil && err != io.EOF {
		return resource.Payload{}, fmt.Errorf("invalid request body")
	}
	return resource.Payload{Fields: fields}, nil
}

func readMultipart(r *http.Request) (resource.Payload, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return resource.Payload{}, fmt.Errorf("invalid multipart body")
	}

	p := resource.Payload{Fields: map[string]any{}}
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			p.Fields[k] = v[0]
		}
	}
	for field, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return resource.Payload{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return resource.Payload{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
			}
			p.Files = append(p.Files, apiclient.File{Field: field, Name: fh.Filename, Content: content})
		}
	}
	return p, nil
}
