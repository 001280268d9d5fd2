package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/sitebook/gateway/internal/entity"
	"github.com/sitebook/gateway/internal/enum"
	"github.com/sitebook/gateway/internal/envelope"
	"github.com/sitebook/gateway/internal/notify"
	"github.com/sitebook/gateway/internal/resource"
	"go.uber.org/zap"
)

// ErrInactive is returned by Detail when no id is given; nothing is fetched.
var ErrInactive = errors.New("query inactive: no id")

// Adapter is the upstream side of one entity. *resource.Service satisfies it.
type Adapter[T any] interface {
	List(ctx context.Context, filters url.Values) (envelope.Envelope[[]T], error)
	Detail(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, p resource.Payload) (envelope.Envelope[T], error)
	Update(ctx context.Context, id string, p resource.Payload) (envelope.Envelope[T], error)
	Delete(ctx context.Context, id string) error
}

// Scope partitions the cache per user; SiteID is the selected site.
type Scope struct {
	UserID     string
	BusinessID string
	SiteID     string
}

func (s Scope) site() string {
	if s.SiteID == "" {
		return enum.AllSites
	}
	return s.SiteID
}

type ListResult[T any] struct {
	Data         envelope.Envelope[[]T]
	IsRefetching bool
	UpdatedAt    time.Time
}

// Hooks binds one entity's adapter to the shared cache for one caller.
type Hooks[T entity.Entity] struct {
	client   *Client
	adapter  Adapter[T]
	entity   string
	scope    Scope
	notifier notify.Notifier
}

func NewHooks[T entity.Entity](client *Client, adapter Adapter[T], entityName string, scope Scope, notifier notify.Notifier) *Hooks[T] {
	return &Hooks[T]{
		client:   client,
		adapter:  adapter,
		entity:   entityName,
		scope:    scope,
		notifier: notifier,
	}
}

func (h *Hooks[T]) listKey(filters url.Values) string {
	return ListKey(h.entity, h.scope.UserID, h.scope.site(), filters).String()
}

func (h *Hooks[T]) detailKey(id string) string {
	return DetailKey(h.entity, h.scope.UserID, h.scope.site(), id).String()
}

func (h *Hooks[T]) dropDetails(ctx context.Context, id string) {
	if err := h.client.RemovePrefix(ctx, DetailPrefix(h.entity, h.scope.UserID, id)); err != nil {
		h.client.logger.Warn("drop detail entries failed", zap.String("entity", h.entity), zap.Error(err))
	}
}

func (h *Hooks[T]) listPrefix() string {
	return ListPrefix(h.entity, h.scope.UserID)
}

// List returns the entity's collection for the selected site and filters.
func (h *Hooks[T]) List(ctx context.Context, filters url.Values) (ListResult[T], error) {
	empty := ListResult[T]{Data: envelope.Envelope[[]T]{Data: []T{}}}

	e, refetching, err := h.client.read(ctx, h.entity, h.listKey(filters), func(ctx context.Context) (json.RawMessage, error) {
		env, err := h.adapter.List(ctx, filters)
		if err != nil {
			return nil, err
		}
		return json.Marshal(env)
	})
	if err != nil {
		return empty, err
	}

	env, err := decodeList[T](e.Data)
	if err != nil {
		return empty, err
	}
	return ListResult[T]{Data: env, IsRefetching: refetching, UpdatedAt: e.UpdatedAt}, nil
}

// Snapshot returns the cached list without fetching.
func (h *Hooks[T]) Snapshot(ctx context.Context, filters url.Values) (envelope.Envelope[[]T], bool, error) {
	e, ok, err := h.client.Snapshot(ctx, h.listKey(filters))
	if err != nil || !ok {
		return envelope.Envelope[[]T]{Data: []T{}}, false, err
	}
	env, err := decodeList[T](e.Data)
	if err != nil {
		return envelope.Envelope[[]T]{Data: []T{}}, false, err
	}
	return env, true, nil
}

// Detail returns one record. It does nothing while id is empty.
func (h *Hooks[T]) Detail(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, ErrInactive
	}

	e, _, err := h.client.read(ctx, h.entity, h.detailKey(id), func(ctx context.Context) (json.RawMessage, error) {
		v, err := h.adapter.Detail(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}

// Create posts a new record. On success the entity's lists are invalidated.
// An envelope with a false status is reported as a failure.
func (h *Hooks[T]) Create(ctx context.Context, p resource.Payload) (envelope.Envelope[T], error) {
	wctx := context.WithoutCancel(ctx)

	env, err := h.adapter.Create(wctx, p)
	if err != nil {
		h.emit(wctx, notify.KindError, enum.OpCreate, "", envelope.Message(err, envelope.MsgFailed))
		return env, err
	}
	if !env.Status {
		h.emit(wctx, notify.KindError, enum.OpCreate, "", env.Message)
		return env, &resource.RejectedError{Op: enum.OpCreate, Resource: h.entity, Message: env.Message}
	}

	h.invalidateLists(wctx)
	h.emit(wctx, notify.KindSuccess, enum.OpCreate, idOf(env.Data), env.Message)
	return env, nil
}

// Update writes id. On success the detail entries are dropped, the record is
// patched into cached lists when the upstream returned it, and the lists
// are invalidated.
func (h *Hooks[T]) Update(ctx context.Context, id string, p resource.Payload) (envelope.Envelope[T], error) {
	wctx := context.WithoutCancel(ctx)

	env, err := h.adapter.Update(wctx, id, p)
	if err != nil {
		h.emit(wctx, notify.KindError, enum.OpUpdate, id, envelope.Message(err, envelope.MsgFailed))
		return env, err
	}
	if !env.Status {
		h.emit(wctx, notify.KindError, enum.OpUpdate, id, env.Message)
		return env, &resource.RejectedError{Op: enum.OpUpdate, Resource: h.entity, Message: env.Message}
	}

	h.dropDetails(wctx, id)
	if idOf(env.Data) == id {
		updated := env.Data
		h.patchLists(wctx, func(items []T) ([]T, bool) {
			changed := false
			for i := range items {
				if idOf(items[i]) == id {
					items[i] = updated
					changed = true
				}
			}
			return items, changed
		})
	}
	h.invalidateLists(wctx)
	h.emit(wctx, notify.KindSuccess, enum.OpUpdate, id, env.Message)
	return env, nil
}

// Delete removes id upstream. On success the record is filtered out of every
// cached list before they are invalidated, and its detail entries are removed.
func (h *Hooks[T]) Delete(ctx context.Context, id string) error {
	wctx := context.WithoutCancel(ctx)

	if err := h.adapter.Delete(wctx, id); err != nil {
		h.emit(wctx, notify.KindError, enum.OpDelete, id, envelope.Message(err, envelope.MsgFailed))
		return err
	}

	h.patchLists(wctx, func(items []T) ([]T, bool) {
		kept := items[:0]
		for _, it := range items {
			if idOf(it) != id {
				kept = append(kept, it)
			}
		}
		return kept, len(kept) != len(items)
	})
	h.dropDetails(wctx, id)
	h.invalidateLists(wctx)
	h.emit(wctx, notify.KindSuccess, enum.OpDelete, id, envelope.MsgDeleted)
	return nil
}

func (h *Hooks[T]) patchLists(ctx context.Context, fn func([]T) ([]T, bool)) {
	err := h.client.Patch(ctx, h.listPrefix(), func(raw json.RawMessage) (json.RawMessage, bool) {
		env, err := decodeList[T](raw)
		if err != nil {
			return raw, false
		}
		items, changed := fn(env.Data)
		if !changed {
			return raw, false
		}
		env.Data = items
		out, err := json.Marshal(env)
		if err != nil {
			return raw, false
		}
		return out, true
	})
	if err != nil {
		h.client.logger.Warn("patch cached lists failed", zap.String("entity", h.entity), zap.Error(err))
	}
}

func (h *Hooks[T]) invalidateLists(ctx context.Context) {
	if err := h.client.Invalidate(ctx, h.listPrefix()); err != nil {
		h.client.logger.Warn("invalidate lists failed", zap.String("entity", h.entity), zap.Error(err))
	}
}

func (h *Hooks[T]) emit(ctx context.Context, kind notify.Kind, op, id, message string) {
	if h.notifier == nil {
		return
	}
	n := notify.New(kind, h.entity, op, message)
	n.EntityID = id
	n.SiteID = h.scope.site()
	n.UserID = h.scope.UserID
	n.BusinessID = h.scope.BusinessID
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.client.logger.Warn("notification delivery failed", zap.String("entity", h.entity), zap.Error(err))
	}
}

func decodeList[T any](raw json.RawMessage) (envelope.Envelope[[]T], error) {
	var env envelope.Envelope[[]T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, err
	}
	if env.Data == nil {
		env.Data = []T{}
	}
	return env, nil
}

func idOf[T entity.Entity](v T) string {
	id := v.EntityID()
	if id.IsZero() {
		return ""
	}
	return id.String()
}
