package handler

import (
	"net/http"

	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/sitebook/gateway/internal/entity"
	"github.com/sitebook/gateway/internal/middleware"
	"github.com/sitebook/gateway/internal/notify"
	"github.com/sitebook/gateway/internal/query"
	"github.com/sitebook/gateway/internal/resource"
	"go.uber.org/zap"
)

// Deps are shared by every handler. Upstream carries no session; each
// request gets its own copy bound to the caller's token and site.
type Deps struct {
	Upstream *apiclient.Client
	Cache    *query.Client
	Notifier notify.Notifier
	Logger   *zap.Logger
}

func (d Deps) session(r *http.Request) apiclient.Session {
	s := apiclient.Session{SiteID: middleware.SiteFromContext(r.Context())}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		s.Token = claims.UpstreamToken
	}
	return s
}

func (d Deps) scope(r *http.Request) query.Scope {
	s := query.Scope{SiteID: middleware.SiteFromContext(r.Context())}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		s.UserID = claims.UserID
		s.BusinessID = claims.BusinessID
	}
	return s
}

// hooksFor binds resource path to the caller of r.
func hooksFor[T entity.Entity](d Deps, r *http.Request, path string) *query.Hooks[T] {
	svc := resource.NewService[T](d.Upstream.WithSession(d.session(r)), path)
	return query.NewHooks[T](d.Cache, svc, path, d.scope(r), d.Notifier)
}
