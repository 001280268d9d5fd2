package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/sitebook/gateway/internal/config"
	"github.com/sitebook/gateway/internal/entity"
	"github.com/sitebook/gateway/internal/enum"
	"github.com/sitebook/gateway/internal/export"
	"github.com/sitebook/gateway/internal/handler"
	"github.com/sitebook/gateway/internal/metrics"
	mw "github.com/sitebook/gateway/internal/middleware"
	"github.com/sitebook/gateway/internal/ws"
	"go.uber.org/zap"
)

// Role sets shared by the resource registry.
var (
	staffReads = handler.Roles{
		Read:  []string{enum.RoleStaff},
		Write: []string{enum.RoleSupervisor},
	}
	siteAdmin = handler.Roles{
		Read:  []string{enum.RoleStaff},
		Write: []string{enum.RoleManager},
	}
	ownerBook = handler.Roles{
		Read:  []string{enum.RoleSupervisor},
		Write: []string{enum.RoleManager},
	}
	adminOnly = handler.Roles{
		Read:  []string{enum.RoleAdmin},
		Write: []string{enum.RoleAdmin},
	}
	platform = handler.Roles{
		Read:  []string{enum.RoleSuperAdmin},
		Write: []string{enum.RoleSuperAdmin},
	}
	plans = handler.Roles{
		Read:  []string{enum.RoleAdmin},
		Write: []string{enum.RoleSuperAdmin},
	}
)

// New creates a Chi router with all gateway routes wired up. activity may be
// nil when no database is configured.
func New(cfg *config.Config, deps handler.Deps, hub *ws.Hub, activity handler.ActivityStore) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", apiclient.HeaderSiteID},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	authHandler := handler.NewAuthHandler(deps.Upstream, cfg.JWTSecret, cfg.TokenTTL, deps.Logger)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/sites/{sid}/notifications", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	limiter := mw.NewRateLimiter(float64(cfg.RateLimit.RPS), cfg.RateLimit.Burst)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(limiter.Middleware)

		r.Get("/auth/me", authHandler.Me)

		r.Route("/api", func(r chi.Router) {
			r.Use(mw.SiteScope)

			mount[entity.Site](r, deps, enum.ResourceSites, siteAdmin)
			mount[entity.Material](r, deps, enum.ResourceMaterials, staffReads,
				handler.WithExport("Materials", export.MaterialColumns))
			mount[entity.MasonAdvance](r, deps, enum.ResourceMasonAdvances, staffReads,
				handler.WithExport("Mason Advances", export.MasonAdvanceColumns))
			mount[entity.LaborEntry](r, deps, enum.ResourceLaborEntries, staffReads,
				handler.WithExport("Labor", export.LaborEntryColumns))
			mount[entity.Owner](r, deps, enum.ResourceOwners, ownerBook)
			mount[entity.OwnerLog](r, deps, enum.ResourceOwnerLogs, ownerBook)
			mount[entity.OwnerPaymentLog](r, deps, enum.ResourceOwnerPaymentLogs, ownerBook,
				handler.WithExport("Owner Payments", export.OwnerPaymentColumns))
			mount[entity.User](r, deps, enum.ResourceUsers, adminOnly)
			mount[entity.PricingPlan](r, deps, enum.ResourcePricingPlans, plans)
			mount[entity.Business](r, deps, enum.ResourceBusinesses, platform)
			mount[entity.RazorpaySetting](r, deps, enum.ResourceRazorpaySettings, adminOnly,
				handler.WithTransform(entity.RazorpaySetting.Redacted))

			handler.NewWhatsAppHandler(deps, cfg.WhatsAppCountryCode).RegisterRoutes(r)
			handler.NewActivityHandler(activity, deps.Logger).RegisterRoutes(r)
		})
	})

	deps.Logger.Info("router initialized", zap.Strings("cors_origins", cfg.CORSOrigins))
	return r
}

func mount[T entity.Entity](r chi.Router, deps handler.Deps, path string, roles handler.Roles, opts ...handler.ResourceOption[T]) {
	h := handler.NewResourceHandler[T](deps, path, roles, opts...)
	r.Route("/"+h.Path(), h.RegisterRoutes)
}
