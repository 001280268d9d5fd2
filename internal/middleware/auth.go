package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sitebook/gateway/internal/access"
	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/sitebook/gateway/internal/auth"
	"github.com/sitebook/gateway/internal/enum"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	siteKey   contextKey = "site"
)

// Authenticate admits requests carrying a gateway-issued bearer token and
// stores its claims on the context.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, reason := bearerToken(r)
			if reason != "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": reason})
				return
			}
			claims, err := auth.ValidateToken(jwtSecret, raw)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, string) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || token == "" || !strings.EqualFold(scheme, "bearer") {
		return "", "invalid authorization format"
	}
	return token, ""
}

// SiteScope stores the selected site from the site_id header, or the
// site_id query parameter, defaulting to all sites.
func SiteScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site := strings.TrimSpace(r.Header.Get(apiclient.HeaderSiteID))
		if site == "" {
			site = strings.TrimSpace(r.URL.Query().Get(apiclient.HeaderSiteID))
		}
		if site == "" {
			site = enum.AllSites
		}
		for _, c := range site {
			if c < '0' || c > '9' {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid site id"})
				return
			}
		}

		ctx := context.WithValue(r.Context(), siteKey, site)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits callers ranked at least as high as the lowest of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}

			if !access.Allow(claims.Role, roles...) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// SiteFromContext returns the selected site, "0" when none was set.
func SiteFromContext(ctx context.Context) string {
	if site, ok := ctx.Value(siteKey).(string); ok && site != "" {
		return site
	}
	return enum.AllSites
}

// WithClaims stores claims on ctx. Callers that authenticate outside
// Authenticate, such as the websocket endpoint, use it too.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
