package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sitebook/gateway/internal/access"
	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/sitebook/gateway/internal/auth"
	"github.com/sitebook/gateway/internal/envelope"
	"github.com/sitebook/gateway/internal/middleware"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// AuthHandler exchanges upstream credentials for a gateway token.
type AuthHandler struct {
	upstream  *apiclient.Client
	jwtSecret string
	ttl       time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(upstream *apiclient.Client, jwtSecret string, ttl time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{upstream: upstream, jwtSecret: jwtSecret, ttl: ttl, logger: logger}
}

// RegisterRoutes registers the public login route. Me must sit behind
// Authenticate and is registered by the router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role"`
}

// --- Handlers ---

// Login forwards the credentials to the upstream and wraps its token in a
// gateway JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	body, err := h.upstream.Post(r.Context(), "/login", req)
	if err != nil {
		var httpErr *apiclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": envelope.Message(err, "invalid credentials")})
			return
		}
		h.logger.Warn("upstream login failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": envelope.Message(err, envelope.MsgFailed)})
		return
	}
	if msg, rejected := envelope.Rejected(body); rejected {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
		return
	}

	id, err := identityFrom(body)
	if err != nil {
		h.logger.Warn("unusable login response", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": envelope.MsgInvalid})
		return
	}
	if !access.Known(id.Role) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "role not permitted"})
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, id, h.ttl)
	if err != nil {
		h.logger.Error("sign token", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(h.ttl).UTC(),
		User: userResponse{
			ID:         id.UserID,
			BusinessID: id.BusinessID,
			Name:       id.Name,
			Role:       id.Role,
		},
	})
}

// Me returns the caller's identity from the gateway token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:         claims.UserID,
		BusinessID: claims.BusinessID,
		Name:       claims.Name,
		Role:       claims.Role,
	})
}

// --- Helpers ---

// identityFrom reads the upstream token and user from either the wrapped
// or the flat login response.
func identityFrom(body []byte) (auth.Identity, error) {
	if !gjson.ValidBytes(body) {
		return auth.Identity{}, errors.New("login response is not JSON")
	}
	root := gjson.ParseBytes(body)

	var token string
	for _, path := range []string{"data.token", "token", "data.access_token", "access_token"} {
		if v := root.Get(path); v.Type == gjson.String && v.Str != "" {
			token = v.Str
			break
		}
	}
	if token == "" {
		return auth.Identity{}, errors.New("login response has no token")
	}

	user := root.Get("data.user")
	if !user.IsObject() {
		user = root.Get("user")
	}
	if !user.IsObject() {
		return auth.Identity{}, errors.New("login response has no user")
	}

	id := auth.Identity{
		UserID:        user.Get("id").String(),
		BusinessID:    user.Get("business_id").String(),
		Role:          strings.ToLower(user.Get("role").String()),
		Name:          user.Get("name").String(),
		UpstreamToken: token,
	}
	if id.UserID == "" {
		return auth.Identity{}, errors.New("login response user has no id")
	}
	return id, nil
}
