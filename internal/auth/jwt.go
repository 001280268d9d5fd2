package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identify a dashboard user. UpstreamToken is the backend's own
// bearer token; it never leaves the gateway in a response body.
type Claims struct {
	UserID        string `json:"user_id"`
	BusinessID    string `json:"business_id,omitempty"`
	Role          string `json:"role"`
	Name          string `json:"name,omitempty"`
	UpstreamToken string `json:"upstream_token"`
	jwt.RegisteredClaims
}

// Identity is what GenerateToken signs.
type Identity struct {
	UserID        string
	BusinessID    string
	Role          string
	Name          string
	UpstreamToken string
}

func GenerateToken(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:        id.UserID,
		BusinessID:    id.BusinessID,
		Role:          id.Role,
		Name:          id.Name,
		UpstreamToken: id.UpstreamToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user")
	}
	return claims, nil
}
