// Package middleware provides HTTP middleware for the gateway's
// internal store endpoints.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// bearerPrefix is the Authorization scheme prefix.
const bearerPrefix = "Bearer "

// userContextKey carries the authenticated user id.
type userContextKey struct{}

// UserFromContext returns the authenticated user id, or empty.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userContextKey{}).(string)
	return user
}

// withUser stores the authenticated user id in the context.
func withUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// AuthConfig configures bearer authentication. With neither field set,
// authentication is disabled and every request passes through.
type AuthConfig struct {
	// APIKeyHash is the bcrypt hash of the static internal API key.
	APIKeyHash string

	// JWTSecret enables HS256 JWT validation; the token's sub claim
	// becomes the authenticated user id.
	JWTSecret string
}

// Enabled reports whether any credential check is configured.
func (c AuthConfig) Enabled() bool {
	return c.APIKeyHash != "" || c.JWTSecret != ""
}

// Auth returns middleware enforcing bearer authentication per cfg.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				writeAuthError(w, "missing bearer token")
				return
			}

			if cfg.APIKeyHash != "" {
				if err := bcrypt.CompareHashAndPassword([]byte(cfg.APIKeyHash), []byte(token)); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.JWTSecret != "" {
				if sub, err := validateJWT(token, cfg.JWTSecret); err == nil {
					next.ServeHTTP(w, r.WithContext(withUser(r.Context(), sub)))
					return
				}
			}

			writeAuthError(w, "invalid credentials")
		})
	}
}

// extractBearer returns the bearer token from the Authorization header.
func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, bearerPrefix) {
		return ""
	}
	return auth[len(bearerPrefix):]
}

// validateJWT verifies an HS256 token and returns its sub claim.
func validateJWT(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims type")
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}

// writeAuthError writes a 401 JSON error response.
func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
