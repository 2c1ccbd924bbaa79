// Package middleware carries the HTTP middleware shared by every route.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
	"github.com/Vaibhav-59/CodeVerse/pkg/utils"
)

type contextKey string

const identityKey contextKey = "identity"

// Claims is the token payload the external auth service issues. The core
// never issues tokens; it only verifies them.
type Claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

// Auth verifies the Bearer token with the shared HS256 secret and stores the
// authenticated identity in the request context. A missing or invalid token
// yields 401, which the client treats as a forced logout.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == "" || tokenString == header {
				utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			identity, err := ParseToken(secret, tokenString)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// ParseToken verifies an HS256 token and extracts the identity it carries.
// Websocket upgrades authenticate through this directly since browsers
// cannot set headers on websocket requests.
func ParseToken(secret, tokenString string) (user.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return user.User{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return user.User{}, jwt.ErrTokenInvalidClaims
	}

	identity := user.User{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}
	if identity.DisplayName == "" {
		identity.DisplayName = claims.Email
	}
	return identity, nil
}

// WithIdentity stores the authenticated user in ctx.
func WithIdentity(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, identityKey, u)
}

// Identity returns the authenticated user attached to ctx.
func Identity(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(identityKey).(user.User)
	return u, ok
}
