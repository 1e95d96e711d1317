// Package middleware provides HTTP middleware components for the server.
// Middleware functions wrap HTTP handlers to provide cross-cutting concerns
// like authentication, logging, metrics, and rate limiting.
//
// Middleware in this package:
//   - Web-session cookie authentication
//   - Structured request/response logging with correlation IDs
//   - Prometheus metrics collection
//   - Rate limiting per IP address, Redis-backed or in-process
//
// All middleware is designed to be composable with Chi router.
package middleware

import (
	"context"
	"net/http"

	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/ieraasyl/LiteChat/internal/services"
	"github.com/ieraasyl/LiteChat/pkg/utils"
	"github.com/rs/zerolog/log"
)

type contextKey string

const identityKey contextKey = "identity"

// SessionVerifier validates a web-session token.
type SessionVerifier interface {
	Verify(token string) (*services.SessionClaims, error)
}

// IdentityLookup resolves a signed-in identity by Google ID.
type IdentityLookup interface {
	Get(id string) (*models.UserIdentity, bool)
}

// LoadIdentity resolves the "session" cookie to a UserIdentity and stores it
// in the request context. Requests without a valid session pass through
// with no identity; use RequireAuth to reject them.
//
// Usage:
//
//	r.Use(middleware.LoadIdentity(webSessions, identities))
//	r.Group(func(r chi.Router) {
//	    r.Use(middleware.RequireAuth)
//	    r.Post("/api/chat", chatHandler.Chat)
//	})
func LoadIdentity(sessions SessionVerifier, identities IdentityLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(services.SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := sessions.Verify(cookie.Value)
			if err != nil {
				log.Debug().Err(err).Str("request_id", utils.GetRequestID(r.Context())).Msg("Ignoring invalid session cookie")
				next.ServeHTTP(w, r)
				return
			}

			identity, ok := identities.Get(claims.UserID)
			if !ok {
				// Signed cookie outlived the server-side record (logout or restart).
				log.Debug().Str("user_id", claims.UserID).Msg("Session has no identity record")
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAuth rejects requests without a signed-in identity with
// 401 {"error": "Not authenticated"}.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *models.UserIdentity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity set by LoadIdentity.
//
// Example:
//
//	identity, ok := middleware.IdentityFromContext(r.Context())
//	if !ok {
//	    http.Redirect(w, r, "/login", http.StatusFound)
//	    return
//	}
func IdentityFromContext(ctx context.Context) (*models.UserIdentity, bool) {
	identity, ok := ctx.Value(identityKey).(*models.UserIdentity)
	return identity, ok && identity != nil
}
