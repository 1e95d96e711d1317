package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/ieraasyl/LiteChat/internal/middleware"
	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/ieraasyl/LiteChat/internal/services"
	"github.com/ieraasyl/LiteChat/pkg/utils"
	"github.com/rs/zerolog/log"
)

// Error tags passed to the login page as ?error=...
const (
	errTagInvalidState = "invalid_state"
	errTagNoCode       = "no_code"
	errTagAuthFailed   = "auth_failed"
	errTagAccessDenied = "access_denied"
)

// stateCookieMaxAge is the lifetime of the oauth_state cookie in seconds.
const stateCookieMaxAge = 600

// OAuthService defines the interface for the Google sign-in flow.
type OAuthService interface {
	GetAuthURL(state string) string
	AuthenticateUser(ctx context.Context, code string, meta services.LoginMeta) (*models.UserIdentity, error)
}

// SessionIssuer signs web-session tokens.
type SessionIssuer interface {
	Issue(identity *models.UserIdentity) (string, time.Time, error)
}

// IdentityRemover drops identity records on logout.
type IdentityRemover interface {
	Delete(id string)
}

// AuthHandler handles the browser sign-in endpoints: the redirect to
// Google, the OAuth callback and logout.
//
// Failures never produce a JSON error. The browser is always redirected to
// /login with an error tag the login page turns into a message.
type AuthHandler struct {
	oauthService OAuthService
	sessions     SessionIssuer
	identities   IdentityRemover
	isProduction bool // Marks cookies Secure
}

// NewAuthHandler creates a new authentication handler.
//
// Example:
//
//	authHandler := handlers.NewAuthHandler(oauthSvc, webSessions, identities, cfg.Server.IsProduction())
//	r.Get("/auth/google", authHandler.GoogleLogin)
//	r.Get("/auth/callback", authHandler.GoogleCallback)
//	r.Get("/logout", authHandler.Logout)
func NewAuthHandler(oauthService OAuthService, sessions SessionIssuer, identities IdentityRemover, isProduction bool) *AuthHandler {
	return &AuthHandler{
		oauthService: oauthService,
		sessions:     sessions,
		identities:   identities,
		isProduction: isProduction,
	}
}

// GoogleLogin starts the OAuth flow. It stores a random state in the
// oauth_state cookie (HttpOnly, 10 minutes) and redirects to Google's
// consent screen.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := services.GenerateState()
	utils.SetAuthCookieWithMaxAge(w, services.StateCookieName, state, stateCookieMaxAge, h.isProduction)

	http.Redirect(w, r, h.oauthService.GetAuthURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback completes the OAuth flow.
//
// Steps, in order:
//  1. The state query parameter must match the oauth_state cookie, else
//     /login?error=invalid_state
//  2. A code must be present, else /login?error=no_code
//  3. Code exchange and profile fetch, else /login?error=auth_failed
//  4. Access policy, else /login?error=access_denied&message=...
//  5. Issue the "session" cookie, clear oauth_state, 302 to /
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	requestID := utils.GetRequestID(r.Context())
	query := r.URL.Query()

	stateCookie, err := r.Cookie(services.StateCookieName)
	if err != nil || stateCookie.Value == "" || query.Get("state") != stateCookie.Value {
		log.Warn().Str("request_id", requestID).Msg("OAuth state mismatch")
		middleware.IncrementAuthAttempts(errTagInvalidState)
		h.redirectToLogin(w, r, errTagInvalidState, "")
		return
	}

	code := query.Get("code")
	if code == "" {
		log.Warn().Str("request_id", requestID).Str("google_error", query.Get("error")).Msg("Missing authorization code")
		middleware.IncrementAuthAttempts(errTagNoCode)
		h.redirectToLogin(w, r, errTagNoCode, "")
		return
	}

	meta := services.LoginMeta{
		Device:    services.ExtractDeviceInfo(r.UserAgent()),
		IPAddress: utils.ExtractClientIP(r),
	}

	identity, err := h.oauthService.AuthenticateUser(r.Context(), code, meta)
	if err != nil {
		var denied *services.AccessDeniedError
		if errors.As(err, &denied) {
			middleware.IncrementAuthAttempts(errTagAccessDenied)
			h.redirectToLogin(w, r, errTagAccessDenied, denied.Reason)
			return
		}

		log.Error().Err(err).Str("request_id", requestID).Msg("Failed to authenticate user")
		middleware.IncrementAuthAttempts(errTagAuthFailed)
		h.redirectToLogin(w, r, errTagAuthFailed, "")
		return
	}

	token, expiresAt, err := h.sessions.Issue(identity)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("Failed to issue web session")
		middleware.IncrementAuthAttempts(errTagAuthFailed)
		h.redirectToLogin(w, r, errTagAuthFailed, "")
		return
	}

	utils.SetAuthCookie(w, services.SessionCookieName, token, expiresAt, h.isProduction)
	utils.ClearAuthCookies(w, services.StateCookieName)
	middleware.IncrementAuthAttempts("success")

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout deletes the caller's identity record, clears the session cookie
// and redirects to /login. It is safe to call without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		h.identities.Delete(identity.ID)
		log.Info().Str("user_id", identity.ID).Str("email", identity.Email).Msg("User logged out")
	}

	utils.ClearAuthCookies(w, services.SessionCookieName, services.StateCookieName)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *AuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request, tag, message string) {
	q := url.Values{}
	q.Set("error", tag)
	if message != "" {
		q.Set("message", message)
	}
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusFound)
}
