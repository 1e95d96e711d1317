// Package services provides business logic and application services.
// Services coordinate between handlers and the in-process stores,
// implementing the Google sign-in flow, usage accounting and the chat
// pipeline.
//
// The services layer is responsible for:
//   - OAuth 2.0 authentication with Google and access policy
//   - Signing and verifying the web-session cookie
//   - Chat transcripts, signed-in identities and demo usage counters
//   - Orchestrating chat requests against the LiteLLM gateway
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/ieraasyl/LiteChat/pkg/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	// ErrExchangeFailed means Google rejected the authorization code.
	ErrExchangeFailed = errors.New("oauth code exchange failed")
	// ErrUserInfo means the profile could not be fetched after a successful exchange.
	ErrUserInfo = errors.New("failed to fetch google user info")
	// ErrAccessDenied matches every *AccessDeniedError.
	ErrAccessDenied = errors.New("access denied")
)

// AccessDeniedError is returned when a Google account is valid but not
// allowed to use the application.
type AccessDeniedError struct {
	Email  string
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for %s: %s", e.Email, e.Reason)
}

func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// IdentityRepository stores identities materialized at login.
type IdentityRepository interface {
	Put(identity *models.UserIdentity)
}

// AdminChecker classifies an email as admin or demo.
type AdminChecker interface {
	IsAdmin(email string) bool
}

// LoginMeta describes the client completing the OAuth callback.
type LoginMeta struct {
	Device    string
	IPAddress string
}

// OAuthService handles the Google OAuth 2.0 authorization-code flow and
// decides who may sign in.
type OAuthService struct {
	config        *oauth2.Config
	userInfoURL   string
	allowedEmails map[string]struct{}
	allowedDomain string
	identities    IdentityRepository
	admins        AdminChecker
}

// NewOAuthService creates a new OAuth service configured for Google
// authentication with the openid, email and profile scopes.
//
// Example:
//
//	oauthSvc := services.NewOAuthService(&cfg.OAuth, identities, usage)
//	http.Redirect(w, r, oauthSvc.GetAuthURL(state), http.StatusTemporaryRedirect)
func NewOAuthService(cfg *config.OAuthConfig, identities IdentityRepository, admins AdminChecker) *OAuthService {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedEmails))
	for _, email := range cfg.AllowedEmails {
		allowed[strings.ToLower(email)] = struct{}{}
	}

	return &OAuthService{
		config:        oauthConfig,
		userInfoURL:   cfg.UserInfoURL,
		allowedEmails: allowed,
		allowedDomain: strings.ToLower(strings.TrimPrefix(cfg.AllowedDomain, "@")),
		identities:    identities,
		admins:        admins,
	}
}

// GetAuthURL generates the Google OAuth 2.0 authorization URL for state.
func (s *OAuthService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an OAuth authorization code for an access token.
func (s *OAuthService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange authorization code")
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return token, nil
}

// GetUserInfo fetches the user's Google profile with the given token.
func (s *OAuthService) GetUserInfo(ctx context.Context, token *oauth2.Token) (*models.GoogleUserInfo, error) {
	client := s.config.Client(ctx, token)

	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch user info from Google")
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUserInfo, resp.StatusCode)
	}

	var userInfo models.GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		log.Error().Err(err).Msg("Failed to decode user info")
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	if userInfo.ID == "" || userInfo.Email == "" {
		return nil, fmt.Errorf("%w: profile is missing id or email", ErrUserInfo)
	}

	return &userInfo, nil
}

// CheckAccess applies the allow-lists. When both ALLOWED_EMAILS and
// ALLOWED_DOMAIN are set an account must pass both. With neither configured
// every Google account may sign in. The admin is always allowed.
func (s *OAuthService) CheckAccess(email string) error {
	if s.admins.IsAdmin(email) {
		return nil
	}

	lower := strings.ToLower(email)
	if len(s.allowedEmails) > 0 {
		if _, ok := s.allowedEmails[lower]; !ok {
			return &AccessDeniedError{Email: email, Reason: fmt.Sprintf("Email %s is not in the allowed list.", email)}
		}
	}
	if s.allowedDomain != "" && !strings.HasSuffix(lower, "@"+s.allowedDomain) {
		return &AccessDeniedError{
			Email:  email,
			Reason: fmt.Sprintf("Email domain is not authorized. Only %s emails are allowed.", s.allowedDomain),
		}
	}
	return nil
}

// AuthenticateUser runs the callback half of the flow: exchange, profile
// fetch, access check, and storing the resulting identity.
//
// Errors wrap ErrExchangeFailed or ErrUserInfo, or are an *AccessDeniedError,
// so the caller can pick the right error tag for the login page.
func (s *OAuthService) AuthenticateUser(ctx context.Context, code string, meta LoginMeta) (*models.UserIdentity, error) {
	token, err := s.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	googleUser, err := s.GetUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.CheckAccess(googleUser.Email); err != nil {
		log.Warn().Str("email", googleUser.Email).Msg("Sign-in rejected by access policy")
		return nil, err
	}

	identity := &models.UserIdentity{
		ID:      googleUser.ID,
		Email:   googleUser.Email,
		Name:    googleUser.Name,
		Picture: googleUser.Picture,
		IsAdmin: s.admins.IsAdmin(googleUser.Email),
		Device:  meta.Device,
		LoginIP: meta.IPAddress,
		LoginAt: time.Now().UTC(),
	}
	s.identities.Put(identity)

	log.Info().
		Str("user_id", identity.ID).
		Str("email", identity.Email).
		Bool("admin", identity.IsAdmin).
		Str("device", identity.Device).
		Msg("User authenticated successfully")

	return identity, nil
}
