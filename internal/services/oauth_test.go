package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/ieraasyl/LiteChat/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// MockIdentityRepository is a mock implementation of IdentityRepository
type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) Put(identity *models.UserIdentity) {
	m.Called(identity)
}

type staticAdmin string

func (a staticAdmin) IsAdmin(email string) bool {
	return string(a) != "" && email == string(a)
}

func setupOAuthService(t *testing.T, cfg *config.OAuthConfig) (*OAuthService, *MockIdentityRepository) {
	t.Helper()

	if cfg == nil {
		cfg = &config.OAuthConfig{}
	}
	cfg.ClientID = "test-client-id"
	cfg.ClientSecret = "test-client-secret"
	cfg.RedirectURL = "http://localhost:8000/auth/callback"
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = "http://localhost:1/userinfo"
	}

	repo := new(MockIdentityRepository)
	svc := NewOAuthService(cfg, repo, staticAdmin("admin@example.com"))
	svc.config.Endpoint = oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: "http://localhost:1/token",
	}
	return svc, repo
}

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "mock-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
}

func userInfoServer(t *testing.T, info models.GoogleUserInfo) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mock-access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	}))
}

func TestGetAuthURL(t *testing.T) {
	svc, _ := setupOAuthService(t, nil)

	t.Run("generates valid OAuth URL", func(t *testing.T) {
		authURL := svc.GetAuthURL("random-state")

		assert.Contains(t, authURL, "accounts.google.com/o/oauth2/auth")
		assert.Contains(t, authURL, "client_id=test-client-id")
		assert.Contains(t, authURL, "state=random-state")
		assert.Contains(t, authURL, "response_type=code")
	})

	t.Run("requests openid email and profile scopes", func(t *testing.T) {
		authURL := svc.GetAuthURL("s")

		assert.Contains(t, authURL, "scope=openid+email+profile")
	})
}

func TestExchangeCode(t *testing.T) {
	svc, _ := setupOAuthService(t, nil)
	server := tokenServer(t)
	defer server.Close()
	svc.config.Endpoint.TokenURL = server.URL

	t.Run("exchanges code for token", func(t *testing.T) {
		token, err := svc.ExchangeCode(context.Background(), "good-code")

		require.NoError(t, err)
		assert.Equal(t, "mock-access-token", token.AccessToken)
	})

	t.Run("wraps exchange failures", func(t *testing.T) {
		_, err := svc.ExchangeCode(context.Background(), "bad-code")

		assert.True(t, errors.Is(err, ErrExchangeFailed))
	})
}

func TestGetUserInfo(t *testing.T) {
	token := &oauth2.Token{AccessToken: "mock-access-token", TokenType: "Bearer"}

	t.Run("retrieves user info successfully", func(t *testing.T) {
		server := userInfoServer(t, models.GoogleUserInfo{ID: "123", Email: "test@example.com", Name: "Test User"})
		defer server.Close()
		svc, _ := setupOAuthService(t, &config.OAuthConfig{UserInfoURL: server.URL})

		info, err := svc.GetUserInfo(context.Background(), token)

		require.NoError(t, err)
		assert.Equal(t, "123", info.ID)
		assert.Equal(t, "test@example.com", info.Email)
	})

	t.Run("handles API errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()
		svc, _ := setupOAuthService(t, &config.OAuthConfig{UserInfoURL: server.URL})

		_, err := svc.GetUserInfo(context.Background(), token)

		assert.True(t, errors.Is(err, ErrUserInfo))
	})

	t.Run("handles malformed JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("invalid json{"))
		}))
		defer server.Close()
		svc, _ := setupOAuthService(t, &config.OAuthConfig{UserInfoURL: server.URL})

		_, err := svc.GetUserInfo(context.Background(), token)

		assert.True(t, errors.Is(err, ErrUserInfo))
	})

	t.Run("rejects profile without email", func(t *testing.T) {
		server := userInfoServer(t, models.GoogleUserInfo{ID: "123"})
		defer server.Close()
		svc, _ := setupOAuthService(t, &config.OAuthConfig{UserInfoURL: server.URL})

		_, err := svc.GetUserInfo(context.Background(), token)

		assert.True(t, errors.Is(err, ErrUserInfo))
	})
}

func TestCheckAccess(t *testing.T) {
	t.Run("allows everyone without allow-lists", func(t *testing.T) {
		svc, _ := setupOAuthService(t, nil)
		assert.NoError(t, svc.CheckAccess("anyone@gmail.com"))
	})

	t.Run("allows listed emails case-insensitively", func(t *testing.T) {
		svc, _ := setupOAuthService(t, &config.OAuthConfig{AllowedEmails: []string{"Friend@Example.com"}})

		assert.NoError(t, svc.CheckAccess("friend@example.com"))
		assert.Error(t, svc.CheckAccess("stranger@example.com"))
	})

	t.Run("allows the configured domain", func(t *testing.T) {
		svc, _ := setupOAuthService(t, &config.OAuthConfig{AllowedDomain: "@corp.example"})

		assert.NoError(t, svc.CheckAccess("dev@corp.example"))

		err := svc.CheckAccess("dev@other.example")
		var denied *AccessDeniedError
		require.True(t, errors.As(err, &denied))
		assert.Equal(t, "Email domain is not authorized. Only corp.example emails are allowed.", denied.Reason)
	})

	t.Run("requires both lists when both are set", func(t *testing.T) {
		svc, _ := setupOAuthService(t, &config.OAuthConfig{
			AllowedEmails: []string{"alice@corp.com", "carol@gmail.com"},
			AllowedDomain: "corp.com",
		})

		assert.NoError(t, svc.CheckAccess("alice@corp.com"))

		var denied *AccessDeniedError
		err := svc.CheckAccess("bob@corp.com")
		require.True(t, errors.As(err, &denied))
		assert.Equal(t, "Email bob@corp.com is not in the allowed list.", denied.Reason)

		err = svc.CheckAccess("carol@gmail.com")
		require.True(t, errors.As(err, &denied))
		assert.Equal(t, "Email domain is not authorized. Only corp.com emails are allowed.", denied.Reason)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("always allows the admin", func(t *testing.T) {
		svc, _ := setupOAuthService(t, &config.OAuthConfig{AllowedDomain: "corp.example"})
		assert.NoError(t, svc.CheckAccess("admin@example.com"))
	})
}

func TestAuthenticateUser(t *testing.T) {
	tokens := tokenServer(t)
	defer tokens.Close()

	t.Run("stores identity with admin flag", func(t *testing.T) {
		info := userInfoServer(t, models.GoogleUserInfo{
			ID:      "google-1",
			Email:   "admin@example.com",
			Name:    "Admin",
			Picture: "https://example.com/a.jpg",
		})
		defer info.Close()

		svc, repo := setupOAuthService(t, &config.OAuthConfig{UserInfoURL: info.URL})
		svc.config.Endpoint.TokenURL = tokens.URL
		repo.On("Put", mock.MatchedBy(func(u *models.UserIdentity) bool {
			return u.ID == "google-1" && u.IsAdmin
		})).Return()

		identity, err := svc.AuthenticateUser(context.Background(), "good-code", LoginMeta{Device: "Chrome · Linux · Desktop"})

		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", identity.Email)
		assert.True(t, identity.IsAdmin)
		assert.Equal(t, "Chrome · Linux · Desktop", identity.Device)
		assert.False(t, identity.LoginAt.IsZero())
		repo.AssertExpectations(t)
	})

	t.Run("marks other users as demo", func(t *testing.T) {
		info := userInfoServer(t, models.GoogleUserInfo{ID: "google-2", Email: "demo@example.com"})
		defer info.Close()

		svc, repo := setupOAuthService(t, &config.OAuthConfig{UserInfoURL: info.URL})
		svc.config.Endpoint.TokenURL = tokens.URL
		repo.On("Put", mock.Anything).Return()

		identity, err := svc.AuthenticateUser(context.Background(), "good-code", LoginMeta{})

		require.NoError(t, err)
		assert.False(t, identity.IsAdmin)
	})

	t.Run("fails when code exchange fails", func(t *testing.T) {
		svc, repo := setupOAuthService(t, nil)
		svc.config.Endpoint.TokenURL = tokens.URL

		_, err := svc.AuthenticateUser(context.Background(), "bad-code", LoginMeta{})

		assert.True(t, errors.Is(err, ErrExchangeFailed))
		repo.AssertNotCalled(t, "Put", mock.Anything)
	})

	t.Run("denies accounts outside the allow-list", func(t *testing.T) {
		info := userInfoServer(t, models.GoogleUserInfo{ID: "google-3", Email: "x@elsewhere.example"})
		defer info.Close()

		svc, repo := setupOAuthService(t, &config.OAuthConfig{UserInfoURL: info.URL, AllowedDomain: "corp.example"})
		svc.config.Endpoint.TokenURL = tokens.URL

		_, err := svc.AuthenticateUser(context.Background(), "good-code", LoginMeta{})

		var denied *AccessDeniedError
		assert.True(t, errors.As(err, &denied))
		repo.AssertNotCalled(t, "Put", mock.Anything)
	})
}
