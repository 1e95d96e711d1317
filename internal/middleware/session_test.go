package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ieraasyl/LiteChat/internal/services"
	"github.com/ieraasyl/LiteChat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSessionAuth(t *testing.T) (*services.WebSessionService, *services.IdentityStore) {
	t.Helper()
	return services.NewWebSessionService([]byte("test-secret-key-minimum-32-bytes-long!"), time.Hour),
		services.NewIdentityStore(time.Hour)
}

// echoIdentity writes the email of the identity in context, or "anonymous".
func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(identity.Email))
	})
}

func TestLoadIdentity(t *testing.T) {
	webSessions, identities := setupSessionAuth(t)
	user := testutil.TestUser()
	identities.Put(user)
	token, _, err := webSessions.Issue(user)
	require.NoError(t, err)

	handler := LoadIdentity(webSessions, identities)(echoIdentity())

	t.Run("resolves valid session cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		testutil.SetCookie(req, services.SessionCookieName, token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, user.Email, rec.Body.String())
	})

	t.Run("passes through without cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("ignores tampered cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		testutil.SetCookie(req, services.SessionCookieName, token+"x")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("ignores cookie after logout", func(t *testing.T) {
		other := testutil.TestUserWithEmail("gone@example.com")
		identities.Put(other)
		otherToken, _, err := webSessions.Issue(other)
		require.NoError(t, err)
		identities.Delete(other.ID)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		testutil.SetCookie(req, services.SessionCookieName, otherToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, "anonymous", rec.Body.String())
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("rejects anonymous requests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireAuth(echoIdentity()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Not authenticated", body["error"])
	})

	t.Run("allows requests with identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req = req.WithContext(WithIdentity(req.Context(), testutil.TestUser()))
		rec := httptest.NewRecorder()

		RequireAuth(echoIdentity()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "test@example.com", rec.Body.String())
	})
}
