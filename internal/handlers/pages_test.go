package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ieraasyl/LiteChat/internal/middleware"
	"github.com/ieraasyl/LiteChat/internal/services"
	"github.com/ieraasyl/LiteChat/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLoginPage(t *testing.T) {
	handler := NewPageHandler("1.2.0", services.NewUsageTracker(testutil.TestUsageConfig()))

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no error", "", "Sign in with Google"},
		{"invalid state", "?error=invalid_state", "Invalid authentication state. Please try again."},
		{"no code", "?error=no_code", "Authentication failed. Please try again."},
		{"auth failed", "?error=auth_failed", "Authentication failed. Please try again."},
		{"access denied", "?error=access_denied&message=Email+domain+is+not+authorized.+Only+corp.com+emails+are+allowed.", "Access Denied: Email domain is not authorized. Only corp.com emails are allowed."},
		{"unknown tag", "?error=server_busy", "server_busy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.Login(rec, httptest.NewRequest(http.MethodGet, "/login"+tt.query, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Contains(t, rec.Body.String(), "v1.2.0")
		})
	}

	t.Run("escapes unknown tags", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Login(rec, httptest.NewRequest(http.MethodGet, "/login?error=%3Cb%3Ex%3C%2Fb%3E", nil))

		assert.NotContains(t, rec.Body.String(), "<b>x</b>")
		assert.Contains(t, rec.Body.String(), "&lt;b&gt;x&lt;/b&gt;")
	})

	t.Run("escapes the message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Login(rec, httptest.NewRequest(http.MethodGet, "/login?error=access_denied&message=%3Cscript%3E", nil))

		assert.NotContains(t, rec.Body.String(), "<script>alert")
		assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
	})

	t.Run("signed-in users go to the chat", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), testutil.TestUser()))
		rec := httptest.NewRecorder()

		handler.Login(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})
}

func TestIndexPage(t *testing.T) {
	usage := services.NewUsageTracker(testutil.TestUsageConfig())
	handler := NewPageHandler("1.2.0", usage)

	t.Run("anonymous visitors go to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("demo user sees limits", func(t *testing.T) {
		user := testutil.TestUser()
		usage.Increment(user.Email, 10)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), user))
		rec := httptest.NewRecorder()

		handler.Index(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Test User")
		assert.Contains(t, body, "1/2 requests")
		assert.Contains(t, body, "10/100 tokens")
		assert.NotContains(t, body, `class="limit"`)
	})

	t.Run("demo user at the limit", func(t *testing.T) {
		user := testutil.TestUserWithEmail("busy@example.com")
		usage.Increment(user.Email, 1)
		usage.Increment(user.Email, 1)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), user))
		rec := httptest.NewRecorder()

		handler.Index(rec, req)

		assert.Contains(t, rec.Body.String(), `class="limit"`)
	})

	t.Run("admin is unlimited", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), testutil.TestAdmin()))
		rec := httptest.NewRecorder()

		handler.Index(rec, req)

		assert.Contains(t, rec.Body.String(), "Admin · unlimited")
	})
}

func TestLoginErrorMessage(t *testing.T) {
	assert.Empty(t, loginErrorMessage("", ""))
	assert.Equal(t, "Access Denied.", loginErrorMessage("access_denied", ""))
	assert.Equal(t, "Access Denied: nope", loginErrorMessage("access_denied", "nope"))
	assert.Equal(t, "Authentication failed. Please try again.", loginErrorMessage("no_code", ""))
	assert.Equal(t, "session_gone", loginErrorMessage("session_gone", ""))
}
