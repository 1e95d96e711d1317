package services

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-at-least-32-bytes-long")

func TestWebSessionService_Issue(t *testing.T) {
	svc := NewWebSessionService(testSecret, time.Hour)
	identity := &models.UserIdentity{ID: "google-1", Email: "test@example.com"}

	token, expiresAt, err := svc.Issue(identity)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)
	assert.Equal(t, time.Hour, svc.Lifetime())
}

func TestWebSessionService_Verify(t *testing.T) {
	svc := NewWebSessionService(testSecret, time.Hour)
	identity := &models.UserIdentity{ID: "google-1", Email: "test@example.com"}

	t.Run("valid token", func(t *testing.T) {
		token, _, err := svc.Issue(identity)
		require.NoError(t, err)

		claims, err := svc.Verify(token)

		require.NoError(t, err)
		assert.Equal(t, "google-1", claims.UserID)
		assert.Equal(t, "test@example.com", claims.Email)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.Verify("")
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewWebSessionService([]byte("another-secret-key-of-enough-length"), time.Hour)
		token, _, err := other.Issue(identity)
		require.NoError(t, err)

		_, err = svc.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewWebSessionService(testSecret, -time.Minute)
		token, _, err := expired.Issue(identity)
		require.NoError(t, err)

		_, err = svc.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidSession))
	})

	t.Run("rejects non-HMAC signing", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{UserID: "google-1"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidSession)
	})
}

func TestGenerateState(t *testing.T) {
	a := GenerateState()
	b := GenerateState()

	assert.Len(t, a, 22)
	assert.NotEqual(t, a, b)
}
