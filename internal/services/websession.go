package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ieraasyl/LiteChat/internal/models"
)

// SessionCookieName is the cookie carrying the signed web session.
const SessionCookieName = "session"

// StateCookieName is the cookie carrying the pending OAuth state.
const StateCookieName = "oauth_state"

// ErrInvalidSession is returned when a web-session token is missing,
// tampered with or expired.
var ErrInvalidSession = errors.New("invalid web session")

// WebSessionService signs and verifies the web-session cookie. The cookie
// only references an identity record by ID; the record itself lives in the
// IdentityStore so that logout and expiry take effect server-side.
type WebSessionService struct {
	secret   []byte
	lifetime time.Duration
}

// SessionClaims represents the claims embedded in the web-session token.
type SessionClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// NewWebSessionService creates a signer using HS256 and the given secret.
//
// Example:
//
//	webSessions := services.NewWebSessionService(cfg.Session.Secret, cfg.Session.Lifetime)
//	token, expiresAt, err := webSessions.Issue(identity)
func NewWebSessionService(secret []byte, lifetime time.Duration) *WebSessionService {
	return &WebSessionService{
		secret:   secret,
		lifetime: lifetime,
	}
}

// Lifetime returns how long an issued session stays valid.
func (s *WebSessionService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue creates a signed session token for identity.
func (s *WebSessionService) Issue(identity *models.UserIdentity) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.lifetime)

	claims := SessionClaims{
		UserID: identity.ID,
		Email:  identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a session token.
func (s *WebSessionService) Verify(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidSession
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// GenerateState generates a random state string for OAuth CSRF protection.
// It is stored in the oauth_state cookie before redirecting to Google and
// compared against the state returned to the callback.
//
// Returns a URL-safe base64-encoded string of 16 random bytes.
func GenerateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
