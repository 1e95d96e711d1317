package testutil

import (
	"time"

	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/ieraasyl/LiteChat/pkg/config"
)

// AdminEmail is the admin address used by TestUsageConfig.
const AdminEmail = "admin@example.com"

// TestUser returns a demo identity.
func TestUser() *models.UserIdentity {
	return &models.UserIdentity{
		ID:      "google-123",
		Email:   "test@example.com",
		Name:    "Test User",
		Picture: "https://lh3.googleusercontent.com/a/test",
		Device:  "Chrome 120.0.0.0 · Windows 10 · Desktop",
		LoginIP: IPAddresses.Public,
		LoginAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// TestAdmin returns the admin identity.
func TestAdmin() *models.UserIdentity {
	u := TestUser()
	u.ID = "google-admin"
	u.Email = AdminEmail
	u.Name = "Admin"
	u.IsAdmin = true
	return u
}

// TestUserWithEmail returns a demo identity with the given email.
func TestUserWithEmail(email string) *models.UserIdentity {
	u := TestUser()
	u.ID = "google-" + email
	u.Email = email
	return u
}

// TestUsageConfig mirrors the default demo policy.
func TestUsageConfig() *config.UsageConfig {
	return &config.UsageConfig{
		AdminEmail:   AdminEmail,
		RequestLimit: 2,
		TokenLimit:   100,
	}
}

// UserAgents contains sample User-Agent strings.
var UserAgents = struct {
	Chrome       string
	Safari       string
	MobileSafari string
	Unknown      string
}{
	Chrome:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Safari:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	MobileSafari: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	Unknown:      "",
}

// IPAddresses contains sample client addresses.
var IPAddresses = struct {
	Public    string
	Private   string
	Localhost string
}{
	Public:    "203.0.113.42",
	Private:   "192.168.1.100",
	Localhost: "127.0.0.1",
}
