package services

import (
	"fmt"
	"sync"

	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/ieraasyl/LiteChat/pkg/config"
	"github.com/rs/zerolog/log"
)

// ImageGenerationTokens is the flat token estimate charged per generated image.
const ImageGenerationTokens = 100

// UsageTracker keeps per-email demo counters and enforces the request and
// token ceilings. The configured admin email is exempt from both.
type UsageTracker struct {
	mu           sync.Mutex
	records      map[string]*models.UsageRecord
	adminEmail   string
	requestLimit int
	tokenLimit   int
}

// NewUsageTracker creates a tracker from the usage policy.
//
// Example:
//
//	usage := services.NewUsageTracker(&cfg.Usage)
//	if ok, reason := usage.CheckLimits(user.Email); !ok {
//	    return reason
//	}
func NewUsageTracker(cfg *config.UsageConfig) *UsageTracker {
	return &UsageTracker{
		records:      make(map[string]*models.UsageRecord),
		adminEmail:   cfg.AdminEmail,
		requestLimit: cfg.RequestLimit,
		tokenLimit:   cfg.TokenLimit,
	}
}

// IsAdmin reports whether email is the configured admin address.
func (t *UsageTracker) IsAdmin(email string) bool {
	return t.adminEmail != "" && email == t.adminEmail
}

// Limits returns the configured request and token ceilings.
func (t *UsageTracker) Limits() (requests, tokens int) {
	return t.requestLimit, t.tokenLimit
}

// Get returns a snapshot of the counters for email, creating a zeroed
// record on first use.
func (t *UsageTracker) Get(email string) models.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.record(email)
}

// CheckLimits reports whether email may make another request. When it may
// not, the reason names the ceiling that was reached, checking requests
// before tokens.
func (t *UsageTracker) CheckLimits(email string) (bool, string) {
	if t.IsAdmin(email) {
		return true, ""
	}

	t.mu.Lock()
	rec := *t.record(email)
	t.mu.Unlock()

	if rec.RequestCount >= t.requestLimit {
		log.Info().Str("email", email).Int("requests", rec.RequestCount).Msg("Demo request limit reached")
		return false, fmt.Sprintf("Demo limit reached (%d requests). Contact admin for full access.", t.requestLimit)
	}
	if rec.TokenCount >= t.tokenLimit {
		log.Info().Str("email", email).Int("tokens", rec.TokenCount).Msg("Demo token limit reached")
		return false, fmt.Sprintf("Demo token limit reached (%d tokens). Contact admin for full access.", t.tokenLimit)
	}
	return true, ""
}

// Increment charges one request and tokens estimated tokens to email.
// It is a no-op for the admin.
func (t *UsageTracker) Increment(email string, tokens int) {
	if t.IsAdmin(email) {
		return
	}
	if tokens < 0 {
		tokens = 0
	}

	t.mu.Lock()
	rec := t.record(email)
	rec.RequestCount++
	rec.TokenCount += tokens
	snapshot := *rec
	t.mu.Unlock()

	log.Debug().
		Str("email", email).
		Int("requests", snapshot.RequestCount).
		Int("tokens", snapshot.TokenCount).
		Msg("Usage incremented")
}

// LimitReached reports whether the request ceiling has been reached. This is
// the flag the page shows; the token ceiling is only enforced by CheckLimits.
func (t *UsageTracker) LimitReached(email string) bool {
	if t.IsAdmin(email) {
		return false
	}
	return t.Get(email).RequestCount >= t.requestLimit
}

// record returns the live record for email. Caller holds mu.
func (t *UsageTracker) record(email string) *models.UsageRecord {
	rec, ok := t.records[email]
	if !ok {
		rec = &models.UsageRecord{}
		t.records[email] = rec
	}
	return rec
}
