package services

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/mileusna/useragent"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// ChatSessionStore holds chat transcripts keyed by an opaque session ID.
//
// Transcripts are append-only and ordered. A transcript that has not been
// appended to for the configured idle TTL expires and is removed by Sweep.
// All methods are safe for concurrent use; appends to the same session are
// serialized so no turn is lost.
type ChatSessionStore struct {
	mu    sync.Mutex
	items *gocache.Cache
	ttl   time.Duration
}

// NewChatSessionStore creates a store with the given idle TTL. Expired
// transcripts are invisible immediately and are freed by Sweep.
//
// Example:
//
//	sessions := services.NewChatSessionStore(24 * time.Hour)
//	id := sessions.Create()
//	sessions.Append(id, models.ChatTurn{Role: models.RoleUser, Content: "Hello"})
func NewChatSessionStore(ttl time.Duration) *ChatSessionStore {
	return &ChatSessionStore{
		// No go-cache janitor: cmd/server runs Sweep on its own schedule.
		items: gocache.New(ttl, 0),
		ttl:   ttl,
	}
}

// Create starts a new empty transcript and returns its ID.
func (s *ChatSessionStore) Create() string {
	id := uuid.New().String()

	s.mu.Lock()
	s.items.Set(id, []models.ChatTurn{}, s.ttl)
	s.mu.Unlock()

	log.Debug().Str("session_id", id).Msg("Chat session created")
	return id
}

// Append adds turn to the end of the transcript, creating it if needed,
// and refreshes the transcript's idle TTL.
func (s *ChatSessionStore) Append(id string, turn models.ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var turns []models.ChatTurn
	if v, ok := s.items.Get(id); ok {
		turns = v.([]models.ChatTurn)
	}

	// Never append into a slice that a History caller might still share.
	next := make([]models.ChatTurn, len(turns), len(turns)+1)
	copy(next, turns)
	next = append(next, turn)

	s.items.Set(id, next, s.ttl)
}

// History returns a copy of the transcript. An unknown or expired ID yields
// an empty, non-nil slice.
func (s *ChatSessionStore) History(id string) []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(id)
	if !ok {
		return []models.ChatTurn{}
	}
	turns := v.([]models.ChatTurn)
	out := make([]models.ChatTurn, len(turns))
	copy(out, turns)
	return out
}

// Exists reports whether a live transcript is stored under id.
func (s *ChatSessionStore) Exists(id string) bool {
	_, ok := s.items.Get(id)
	return ok
}

// Sweep frees expired transcripts and returns how many live ones remain.
func (s *ChatSessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.items.ItemCount()
	s.items.DeleteExpired()
	after := s.items.ItemCount()

	if before != after {
		log.Debug().
			Int("expired", before-after).
			Int("active", after).
			Msg("Expired chat sessions removed")
	}
	return after
}

// ExtractDeviceInfo extracts human-readable device information from a User-Agent header.
// Parses the User-Agent to identify browser, operating system, and device type.
//
// Returns a formatted string like "Chrome 120 · Windows 11 · Desktop" or
// "Unknown Device" if the User-Agent is empty.
//
// Example:
//
//	deviceInfo := services.ExtractDeviceInfo(r.UserAgent())
//	// Returns: "Safari 17.0 · iOS 17.1 · Mobile"
func ExtractDeviceInfo(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgent)

	var parts []string

	if ua.Name != "" {
		browser := ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
		parts = append(parts, browser)
	}

	if ua.OS != "" {
		os := ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
		parts = append(parts, os)
	}

	if ua.Mobile {
		parts = append(parts, "Mobile")
	} else if ua.Tablet {
		parts = append(parts, "Tablet")
	} else if ua.Desktop {
		parts = append(parts, "Desktop")
	}

	if len(parts) == 0 {
		if len(userAgent) > 100 {
			return userAgent[:100] + "..."
		}
		return userAgent
	}

	return strings.Join(parts, " · ")
}
