package services

import (
	"time"

	"github.com/ieraasyl/LiteChat/internal/models"
	gocache "github.com/patrickmn/go-cache"
)

// IdentityStore is the process-wide table of signed-in users keyed by
// Google ID. Records expire together with the web session that created them.
type IdentityStore struct {
	items *gocache.Cache
	ttl   time.Duration
}

// NewIdentityStore creates a store whose records live for ttl after login.
func NewIdentityStore(ttl time.Duration) *IdentityStore {
	return &IdentityStore{
		items: gocache.New(ttl, janitorInterval(ttl)),
		ttl:   ttl,
	}
}

// Put stores a copy of identity, replacing any previous login.
func (s *IdentityStore) Put(identity *models.UserIdentity) {
	stored := *identity
	s.items.Set(identity.ID, &stored, s.ttl)
}

// Get returns a copy of the identity stored under id.
func (s *IdentityStore) Get(id string) (*models.UserIdentity, bool) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	identity := *v.(*models.UserIdentity)
	return &identity, true
}

// Delete removes the identity stored under id.
func (s *IdentityStore) Delete(id string) {
	s.items.Delete(id)
}

// Count returns the number of live identities, including ones that have
// expired but not yet been purged.
func (s *IdentityStore) Count() int {
	return s.items.ItemCount()
}

// janitorInterval picks how often go-cache purges expired items.
func janitorInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > time.Hour {
		interval = time.Hour
	}
	return interval
}
