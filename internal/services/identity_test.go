package services

import (
	"testing"
	"time"

	"github.com/ieraasyl/LiteChat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityStore(t *testing.T) {
	store := NewIdentityStore(time.Hour)

	t.Run("put and get", func(t *testing.T) {
		store.Put(&models.UserIdentity{ID: "google-1", Email: "test@example.com"})

		got, ok := store.Get("google-1")
		require.True(t, ok)
		assert.Equal(t, "test@example.com", got.Email)
		assert.Equal(t, 1, store.Count())
	})

	t.Run("stores a copy", func(t *testing.T) {
		identity := &models.UserIdentity{ID: "google-2", Name: "Before"}
		store.Put(identity)
		identity.Name = "After"

		got, _ := store.Get("google-2")
		assert.Equal(t, "Before", got.Name)

		got.Name = "Mutated"
		again, _ := store.Get("google-2")
		assert.Equal(t, "Before", again.Name)
	})

	t.Run("delete", func(t *testing.T) {
		store.Put(&models.UserIdentity{ID: "google-3"})
		store.Delete("google-3")

		_, ok := store.Get("google-3")
		assert.False(t, ok)
	})

	t.Run("expires", func(t *testing.T) {
		short := NewIdentityStore(20 * time.Millisecond)
		short.Put(&models.UserIdentity{ID: "google-4"})
		time.Sleep(40 * time.Millisecond)

		_, ok := short.Get("google-4")
		assert.False(t, ok)
	})
}

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, time.Minute, janitorInterval(time.Second))
	assert.Equal(t, 30*time.Minute, janitorInterval(2*time.Hour))
	assert.Equal(t, time.Hour, janitorInterval(24*time.Hour))
}
