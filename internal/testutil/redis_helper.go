package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ieraasyl/LiteChat/internal/database"
	"github.com/ieraasyl/LiteChat/pkg/config"
)

// SetupMiniRedis starts a miniredis server that is closed when the test ends.
func SetupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// NewTestRedisDB connects a RedisDB to mr and closes it when the test ends.
func NewTestRedisDB(t *testing.T, mr *miniredis.Miniredis) *database.RedisDB {
	t.Helper()

	db, err := database.NewRedisDB(&config.RedisConfig{
		Enabled:  true,
		Host:     mr.Host(),
		Port:     mr.Port(),
		PoolSize: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create test Redis DB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}
