package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the key/value contract the services depend on. The cache is
// never authoritative: implementations may lose data at any time and
// callers must treat every failure as a miss.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	FlushAll(ctx context.Context) error
}

// GetJSON unmarshals the cached value into dest. A missing key, a cache
// error or a corrupt entry all report a miss.
func GetJSON(ctx context.Context, store Store, key string, dest interface{}) bool {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false
	}
	return true
}

// SetJSON stores value as JSON with the given TTL. Serialization or cache
// failures are returned so callers can log them, but they never abort the
// operation that triggered the write.
func SetJSON(ctx context.Context, store Store, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(raw), ttl)
}
