package dedupe

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LockStore claims short-lived keys atomically. Claim must behave as
// set-if-not-exists: exactly one of two concurrent claims for the same
// key succeeds. Implementations backed by a shared store make the
// guarantee hold across processes.
type LockStore interface {
	Claim(key string, ttl time.Duration) (bool, error)
}

// CacheLockStore is an in-process LockStore over go-cache. go-cache's
// Add is atomic and fails when the key is already present, which is
// exactly the claim semantics needed here.
type CacheLockStore struct {
	cache *gocache.Cache
}

// NewCacheLockStore creates a lock store that sweeps expired keys
// every minute.
func NewCacheLockStore() *CacheLockStore {
	return &CacheLockStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

// Claim attempts to own key for ttl. It reports false when the key is
// already held.
func (s *CacheLockStore) Claim(key string, ttl time.Duration) (bool, error) {
	if err := s.cache.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}
