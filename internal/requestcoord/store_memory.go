package requestcoord

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type memoryStore struct {
	cache *ttlcache.Cache[string, Entry]
}

// NewMemoryStore returns an in-process store. Expired entries are only removed
// by SweepExpired; no background goroutine is started.
func NewMemoryStore() *memoryStore {
	cache := ttlcache.New[string, Entry](
		ttlcache.WithDisableTouchOnHit[string, Entry](),
	)
	return &memoryStore{cache: cache}
}

func (s *memoryStore) Get(ctx context.Context, key string) (Entry, bool) {
	item := s.cache.Get(key)
	if item == nil {
		return Entry{}, false
	}
	return item.Value(), true
}

func (s *memoryStore) Set(ctx context.Context, key string, entry Entry) {
	s.cache.Set(key, entry, entry.TTL)
}

func (s *memoryStore) SweepExpired(ctx context.Context, now time.Time) {
	s.cache.DeleteExpired()
	s.deleteWhere(func(key string, entry Entry) bool {
		return !entry.Valid(now)
	})
}

func (s *memoryStore) DeletePrefix(ctx context.Context, prefix string) {
	s.deleteWhere(func(key string, entry Entry) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (s *memoryStore) Clear(ctx context.Context) {
	s.cache.DeleteAll()
}

func (s *memoryStore) deleteWhere(match func(key string, entry Entry) bool) {
	var toDelete []string
	s.cache.Range(func(item *ttlcache.Item[string, Entry]) bool {
		if match(item.Key(), item.Value()) {
			toDelete = append(toDelete, item.Key())
		}
		return true
	})
	// Range holds the cache lock
	for _, key := range toDelete {
		s.cache.Delete(key)
	}
}
