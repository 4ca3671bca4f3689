package requestcoord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ristrettoStore is a size bounded store. Ristretto may drop writes under
// contention and cannot be iterated, so the known keys are tracked separately.
type ristrettoStore struct {
	cache *ristretto.Cache[string, Entry]

	mutex sync.Mutex
	keys  map[string]struct{}
}

func NewRistrettoStore(maxEntries int64) (*ristrettoStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, Entry]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &ristrettoStore{
		cache: cache,
		keys:  make(map[string]struct{}),
	}, nil
}

func (s *ristrettoStore) Get(ctx context.Context, key string) (Entry, bool) {
	entry, ok := s.cache.Get(key)
	if !ok {
		s.mutex.Lock()
		delete(s.keys, key)
		s.mutex.Unlock()
		return Entry{}, false
	}
	return entry, true
}

func (s *ristrettoStore) Set(ctx context.Context, key string, entry Entry) {
	if !s.cache.SetWithTTL(key, entry, 1, entry.TTL) {
		return
	}
	s.cache.Wait()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.keys[key] = struct{}{}
}

func (s *ristrettoStore) SweepExpired(ctx context.Context, now time.Time) {
	s.deleteWhere(func(key string) bool {
		entry, ok := s.cache.Get(key)
		return !ok || !entry.Valid(now)
	})
}

func (s *ristrettoStore) DeletePrefix(ctx context.Context, prefix string) {
	s.deleteWhere(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (s *ristrettoStore) Clear(ctx context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cache.Clear()
	s.keys = make(map[string]struct{})
}

func (s *ristrettoStore) deleteWhere(match func(key string) bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key := range s.keys {
		if match(key) {
			s.cache.Del(key)
			delete(s.keys, key)
		}
	}
}

func (s *ristrettoStore) Close() {
	s.cache.Close()
}
