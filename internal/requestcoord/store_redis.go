package requestcoord

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Amund211/paydesk/internal/logging"
	"github.com/redis/go-redis/v9"
)

const redisNamespace = "paydesk:cache:"

// redisStore shares cached responses between replicas. All operations fail
// soft: an unreachable redis behaves like an empty cache.
type redisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *redisStore {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Get(ctx context.Context, key string) (Entry, bool) {
	data, err := s.rdb.Get(ctx, redisNamespace+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).WarnContext(ctx, "Failed to read from redis cache", "error", err.Error())
		}
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Failed to decode redis cache entry", "error", err.Error())
		return Entry{}, false
	}
	return entry, true
}

func (s *redisStore) Set(ctx context.Context, key string, entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Failed to encode redis cache entry", "error", err.Error())
		return
	}

	if err := s.rdb.Set(ctx, redisNamespace+key, data, entry.TTL).Err(); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Failed to write to redis cache", "error", err.Error())
	}
}

// SweepExpired is a no-op, redis expires keys on its own
func (s *redisStore) SweepExpired(ctx context.Context, now time.Time) {}

func (s *redisStore) DeletePrefix(ctx context.Context, prefix string) {
	s.deleteMatching(ctx, redisNamespace+escapeGlob(prefix)+"*")
}

func (s *redisStore) Clear(ctx context.Context) {
	s.deleteMatching(ctx, redisNamespace+"*")
}

func (s *redisStore) deleteMatching(ctx context.Context, pattern string) {
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()

	var batch []string
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "Failed to delete from redis cache", "error", err.Error())
		}
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			flush()
		}
	}
	flush()

	if err := iter.Err(); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Failed to scan redis cache", "error", err.Error())
	}
}

var globReplacer = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
