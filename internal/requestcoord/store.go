package requestcoord

import (
	"context"
	"time"

	"github.com/Amund211/paydesk/internal/transport"
)

type Entry struct {
	Response transport.Response `json:"response"`
	StoredAt time.Time          `json:"storedAt"`
	TTL      time.Duration      `json:"ttl"`
}

// Valid reports whether the entry is still fresh at now
func (e Entry) Valid(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Store holds cached responses. Implementations may return entries that are no
// longer valid; callers check Entry.Valid.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Set(ctx context.Context, key string, entry Entry)
	SweepExpired(ctx context.Context, now time.Time)
	DeletePrefix(ctx context.Context, prefix string)
	Clear(ctx context.Context)
}
