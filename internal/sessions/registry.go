package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Amund211/paydesk/internal/logging"
	"github.com/Amund211/paydesk/internal/requestcoord"
	"github.com/jellydator/ttlcache/v3"
	"github.com/prometheus/client_golang/prometheus"
)

const HeaderName = logging.SessionIDHeader

// CallerFactory creates callers for new sessions. Implemented by *requestcoord.Coordinator.
type CallerFactory interface {
	NewCaller() *requestcoord.Caller
}

// Registry maps session IDs to request callers. A session that has been idle
// for longer than the idle TTL is evicted and its caller is closed, which
// cancels whatever that session still had in flight.
type Registry struct {
	factory CallerFactory
	callers *ttlcache.Cache[string, *requestcoord.Caller]
}

func NewRegistry(factory CallerFactory, idleTTL time.Duration, registerer prometheus.Registerer) (*Registry, error) {
	if idleTTL <= 0 {
		return nil, fmt.Errorf("session idle ttl must be positive, got %s", idleTTL)
	}

	callers := ttlcache.New[string, *requestcoord.Caller](
		ttlcache.WithTTL[string, *requestcoord.Caller](idleTTL),
	)

	active := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "paydesk_active_sessions",
		Help: "Number of dashboard sessions holding a request caller",
	}, func() float64 {
		return float64(callers.Len())
	})
	ended := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paydesk_ended_sessions_total",
		Help: "Dashboard sessions that were ended, by reason",
	}, []string{"reason"})

	if err := registerer.Register(active); err != nil {
		return nil, fmt.Errorf("failed to register active sessions gauge: %w", err)
	}
	if err := registerer.Register(ended); err != nil {
		return nil, fmt.Errorf("failed to register ended sessions counter: %w", err)
	}

	callers.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *requestcoord.Caller]) {
		item.Value().Close()
		ended.WithLabelValues(evictionLabel(reason)).Inc()
	})

	return &Registry{
		factory: factory,
		callers: callers,
	}, nil
}

func evictionLabel(reason ttlcache.EvictionReason) string {
	switch reason {
	case ttlcache.EvictionReasonExpired:
		return "idle"
	case ttlcache.EvictionReasonDeleted:
		return "ended"
	default:
		return "capacity"
	}
}

// Start runs the expiry loop in the background until Stop is called
func (r *Registry) Start() {
	go r.callers.Start()
}

// Stop halts the expiry loop and closes every remaining session
func (r *Registry) Stop() {
	r.callers.Stop()
	for _, item := range r.callers.Items() {
		item.Value().Close()
	}
	r.callers.DeleteAll()
}

// Caller returns the caller for the given session, creating it on first use.
// Every lookup resets the session's idle timer.
func (r *Registry) Caller(sessionID string) *requestcoord.Caller {
	if item := r.callers.Get(sessionID); item != nil {
		return item.Value()
	}

	// An expired entry would otherwise be overwritten without its caller being closed
	r.callers.DeleteExpired()

	item, _ := r.callers.GetOrSetFunc(sessionID, func() *requestcoord.Caller {
		return r.factory.NewCaller()
	})
	return item.Value()
}

// End closes the session's caller. Reports whether the session existed.
func (r *Registry) End(sessionID string) bool {
	item, present := r.callers.GetAndDelete(sessionID)
	if !present {
		return false
	}
	// The eviction hook runs asynchronously, so close here as well
	item.Value().Close()
	return true
}

func (r *Registry) Len() int {
	return r.callers.Len()
}

// CallerForRequest resolves the caller for the session named in the request
// header. Requests without a session get a fresh caller, and the returned
// release func must be called once the request is done.
func (r *Registry) CallerForRequest(req *http.Request) (*requestcoord.Caller, func()) {
	sessionID := req.Header.Get(HeaderName)
	if sessionID == "" {
		logging.FromContext(req.Context()).Debug("No session id, using ephemeral caller")
		caller := r.factory.NewCaller()
		return caller, caller.Close
	}

	logging.FromContext(req.Context()).Debug("Resolved session caller", slog.String("sessionId", sessionID))
	return r.Caller(sessionID), func() {}
}
