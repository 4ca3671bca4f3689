package requestcoord

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Amund211/paydesk/internal/logging"
	"github.com/Amund211/paydesk/internal/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Coordinator sits between callers and the transport. It serves GETs from the
// store, shares in-flight requests between identical calls, and cancels
// requests when they are superseded or their caller is closed.
type Coordinator struct {
	transport   transport.Transport
	store       Store
	defaultTTL  time.Duration
	waitTimeout time.Duration
	nowFunc     func() time.Time
	afterFunc   func(time.Duration) <-chan time.Time

	// Guards inFlight and the flight sets of every caller
	mutex    sync.Mutex
	inFlight map[string]*flight

	metrics coordinatorMetricsCollection
	tracer  trace.Tracer
}

type flight struct {
	key string
	// Only GETs are cancelled when the same caller re-requests the key
	supersedable bool

	ctx    context.Context
	cancel context.CancelCauseFunc
	// Closed once the request has settled and any cache write is done
	done chan struct{}
}

func NewCoordinator(
	tr transport.Transport,
	store Store,
	defaultTTL time.Duration,
	waitTimeout time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) (*Coordinator, error) {
	const name = "paydesk/requestcoord"

	if defaultTTL <= 0 {
		return nil, fmt.Errorf("%w: default cache ttl must be positive, got %s", ErrInvalidRequest, defaultTTL)
	}
	if waitTimeout <= 0 {
		return nil, fmt.Errorf("%w: wait timeout must be positive, got %s", ErrInvalidRequest, waitTimeout)
	}

	metrics, err := setupCoordinatorMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &Coordinator{
		transport:   tr,
		store:       store,
		defaultTTL:  defaultTTL,
		waitTimeout: waitTimeout,
		nowFunc:     nowFunc,
		afterFunc:   afterFunc,

		inFlight: make(map[string]*flight),

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

// Caller owns the requests it starts. Closing it cancels those requests and
// nothing else.
type Caller struct {
	coordinator *Coordinator

	// Guarded by coordinator.mutex
	flights map[*flight]struct{}
	closed  bool

	closedCh chan struct{}
}

func (c *Coordinator) NewCaller() *Caller {
	return &Caller{
		coordinator: c,
		flights:     make(map[*flight]struct{}),
		closedCh:    make(chan struct{}),
	}
}

// ClearCache removes the entries for the given targets, or every entry if no
// target is given
func (c *Coordinator) ClearCache(ctx context.Context, targets ...string) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.ClearCache")
	defer span.End()

	if len(targets) == 0 {
		c.store.Clear(ctx)
		logging.FromContext(ctx).InfoContext(ctx, "Cleared request cache")
		return
	}

	for _, target := range targets {
		c.store.DeletePrefix(ctx, target)
	}
	logging.FromContext(ctx).InfoContext(ctx, "Cleared request cache", "targets", strings.Join(targets, ","))
}

// Close cancels every request started by the caller. Later calls fail with
// ErrRequestCancelled. Safe to call more than once.
func (c *Caller) Close() {
	co := c.coordinator
	co.mutex.Lock()
	defer co.mutex.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.closedCh)

	for f := range c.flights {
		f.cancel(errCallerClosed)
	}
	c.flights = make(map[*flight]struct{})
}

func (c *Caller) Get(ctx context.Context, target string, opts ...Option) (transport.Response, error) {
	co := c.coordinator
	ctx, span := co.tracer.Start(ctx, "Caller.Get")
	defer span.End()

	if target == "" {
		return transport.Response{}, fmt.Errorf("%w: empty target", ErrInvalidRequest)
	}
	o, err := buildOptions(co.defaultTTL, opts)
	if err != nil {
		return transport.Response{}, err
	}
	key, err := cacheKey(target, o.params)
	if err != nil {
		return transport.Response{}, err
	}

	req := transport.Request{
		Method: http.MethodGet,
		Target: target,
		Params: o.params,
		Header: o.header,
	}

	for {
		if o.cache {
			if entry, ok := co.store.Get(ctx, key); ok && entry.Valid(co.nowFunc()) {
				co.metrics.cacheHitCount.Add(ctx, 1)
				return entry.Response, nil
			}
			co.metrics.cacheMissCount.Add(ctx, 1)
		}

		co.mutex.Lock()
		if c.closed {
			co.mutex.Unlock()
			return transport.Response{}, cancelledError(errCallerClosed)
		}

		if existing, ok := co.inFlight[key]; ok && !o.skipDedup {
			co.mutex.Unlock()

			if err := c.wait(ctx, existing); err != nil {
				return transport.Response{}, err
			}
			// The flight settled, either its response is cached now or we make the request
			continue
		}

		f := c.register(ctx, key, true)
		co.mutex.Unlock()

		return c.issue(ctx, f, req, o.cache, o.cacheTTL)
	}
}

// Post sends body to target. If an identical post is in flight, waits for it to
// settle and then sends its own request. Responses are never cached.
func (c *Caller) Post(ctx context.Context, target string, body any, opts ...Option) (transport.Response, error) {
	ctx, span := c.coordinator.tracer.Start(ctx, "Caller.Post")
	defer span.End()

	return c.mutate(ctx, http.MethodPost, target, body, true, opts)
}

func (c *Caller) Put(ctx context.Context, target string, body any, opts ...Option) (transport.Response, error) {
	ctx, span := c.coordinator.tracer.Start(ctx, "Caller.Put")
	defer span.End()

	return c.mutate(ctx, http.MethodPut, target, body, false, opts)
}

func (c *Caller) Delete(ctx context.Context, target string, opts ...Option) (transport.Response, error) {
	ctx, span := c.coordinator.tracer.Start(ctx, "Caller.Delete")
	defer span.End()

	return c.mutate(ctx, http.MethodDelete, target, nil, false, opts)
}

func (c *Caller) mutate(ctx context.Context, method string, target string, body any, dedup bool, opts []Option) (transport.Response, error) {
	co := c.coordinator

	if target == "" {
		return transport.Response{}, fmt.Errorf("%w: empty target", ErrInvalidRequest)
	}
	o, err := buildOptions(co.defaultTTL, opts)
	if err != nil {
		return transport.Response{}, err
	}
	key, err := mutationKey(method, target, o.params, body)
	if err != nil {
		return transport.Response{}, err
	}

	req := transport.Request{
		Method: method,
		Target: target,
		Params: o.params,
		Header: o.header,
		Body:   body,
	}

	co.mutex.Lock()
	if c.closed {
		co.mutex.Unlock()
		return transport.Response{}, cancelledError(errCallerClosed)
	}

	if existing, ok := co.inFlight[key]; ok && dedup && !o.skipDedup {
		co.mutex.Unlock()

		if err := c.wait(ctx, existing); err != nil {
			return transport.Response{}, err
		}

		co.mutex.Lock()
		if c.closed {
			co.mutex.Unlock()
			return transport.Response{}, cancelledError(errCallerClosed)
		}
	}

	f := c.register(ctx, key, false)
	co.mutex.Unlock()

	return c.issue(ctx, f, req, false, 0)
}

// register creates a flight for key owned by c. Must hold coordinator.mutex.
func (c *Caller) register(ctx context.Context, key string, supersedable bool) *flight {
	co := c.coordinator

	if supersedable {
		for previous := range c.flights {
			if previous.key != key || !previous.supersedable || previous.ctx.Err() != nil {
				continue
			}
			previous.cancel(errSuperseded)
			co.metrics.cancelCount.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "superseded")))
		}
	}

	flightCtx, cancel := context.WithCancelCause(ctx)
	f := &flight{
		key:          key,
		supersedable: supersedable,
		ctx:          flightCtx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	c.flights[f] = struct{}{}
	co.inFlight[key] = f

	return f
}

func (c *Caller) issue(ctx context.Context, f *flight, req transport.Request, cache bool, ttl time.Duration) (transport.Response, error) {
	co := c.coordinator
	defer c.settle(f)

	co.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("method", req.Method)))
	resp, err := co.transport.Do(f.ctx, req)

	co.mutex.Lock()
	cancelled := f.ctx.Err() != nil
	if err == nil && !cancelled && cache {
		storeCtx := context.WithoutCancel(ctx)
		now := co.nowFunc()
		co.store.Set(storeCtx, f.key, Entry{Response: resp, StoredAt: now, TTL: ttl})
		co.store.SweepExpired(storeCtx, now)
	}
	co.mutex.Unlock()

	if cancelled {
		cause := context.Cause(f.ctx)
		logging.FromContext(ctx).InfoContext(ctx, "Request cancelled",
			"method", req.Method,
			"target", req.Target,
			"reason", cause.Error(),
		)
		if cause != errSuperseded {
			co.metrics.cancelCount.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", cancelReason(cause))))
		}
		return transport.Response{}, cancelledError(cause)
	}
	if err != nil {
		return transport.Response{}, err
	}

	return resp, nil
}

func (c *Caller) settle(f *flight) {
	co := c.coordinator

	co.mutex.Lock()
	// A newer request may have taken over the key
	if co.inFlight[f.key] == f {
		delete(co.inFlight, f.key)
	}
	delete(c.flights, f)
	co.mutex.Unlock()

	f.cancel(nil)
	close(f.done)
}

func (c *Caller) wait(ctx context.Context, f *flight) error {
	co := c.coordinator
	co.metrics.dedupWaitCount.Add(ctx, 1)

	select {
	case <-f.done:
		return nil
	case <-c.closedCh:
		return cancelledError(errCallerClosed)
	case <-ctx.Done():
		return cancelledError(context.Cause(ctx))
	case <-co.afterFunc(co.waitTimeout):
		return fmt.Errorf("%w: waited %s", ErrWaitTimeout, co.waitTimeout)
	}
}

func cancelReason(cause error) string {
	switch cause {
	case errCallerClosed:
		return "caller_closed"
	case errSuperseded:
		return "superseded"
	default:
		return "context"
	}
}
