package sessions_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/synctest"
	"time"

	"github.com/Amund211/paydesk/internal/requestcoord"
	"github.com/Amund211/paydesk/internal/sessions"
	"github.com/Amund211/paydesk/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type okTransport struct{}

func (okTransport) Do(ctx context.Context, req transport.Request) (transport.Response, error) {
	return transport.Response{StatusCode: http.StatusOK, Body: []byte(`[]`)}, nil
}

func newRegistry(t *testing.T, idleTTL time.Duration) (*sessions.Registry, *prometheus.Registry) {
	t.Helper()

	coordinator, err := requestcoord.NewCoordinator(
		okTransport{},
		requestcoord.NewMemoryStore(),
		time.Minute,
		time.Minute,
		time.Now,
		time.After,
	)
	require.NoError(t, err)

	promRegistry := prometheus.NewRegistry()
	registry, err := sessions.NewRegistry(coordinator, idleTTL, promRegistry)
	require.NoError(t, err)

	return registry, promRegistry
}

// Sum of all samples of the named metric
func gathered(t *testing.T, gatherer prometheus.Gatherer, name string) float64 {
	t.Helper()

	families, err := gatherer.Gather()
	require.NoError(t, err)

	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetGauge().GetValue() + m.GetCounter().GetValue()
		}
	}
	return total
}

func requireClosed(t *testing.T, caller *requestcoord.Caller) {
	t.Helper()
	_, err := caller.Get(t.Context(), "/employees", requestcoord.WithoutCache())
	require.ErrorIs(t, err, requestcoord.ErrRequestCancelled)
}

func requireOpen(t *testing.T, caller *requestcoord.Caller) {
	t.Helper()
	_, err := caller.Get(t.Context(), "/employees", requestcoord.WithoutCache())
	require.NoError(t, err)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("same session gets the same caller", func(t *testing.T) {
		t.Parallel()
		registry, promRegistry := newRegistry(t, time.Minute)

		a := registry.Caller("session-a")
		require.Same(t, a, registry.Caller("session-a"))
		require.NotSame(t, a, registry.Caller("session-b"))

		require.Equal(t, 2, registry.Len())
		require.Equal(t, 2.0, gathered(t, promRegistry, "paydesk_active_sessions"))
	})

	t.Run("end closes only that session", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			registry, promRegistry := newRegistry(t, time.Minute)

			a := registry.Caller("session-a")
			b := registry.Caller("session-b")

			require.True(t, registry.End("session-a"))
			require.False(t, registry.End("session-a"))
			require.False(t, registry.End("unknown"))

			requireClosed(t, a)
			requireOpen(t, b)

			require.NotSame(t, a, registry.Caller("session-a"))

			synctest.Wait()
			require.Equal(t, 1.0, gathered(t, promRegistry, "paydesk_ended_sessions_total"))
			require.Equal(t, 2.0, gathered(t, promRegistry, "paydesk_active_sessions"))
		})
	})

	t.Run("idle sessions expire and are closed", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			registry, _ := newRegistry(t, time.Minute)

			a := registry.Caller("session-a")
			time.Sleep(30 * time.Second)
			// Lookups keep the session alive
			require.Same(t, a, registry.Caller("session-a"))
			time.Sleep(45 * time.Second)
			require.Same(t, a, registry.Caller("session-a"))

			time.Sleep(61 * time.Second)
			require.Equal(t, 0, registry.Len())

			fresh := registry.Caller("session-a")
			require.NotSame(t, a, fresh)

			synctest.Wait()
			requireClosed(t, a)
			requireOpen(t, fresh)
		})
	})

	t.Run("stop closes every session", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			registry, _ := newRegistry(t, time.Minute)
			registry.Start()
			synctest.Wait()

			a := registry.Caller("session-a")
			b := registry.Caller("session-b")

			registry.Stop()
			synctest.Wait()

			requireClosed(t, a)
			requireClosed(t, b)
			require.Equal(t, 0, registry.Len())
		})
	})

	t.Run("caller for request", func(t *testing.T) {
		t.Parallel()
		registry, _ := newRegistry(t, time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/v1/employees", nil)
		req.Header.Set(sessions.HeaderName, "session-a")
		caller, release := registry.CallerForRequest(req)
		release()
		require.Same(t, registry.Caller("session-a"), caller)
		requireOpen(t, caller)

		anonymous := httptest.NewRequest(http.MethodGet, "/v1/employees", nil)
		ephemeral, release := registry.CallerForRequest(anonymous)
		requireOpen(t, ephemeral)
		release()
		requireClosed(t, ephemeral)
		require.Equal(t, 1, registry.Len())
	})
}

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	coordinator, err := requestcoord.NewCoordinator(okTransport{}, requestcoord.NewMemoryStore(), time.Minute, time.Minute, time.Now, time.After)
	require.NoError(t, err)

	_, err = sessions.NewRegistry(coordinator, 0, prometheus.NewRegistry())
	require.Error(t, err)

	promRegistry := prometheus.NewRegistry()
	_, err = sessions.NewRegistry(coordinator, time.Minute, promRegistry)
	require.NoError(t, err)
	_, err = sessions.NewRegistry(coordinator, time.Minute, promRegistry)
	require.Error(t, err)
}
