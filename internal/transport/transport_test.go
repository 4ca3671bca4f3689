package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/transport"
	"github.com/stretchr/testify/require"
)

type passthroughLimiter struct {
	err error
}

func (l *passthroughLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) error {
	if l.err != nil {
		return l.err
	}
	operation(ctx)
	return nil
}

func newTransport(t *testing.T, handler http.HandlerFunc, limiter transport.RequestLimiter) *transport.HTTPTransport {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	baseURL, err := url.Parse(server.URL + "/api")
	require.NoError(t, err)

	tr, err := transport.NewHTTPTransport(server.Client(), limiter, baseURL, "secret-key", time.Now)
	require.NoError(t, err)
	return tr
}

func TestHTTPTransport(t *testing.T) {
	t.Parallel()

	t.Run("GET with params", func(t *testing.T) {
		t.Parallel()

		tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "/api/assets", r.URL.Path)
			require.Equal(t, "laptop", r.URL.Query().Get("search"))
			require.Equal(t, "2", r.URL.Query().Get("page"))
			require.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
			require.Contains(t, r.Header.Get("User-Agent"), "paydesk")
			require.Equal(t, "abc", r.Header.Get("X-Trace"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"id":"1"}]`))
		}, &passthroughLimiter{})

		resp, err := tr.Do(t.Context(), transport.Request{
			Target: "/assets",
			Params: url.Values{"search": {"laptop"}, "page": {"2"}},
			Header: http.Header{"X-Trace": {"abc"}},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `[{"id":"1"}]`, string(resp.Body))
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("POST encodes body", func(t *testing.T) {
		t.Parallel()

		tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))

			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.JSONEq(t, `{"name":"Laptop","value":"1200.50"}`, string(data))

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"status":"success"}`))
		}, &passthroughLimiter{})

		resp, err := tr.Do(t.Context(), transport.Request{
			Method: http.MethodPost,
			Target: "assets",
			Body:   map[string]string{"name": "Laptop", "value": "1200.50"},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("non 2xx", func(t *testing.T) {
		t.Parallel()

		tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}, &passthroughLimiter{})

		_, err := tr.Do(t.Context(), transport.Request{Target: "/employees/9/bank-details"})
		require.Error(t, err)

		var transportErr *transport.Error
		require.ErrorAs(t, err, &transportErr)
		require.Equal(t, http.StatusNotFound, transportErr.StatusCode)
		require.JSONEq(t, `{"message":"not found"}`, string(transportErr.Body))
		require.NotErrorIs(t, err, domain.ErrTemporarilyUnavailable)
	})

	t.Run("temporarily unavailable", func(t *testing.T) {
		t.Parallel()

		for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
			tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}, &passthroughLimiter{})

			_, err := tr.Do(t.Context(), transport.Request{Target: "/assets"})
			require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
		}
	})

	t.Run("limited", func(t *testing.T) {
		t.Parallel()

		tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request should not be sent")
		}, &passthroughLimiter{err: errors.New("deadline too soon")})

		_, err := tr.Do(t.Context(), transport.Request{Target: "/assets"})
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()

		requestReceived := make(chan struct{})
		release := make(chan struct{})
		tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
			close(requestReceived)
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}, &passthroughLimiter{})
		defer close(release)

		cause := errors.New("superseded")
		ctx, cancel := context.WithCancelCause(t.Context())
		go func() {
			<-requestReceived
			cancel(cause)
		}()

		_, err := tr.Do(ctx, transport.Request{Target: "/assets"})
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, err, cause)
		require.True(t, transport.IsCancellation(err))
	})

	t.Run("escaped target is sent once escaped", func(t *testing.T) {
		t.Parallel()

		tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/assets/A%201/x%2Fy", r.URL.EscapedPath())
			require.Equal(t, "/api/assets/A 1/x/y", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}, &passthroughLimiter{})

		resp, err := tr.Do(t.Context(), transport.Request{
			Method: http.MethodPut,
			Target: "/assets/" + url.PathEscape("A 1") + "/" + url.PathEscape("x/y"),
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("malformed escape in target", func(t *testing.T) {
		t.Parallel()

		tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request should not be sent")
		}, &passthroughLimiter{})

		_, err := tr.Do(t.Context(), transport.Request{Target: "/assets/%zz"})
		var transportErr *transport.Error
		require.ErrorAs(t, err, &transportErr)
		require.ErrorContains(t, err, "invalid target")
	})

	t.Run("unencodable body", func(t *testing.T) {
		t.Parallel()

		tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request should not be sent")
		}, &passthroughLimiter{})

		_, err := tr.Do(t.Context(), transport.Request{
			Method: http.MethodPost,
			Target: "/assets",
			Body:   map[string]any{"fn": func() {}},
		})
		var unsupported *json.UnsupportedTypeError
		require.ErrorAs(t, err, &unsupported)
	})
}
