package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/paydesk/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerMiddleware(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, request *http.Request) map[string]any {
		t.Helper()

		buf := &bytes.Buffer{}
		middleware := logging.NewRequestLoggerMiddleware(slog.New(slog.NewJSONHandler(buf, nil)))

		handler := middleware(func(w http.ResponseWriter, r *http.Request) {
			logging.FromContext(r.Context()).Info("test")
		})

		handler(httptest.NewRecorder(), request)

		var logEntry map[string]any
		err := json.Unmarshal(buf.Bytes(), &logEntry)
		require.NoError(t, err)

		require.Equal(t, "test", logEntry["msg"])
		require.Equal(t, "INFO", logEntry["level"])
		require.NotEmpty(t, logEntry["correlationID"])

		delete(logEntry, "msg")
		delete(logEntry, "level")
		delete(logEntry, "time")
		delete(logEntry, "correlationID")
		return logEntry
	}

	t.Run("all props", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "http://example.com/v1/assets?search=laptop", nil)
		req.Header.Set("X-Session-Id", "session-1")
		req.Header.Set("User-Agent", "dashboard/2.0")

		require.Equal(t, map[string]any{
			"sessionId":  "session-1",
			"userAgent":  "dashboard/2.0",
			"methodPath": "GET /v1/assets",
		}, run(t, req))
	})

	t.Run("missing props", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "http://example.com/v1/advances", nil)
		req.Header.Del("User-Agent")

		require.Equal(t, map[string]any{
			"sessionId":  "<missing>",
			"userAgent":  "<missing>",
			"methodPath": "POST /v1/advances",
		}, run(t, req))
	})

	t.Run("long session ids are truncated", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "http://example.com/v1/tax-rules", nil)
		req.Header.Set("X-Session-Id", string(bytes.Repeat([]byte("a"), 200)))

		entry := run(t, req)
		require.Len(t, entry["sessionId"], 64)
	})

	t.Run("without middleware", func(t *testing.T) {
		t.Parallel()

		logging.FromContext(context.Background()).Info("don't crash when no logger in context")
	})
}
