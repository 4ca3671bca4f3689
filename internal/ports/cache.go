package ports

import (
	"fmt"
	"net/http"

	"github.com/Amund211/paydesk/internal/hrapi"
	"github.com/Amund211/paydesk/internal/logging"
)

type clearCacheRequest struct {
	Target string `json:"target"`
}

// MakeClearCacheHandler drops cached backend reads for one target prefix, or
// all of them when no target is given
func MakeClearCacheHandler(cache hrapi.CacheClearer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		request, err := decodeOptionalBody[clearCacheRequest](r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if request.Target == "" {
			cache.ClearCache(r.Context())
		} else {
			cache.ClearCache(r.Context(), request.Target)
		}

		writeJSON(w, r, http.StatusOK, request)
	}
}

type SessionEnder interface {
	End(sessionID string) bool
}

// MakeEndSessionHandler cancels everything the session has in flight
func MakeEndSessionHandler(sessions SessionEnder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(logging.SessionIDHeader)
		if sessionID == "" {
			writeError(w, r, fmt.Errorf("%w: missing %s header", errBadRequest, logging.SessionIDHeader))
			return
		}

		ended := sessions.End(sessionID)
		logging.FromContext(r.Context()).InfoContext(r.Context(), "Ended session", "existed", ended)

		writeJSON(w, r, http.StatusOK, map[string]bool{"ended": ended})
	}
}
