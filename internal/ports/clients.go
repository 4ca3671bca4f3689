package ports

import (
	"net/http"

	"github.com/Amund211/paydesk/internal/hrapi"
	"github.com/Amund211/paydesk/internal/requestcoord"
)

// ClientSource hands out a backend client bound to the request's session. The
// release func must be called once the request is done.
type ClientSource interface {
	ClientFor(r *http.Request) (*hrapi.Client, func())
}

type callerSource interface {
	CallerForRequest(r *http.Request) (*requestcoord.Caller, func())
}

type sessionClients struct {
	callers callerSource
	cache   hrapi.CacheClearer
}

func NewSessionClients(callers callerSource, cache hrapi.CacheClearer) ClientSource {
	return &sessionClients{callers: callers, cache: cache}
}

func (s *sessionClients) ClientFor(r *http.Request) (*hrapi.Client, func()) {
	caller, release := s.callers.CallerForRequest(r)
	return hrapi.NewClient(caller, s.cache), release
}

type clientHandler[T any] func(r *http.Request, client *hrapi.Client) (T, error)

func makeClientHandler[T any](clients ClientSource, successStatus int, handle clientHandler[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = withReportingMeta(r)
		client, release := clients.ClientFor(r)
		defer release()

		result, err := handle(r, client)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, r, successStatus, result)
	}
}
