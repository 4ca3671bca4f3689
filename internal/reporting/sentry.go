package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/Amund211/paydesk/internal/config"
	"github.com/Amund211/paydesk/internal/logging"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

var uuidRx = regexp.MustCompile(`[0-9a-f]{8}-?([0-9a-f]{4}-?){3}[0-9a-f]{12}`)
var hostRx = regexp.MustCompile(`\[:{0,2}([0-9a-f]{0,4}:?){1,8}\]:\d+`)
var ipv4HostRx = regexp.MustCompile(`\b(\d{1,3}\.){3}\d{1,3}:\d+\b`)
var emailRx = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
var employeePathRx = regexp.MustCompile(`/(employees|assets|advances|payslips)/[^/\s"?]+`)
var employeeParamRx = regexp.MustCompile(`(employee_id|search)=[^&\s"]*`)

// sanitizeError strips identifiers from an error message so that errors for
// different employees are grouped together
func sanitizeError(err string) string {
	err = uuidRx.ReplaceAllString(err, "<uuid>")
	err = hostRx.ReplaceAllString(err, "<host>")
	err = ipv4HostRx.ReplaceAllString(err, "<host>")
	err = emailRx.ReplaceAllString(err, "<email>")
	err = employeePathRx.ReplaceAllString(err, "/$1/<id>")
	err = employeeParamRx.ReplaceAllString(err, "$1=<value>")
	return err
}

func (meta requestMeta) applyTo(scope *sentry.Scope) {
	if meta.route != "" {
		scope.SetTag("route", meta.route)
	}
	if meta.sessionID != "" {
		scope.SetUser(sentry.User{ID: meta.sessionID})
	}
	if meta.employeeID != "" {
		scope.SetTag("employee_id", meta.employeeID)
	}
	if !meta.month.IsZero() {
		scope.SetTag("payroll_month", meta.month.String())
	}
	for key, value := range meta.extras {
		scope.SetExtra(key, value)
	}
	if !meta.startedAt.IsZero() {
		scope.SetExtra("secondsSinceStart", time.Since(meta.startedAt).Seconds())
	}
}

// Report sends err to Sentry along with what is known about the current
// request. Without a hub in ctx the error is only logged.
func Report(ctx context.Context, err error, extras ...map[string]string) {
	if err == nil {
		return
	}

	logger := logging.FromContext(ctx)
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		logger.WarnContext(ctx, "No Sentry hub in context, not reporting", "error", err.Error(), "extras", extras)
		return
	}

	logger.ErrorContext(ctx, "Reporting error to Sentry",
		slog.String("error", err.Error()),
		slog.Any("extras", extras),
	)

	hub.WithScope(func(scope *sentry.Scope) {
		metaFromContext(ctx).applyTo(scope)
		for _, extra := range extras {
			for key, value := range extra {
				scope.SetExtra(key, value)
			}
		}

		scope.SetFingerprint([]string{"{{ default }}", sanitizeError(err.Error())})
		hub.CaptureException(err)
	})
}

// scrubEvent drops the session header, which is already reported as the user,
// and masks employee identifiers in the query string
func scrubEvent(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Request == nil {
		return event
	}
	delete(event.Request.Headers, logging.SessionIDHeader)
	event.Request.QueryString = employeeParamRx.ReplaceAllString(event.Request.QueryString, "$1=<value>")
	return event
}

func requestMetaMiddleware(nowFunc func() time.Time) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			route := r.Pattern
			if route == "" {
				route = "<unmatched>"
			}
			sessionID := fmt.Sprintf("%.64s", r.Header.Get(logging.SessionIDHeader))

			ctx := withRequest(r.Context(), sessionID, route, nowFunc())
			next(w, r.WithContext(ctx))
		}
	}
}

func newSentryMiddleware(sentryDSN string, environment string) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              sentryDSN,
		Environment:      environment,
		EnableTracing:    true,
		TracesSampleRate: 1.0 / 100.0,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{})
	withMeta := requestMetaMiddleware(time.Now)

	middleware := func(next http.HandlerFunc) http.HandlerFunc {
		return sentryHandler.HandleFunc(withMeta(next))
	}
	flush := func() {
		sentry.Flush(5 * time.Second)
	}
	return middleware, flush, nil
}

// NewSentryMiddlewareOrMock reports to Sentry when a DSN is configured. Only
// development may run without one.
func NewSentryMiddlewareOrMock(cfg config.Config) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	if cfg.SentryDSN() != "" {
		return newSentryMiddleware(cfg.SentryDSN(), cfg.Environment())
	}

	if !cfg.IsDevelopment() {
		return nil, nil, fmt.Errorf("missing Sentry DSN in %s", cfg.Environment())
	}

	middleware := func(next http.HandlerFunc) http.HandlerFunc {
		return next
	}
	return middleware, func() {}, nil
}
