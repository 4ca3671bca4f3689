package reporting

import (
	"context"
	"maps"
	"time"

	"github.com/Amund211/paydesk/internal/domain"
)

type requestMetaKey struct{}

// requestMeta is what a report knows about the request it was made in
type requestMeta struct {
	sessionID  string
	route      string
	employeeID string
	month      domain.Month
	extras     map[string]string
	startedAt  time.Time
}

func metaFromContext(ctx context.Context) requestMeta {
	meta, ok := ctx.Value(requestMetaKey{}).(requestMeta)
	if !ok {
		return requestMeta{extras: map[string]string{}}
	}
	meta.extras = maps.Clone(meta.extras)
	if meta.extras == nil {
		meta.extras = map[string]string{}
	}
	return meta
}

func updateMeta(ctx context.Context, update func(meta *requestMeta)) context.Context {
	meta := metaFromContext(ctx)
	update(&meta)
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func withRequest(ctx context.Context, sessionID string, route string, startedAt time.Time) context.Context {
	return updateMeta(ctx, func(meta *requestMeta) {
		meta.sessionID = sessionID
		meta.route = route
		meta.startedAt = startedAt
	})
}

// WithEmployee tags later reports with the employee the request is about
func WithEmployee(ctx context.Context, employeeID string) context.Context {
	return updateMeta(ctx, func(meta *requestMeta) {
		meta.employeeID = employeeID
	})
}

// WithPayrollMonth tags later reports with the payroll period the request is about
func WithPayrollMonth(ctx context.Context, month domain.Month) context.Context {
	return updateMeta(ctx, func(meta *requestMeta) {
		meta.month = month
	})
}

func WithExtras(ctx context.Context, extras map[string]string) context.Context {
	return updateMeta(ctx, func(meta *requestMeta) {
		maps.Copy(meta.extras, extras)
	})
}
