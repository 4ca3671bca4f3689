package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/paydesk/internal/logging"
	"github.com/Amund211/paydesk/internal/ratelimiting"
)

type Middleware = func(http.HandlerFunc) http.HandlerFunc

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...Middleware) Middleware {
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}

func makeOnLimitExceeded(rateLimiter ratelimiting.RequestRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context())

		statusCode := http.StatusTooManyRequests

		logger.Info("Rate limit exceeded", "statusCode", statusCode, "reason", "ratelimit exceeded", "key", rateLimiter.KeyFor(r))

		writeFailure(w, r, statusCode, "rate limit exceeded")
	}
}

// BuildAPIMiddleware composes the chain shared by every API route. The returned
// stop func halts the rate limiter cleanup.
func BuildAPIMiddleware(
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware Middleware,
) (Middleware, func(), error) {
	metricsMiddleware, err := buildMetricsMiddleware()
	if err != nil {
		return nil, nil, err
	}

	ipLimiter, stopIPLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(10),
		ratelimiting.BurstSize(120),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)
	sessionLimiter, stopSessionLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(5),
		ratelimiting.BurstSize(60),
	)
	sessionRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		sessionLimiter,
		ratelimiting.SessionKeyFunc,
	)

	middleware := ComposeMiddlewares(
		metricsMiddleware,
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, makeOnLimitExceeded(ipRateLimiter)),
		NewRateLimitMiddleware(sessionRateLimiter, makeOnLimitExceeded(sessionRateLimiter)),
	)

	stop := func() {
		stopIPLimiter()
		stopSessionLimiter()
	}

	return middleware, stop, nil
}
