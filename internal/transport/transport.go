package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/paydesk/internal/constants"
	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/logging"
	"github.com/Amund211/paydesk/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const maxOperationTime = 5 * time.Second

type Request struct {
	Method string
	// Target is an escaped path relative to the backend base URL, e.g. "/assets/A%201"
	Target string
	Params url.Values
	Header http.Header
	// Body is JSON encoded. Ignored when nil.
	Body any
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Error is a failed backend call. Either StatusCode/Body are set (non-2xx reply)
// or Err is set (the call never produced a reply).
type Error struct {
	Method     string
	Target     string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Target, e.Err.Error())
	}
	return fmt.Sprintf("%s %s: backend returned status %d", e.Method, e.Target, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if target != domain.ErrTemporarilyUnavailable {
		return false
	}
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type RequestLimiter interface {
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) error
}

type transportMetricsCollection struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

func setupTransportMetrics(meter metric.Meter) (transportMetricsCollection, error) {
	requestCount, err := meter.Int64Counter(
		"transport/request_count",
		metric.WithDescription("Requests sent to the backend"),
	)
	if err != nil {
		return transportMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"transport/request_duration_seconds",
		metric.WithDescription("Round trip time of backend requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return transportMetricsCollection{}, fmt.Errorf("failed to create request duration metric: %w", err)
	}

	return transportMetricsCollection{
		requestCount:    requestCount,
		requestDuration: requestDuration,
	}, nil
}

type HTTPTransport struct {
	httpClient HttpClient
	limiter    RequestLimiter
	baseURL    *url.URL
	apiKey     string
	nowFunc    func() time.Time

	metrics transportMetricsCollection
	tracer  trace.Tracer
}

func NewHTTPTransport(
	httpClient HttpClient,
	limiter RequestLimiter,
	baseURL *url.URL,
	apiKey string,
	nowFunc func() time.Time,
) (*HTTPTransport, error) {
	const name = "paydesk/transport"

	metrics, err := setupTransportMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &HTTPTransport{
		httpClient: httpClient,
		limiter:    limiter,
		baseURL:    baseURL,
		apiKey:     apiKey,
		nowFunc:    nowFunc,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

// resolve joins the escaped target onto the base URL. Escapes in the target are
// kept as is, so an escaped "/" stays inside its path segment.
func (t *HTTPTransport) resolve(target string, params url.Values) (string, error) {
	rawPath := strings.TrimSuffix(t.baseURL.EscapedPath(), "/") + "/" + strings.TrimPrefix(target, "/")
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}

	resolved := *t.baseURL
	resolved.Path = path
	resolved.RawPath = rawPath
	if len(params) > 0 {
		resolved.RawQuery = params.Encode()
	}
	return resolved.String(), nil
}

func (t *HTTPTransport) Do(ctx context.Context, req Request) (Response, error) {
	ctx, span := t.tracer.Start(ctx, "HTTPTransport.Do")
	defer span.End()

	logger := logging.FromContext(ctx)

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	fail := func(err error) (Response, error) {
		return Response{}, &Error{Method: method, Target: req.Target, Err: err}
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return fail(fmt.Errorf("failed to encode request body: %w", err))
		}
		body = bytes.NewReader(encoded)
	}

	resolved, err := t.resolve(req.Target, req.Params)
	if err != nil {
		return fail(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, resolved, body)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return fail(err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("User-Agent", constants.USER_AGENT)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	var resp *http.Response
	var data []byte
	var start time.Time
	limitErr := t.limiter.Limit(ctx, maxOperationTime, func(ctx context.Context) {
		start = t.nowFunc()

		resp, err = t.httpClient.Do(httpReq)
		if err != nil {
			err = fmt.Errorf("failed to send request: %w", err)
			return
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("failed to read response body: %w", err)
		}
	})
	if limitErr != nil {
		if ctx.Err() != nil {
			return fail(cancellationError(ctx))
		}
		logger.WarnContext(ctx, "Backend request limited", "error", limitErr.Error())
		return fail(fmt.Errorf("%w: %w", domain.ErrTemporarilyUnavailable, limitErr))
	}
	if err != nil {
		if ctx.Err() != nil {
			return fail(fmt.Errorf("%w: %w", cancellationError(ctx), err))
		}
		reporting.Report(ctx, err, map[string]string{"target": req.Target, "method": method})
		return fail(err)
	}

	duration := t.nowFunc().Sub(start)
	attributes := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status_code", strconv.Itoa(resp.StatusCode)),
	)
	t.metrics.requestCount.Add(ctx, 1, attributes)
	t.metrics.requestDuration.Record(ctx, duration.Seconds(), attributes)

	logger.InfoContext(ctx, "Backend request completed",
		slog.String("method", method),
		slog.String("target", req.Target),
		slog.Int("status", resp.StatusCode),
		slog.String("duration", duration.String()),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &Error{
			Method:     method,
			Target:     req.Target,
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func cancellationError(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ctx.Err()) {
		return cause
	}
	return fmt.Errorf("%w: %w", ctx.Err(), cause)
}

// IsCancellation reports whether err stems from a cancelled or expired context
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
