package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/logging"
	"github.com/Amund211/paydesk/internal/payroll"
	"github.com/Amund211/paydesk/internal/reporting"
	"github.com/Amund211/paydesk/internal/requestcoord"
	"github.com/Amund211/paydesk/internal/transport"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	marshalled, err := json.Marshal(successResponse{Success: true, Data: data})
	if err != nil {
		reporting.Report(r.Context(), fmt.Errorf("failed to marshal response: %w", err))
		writeFailure(w, r, http.StatusInternalServerError, "failed to marshal response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(marshalled)
}

func writeFailure(w http.ResponseWriter, r *http.Request, statusCode int, cause string) {
	marshalled, err := json.Marshal(failureResponse{Success: false, Cause: cause})
	if err != nil {
		http.Error(w, cause, statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(marshalled)
}

func statusFor(err error) int {
	var transportErr *transport.Error
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidMonth),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, requestcoord.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBackendRejected),
		errors.Is(err, payroll.ErrInvalidSettings),
		errors.Is(err, payroll.ErrInvalidPayableDays):
		return http.StatusUnprocessableEntity
	// A newer request from the same session took over
	case errors.Is(err, requestcoord.ErrRequestCancelled):
		return http.StatusConflict
	case errors.Is(err, requestcoord.ErrWaitTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	statusCode := statusFor(err)

	cause := err.Error()
	if statusCode == http.StatusInternalServerError {
		reporting.Report(ctx, err)
		cause = "internal error"
	} else if statusCode == http.StatusConflict {
		logging.FromContext(ctx).InfoContext(ctx, "Request cancelled", "error", err.Error())
	} else {
		logging.FromContext(ctx).WarnContext(ctx, "Request failed", "statusCode", statusCode, "error", err.Error())
	}

	writeFailure(w, r, statusCode, cause)
}

func decodeBody[T any](r *http.Request) (T, error) {
	var value T

	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return value, fmt.Errorf("%w: failed to read body: %w", errBadRequest, err)
	}
	if err := json.Unmarshal(body, &value); err != nil {
		return value, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return value, nil
}

// Like decodeBody, but an empty body gives the zero value
func decodeOptionalBody[T any](r *http.Request) (T, error) {
	var value T

	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return value, fmt.Errorf("%w: failed to read body: %w", errBadRequest, err)
	}
	if len(body) == 0 {
		return value, nil
	}
	if err := json.Unmarshal(body, &value); err != nil {
		return value, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return value, nil
}

func parseMonth(r *http.Request) (domain.Month, error) {
	return domain.ParseMonth(r.PathValue("month"))
}

// refreshOptions bypass the cache and any shared in-flight request when the
// dashboard asks for fresh data
func refreshOptions(r *http.Request) []requestcoord.Option {
	refresh, err := strconv.ParseBool(r.URL.Query().Get("refresh"))
	if err != nil || !refresh {
		return nil
	}
	return []requestcoord.Option{
		requestcoord.WithoutCache(),
		requestcoord.WithSkipDeduplication(),
	}
}

// withReportingMeta tags error reports with the employee and payroll month the
// request is about
func withReportingMeta(r *http.Request) *http.Request {
	ctx := r.Context()

	employeeID := r.PathValue("employeeId")
	if employeeID == "" {
		employeeID = r.URL.Query().Get("employee_id")
	}
	if employeeID != "" {
		ctx = reporting.WithEmployee(ctx, employeeID)
	}
	if month, err := parseMonth(r); err == nil {
		ctx = reporting.WithPayrollMonth(ctx, month)
	}

	return r.WithContext(ctx)
}
