package ports

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/Amund211/paydesk/internal/app"
	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/hrapi"
	"github.com/Amund211/paydesk/internal/logging"
	"github.com/Amund211/paydesk/internal/payroll"
	"github.com/Amund211/paydesk/internal/reporting"
)

func MakePreviewPayrollHandler(clients ClientSource, previewPayroll app.PreviewPayroll) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusOK, func(r *http.Request, client *hrapi.Client) ([]domain.Payslip, error) {
		month, err := parseMonth(r)
		if err != nil {
			return nil, err
		}
		return previewPayroll(r.Context(), client, month, refreshOptions(r)...)
	})
}

func MakeRunPayrollHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusAccepted, func(r *http.Request, client *hrapi.Client) (domain.PayrollRun, error) {
		month, err := parseMonth(r)
		if err != nil {
			return domain.PayrollRun{}, err
		}
		ctx := r.Context()

		run, err := client.RunPayroll(ctx, month)
		if err != nil {
			return domain.PayrollRun{}, err
		}
		logging.FromContext(ctx).InfoContext(ctx, "Submitted payroll run", "month", month.String(), "status", run.Status)
		return run, nil
	})
}

type generatePayslipsRequest struct {
	Month       domain.Month `json:"month"`
	EmployeeIDs []string     `json:"employee_ids"`
}

func MakeGeneratePayslipsHandler(clients ClientSource) http.HandlerFunc {
	return makeClientHandler(clients, http.StatusCreated, func(r *http.Request, client *hrapi.Client) ([]domain.Payslip, error) {
		request, err := decodeBody[generatePayslipsRequest](r)
		if err != nil {
			return nil, err
		}
		if request.Month.IsZero() {
			return nil, fmt.Errorf("%w: month is required", domain.ErrInvalidMonth)
		}
		return client.GeneratePayslips(r.Context(), request.Month, request.EmployeeIDs)
	})
}

// MakeGetPayslipHandler serves the payslip as a printable HTML page, or as
// JSON with ?format=json
func MakeGetPayslipHandler(clients ClientSource, getPayslip app.GetPayslip) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := r.PathValue("employeeId")
		month, err := parseMonth(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		r = withReportingMeta(r)
		format := r.URL.Query().Get("format")
		r = r.WithContext(reporting.WithExtras(r.Context(), map[string]string{"format": format}))
		ctx := r.Context()

		client, release := clients.ClientFor(r)
		defer release()

		payslip, err := getPayslip(ctx, client, employeeID, month, refreshOptions(r)...)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if format == "json" {
			writeJSON(w, r, http.StatusOK, payslip)
			return
		}

		var page bytes.Buffer
		if err := payroll.RenderHTML(&page, payslip); err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to render payslip: %w", err))
			writeFailure(w, r, http.StatusInternalServerError, "failed to render payslip")
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(page.Bytes())
	}
}
