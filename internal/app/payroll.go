package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/logging"
	"github.com/Amund211/paydesk/internal/payroll"
	"github.com/Amund211/paydesk/internal/requestcoord"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// Max concurrent bank detail lookups for a single preview
const bankDetailsConcurrency = 8

type PayrollSource interface {
	ListEmployees(ctx context.Context, search string, opts ...requestcoord.Option) ([]domain.Employee, error)
	GetPayrollSettings(ctx context.Context, opts ...requestcoord.Option) (domain.PayrollSettings, error)
	ListAttendance(ctx context.Context, month domain.Month, opts ...requestcoord.Option) ([]domain.AttendanceSummary, error)
	ListAdvances(ctx context.Context, employeeID string, opts ...requestcoord.Option) ([]domain.Advance, error)
	GetBankDetails(ctx context.Context, employeeID string, opts ...requestcoord.Option) (domain.BankDetails, error)
}

type PayslipSource interface {
	PayrollSource
	ListPayslips(ctx context.Context, employeeID string, month domain.Month, opts ...requestcoord.Option) ([]domain.Payslip, error)
}

// PreviewPayroll computes the payslips of every employee for the month without
// submitting anything to the backend
type PreviewPayroll func(ctx context.Context, source PayrollSource, month domain.Month, opts ...requestcoord.Option) ([]domain.Payslip, error)

// GetPayslip returns the payslip the backend generated for the employee, or a
// locally computed one if none has been generated yet
type GetPayslip func(ctx context.Context, source PayslipSource, employeeID string, month domain.Month, opts ...requestcoord.Option) (domain.Payslip, error)

type payrollData struct {
	employees  []domain.Employee
	settings   domain.PayrollSettings
	attendance map[string]domain.AttendanceSummary
	advances   map[string][]domain.Advance
}

func fetchPayrollData(ctx context.Context, source PayrollSource, month domain.Month, opts []requestcoord.Option) (payrollData, error) {
	var (
		data       payrollData
		attendance []domain.AttendanceSummary
		advances   []domain.Advance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		employees, err := source.ListEmployees(gctx, "", opts...)
		if err != nil {
			return fmt.Errorf("failed to list employees: %w", err)
		}
		data.employees = employees
		return nil
	})
	g.Go(func() error {
		settings, err := source.GetPayrollSettings(gctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to get payroll settings: %w", err)
		}
		data.settings = settings
		return nil
	})
	g.Go(func() error {
		summaries, err := source.ListAttendance(gctx, month, opts...)
		if err != nil {
			return fmt.Errorf("failed to list attendance: %w", err)
		}
		attendance = summaries
		return nil
	})
	g.Go(func() error {
		list, err := source.ListAdvances(gctx, "", opts...)
		if err != nil {
			return fmt.Errorf("failed to list advances: %w", err)
		}
		advances = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return payrollData{}, err
	}

	data.attendance = make(map[string]domain.AttendanceSummary, len(attendance))
	for _, summary := range attendance {
		if !summary.Month.IsZero() && summary.Month != month {
			continue
		}
		data.attendance[summary.EmployeeID] = summary
	}
	data.advances = make(map[string][]domain.Advance)
	for _, advance := range advances {
		data.advances[advance.EmployeeID] = append(data.advances[advance.EmployeeID], advance)
	}

	return data, nil
}

// Missing bank details do not block a payslip, the account is left blank
func fetchBankDetails(ctx context.Context, source PayrollSource, employeeID string, opts []requestcoord.Option) (*domain.BankDetails, error) {
	details, err := source.GetBankDetails(ctx, employeeID, opts...)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank details for %s: %w", employeeID, err)
	}
	return &details, nil
}

func buildInput(data payrollData, employee domain.Employee, month domain.Month, bankDetails *domain.BankDetails, now time.Time) payroll.Input {
	input := payroll.Input{
		Employee:    employee,
		Month:       month,
		Settings:    data.settings,
		Advances:    data.advances[employee.ID],
		BankDetails: bankDetails,
		GeneratedAt: now,
	}
	if summary, ok := data.attendance[employee.ID]; ok {
		input.Attendance = &summary
	}
	return input
}

func BuildPreviewPayroll(calculator *payroll.Calculator, nowFunc func() time.Time) PreviewPayroll {
	tracer := otel.Tracer("paydesk/app")

	return func(ctx context.Context, source PayrollSource, month domain.Month, opts ...requestcoord.Option) ([]domain.Payslip, error) {
		ctx, span := tracer.Start(ctx, "PreviewPayroll")
		defer span.End()

		if month.IsZero() {
			return nil, fmt.Errorf("%w: month is required", domain.ErrInvalidMonth)
		}

		data, err := fetchPayrollData(ctx, source, month, opts)
		if err != nil {
			return nil, err
		}

		bankDetails := make([]*domain.BankDetails, len(data.employees))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(bankDetailsConcurrency)
		for i, employee := range data.employees {
			g.Go(func() error {
				details, err := fetchBankDetails(gctx, source, employee.ID, opts)
				if err != nil {
					return err
				}
				bankDetails[i] = details
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		now := nowFunc()
		payslips := make([]domain.Payslip, 0, len(data.employees))
		for i, employee := range data.employees {
			payslip, err := calculator.Compute(buildInput(data, employee, month, bankDetails[i], now))
			if err != nil {
				return nil, fmt.Errorf("failed to compute payslip for %s: %w", employee.ID, err)
			}
			payslips = append(payslips, payslip)
		}

		logging.FromContext(ctx).InfoContext(ctx, "Computed payroll preview", "month", month.String(), "employees", len(payslips))

		return payslips, nil
	}
}

func BuildGetPayslip(calculator *payroll.Calculator, nowFunc func() time.Time) GetPayslip {
	tracer := otel.Tracer("paydesk/app")

	return func(ctx context.Context, source PayslipSource, employeeID string, month domain.Month, opts ...requestcoord.Option) (domain.Payslip, error) {
		ctx, span := tracer.Start(ctx, "GetPayslip")
		defer span.End()

		if month.IsZero() {
			return domain.Payslip{}, fmt.Errorf("%w: month is required", domain.ErrInvalidMonth)
		}

		generated, err := source.ListPayslips(ctx, employeeID, month, opts...)
		if err != nil {
			return domain.Payslip{}, fmt.Errorf("failed to list payslips: %w", err)
		}
		for _, payslip := range generated {
			if payslip.EmployeeID == employeeID && payslip.Month == month {
				return payslip, nil
			}
		}

		data, err := fetchPayrollData(ctx, source, month, opts)
		if err != nil {
			return domain.Payslip{}, err
		}

		index := slices.IndexFunc(data.employees, func(e domain.Employee) bool {
			return e.ID == employeeID
		})
		if index == -1 {
			return domain.Payslip{}, fmt.Errorf("%w: employee %s", domain.ErrNotFound, employeeID)
		}
		employee := data.employees[index]

		bankDetails, err := fetchBankDetails(ctx, source, employeeID, opts)
		if err != nil {
			return domain.Payslip{}, err
		}

		payslip, err := calculator.Compute(buildInput(data, employee, month, bankDetails, nowFunc()))
		if err != nil {
			return domain.Payslip{}, fmt.Errorf("failed to compute payslip for %s: %w", employeeID, err)
		}
		return payslip, nil
	}
}
