package hrapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/logging"
	"github.com/Amund211/paydesk/internal/requestcoord"
	"github.com/Amund211/paydesk/internal/transport"
)

type Requester interface {
	Get(ctx context.Context, target string, opts ...requestcoord.Option) (transport.Response, error)
	Post(ctx context.Context, target string, body any, opts ...requestcoord.Option) (transport.Response, error)
	Put(ctx context.Context, target string, body any, opts ...requestcoord.Option) (transport.Response, error)
	Delete(ctx context.Context, target string, opts ...requestcoord.Option) (transport.Response, error)
}

type CacheClearer interface {
	ClearCache(ctx context.Context, targets ...string)
}

const (
	assetsTarget          = "/assets"
	advancesTarget        = "/advances"
	employeesTarget       = "/employees"
	payrollSettingsTarget = "/payroll-settings"
	attendanceTarget      = "/attendance"
	taxRulesTarget        = "/tax-rules"
	payslipsTarget        = "/payslips"
	generatePayslipTarget = "/payslips/generate"
	payrollRunTarget      = "/payroll/run"
)

// Client is a typed client for the HR backend. Reads go through the request
// coordinator and mutations invalidate the cached reads they affect.
type Client struct {
	requester Requester
	cache     CacheClearer
}

func NewClient(requester Requester, cache CacheClearer) *Client {
	return &Client{
		requester: requester,
		cache:     cache,
	}
}

func bankDetailsTarget(employeeID string) string {
	return fmt.Sprintf("%s/%s/bank-details", employeesTarget, url.PathEscape(employeeID))
}

func assetTarget(assetID string) string {
	return fmt.Sprintf("%s/%s", assetsTarget, url.PathEscape(assetID))
}

// mapError translates backend replies into domain errors
func mapError(err error) error {
	var transportErr *transport.Error
	if !errors.As(err, &transportErr) || transportErr.Err != nil {
		return err
	}

	switch transportErr.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		// The body usually carries the reason
		if _, bodyErr := unwrap(transportErr.Body); errors.Is(bodyErr, domain.ErrBackendRejected) {
			return fmt.Errorf("%w (status %d)", bodyErr, transportErr.StatusCode)
		}
		return fmt.Errorf("%w: %w", domain.ErrBackendRejected, err)
	}
	return err
}

func get[T any](ctx context.Context, c *Client, target string, opts []requestcoord.Option) (T, error) {
	var zero T
	resp, err := c.requester.Get(ctx, target, opts...)
	if err != nil {
		return zero, mapError(err)
	}

	result, err := decode[T](resp.Body)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", target, err)
	}
	return result, nil
}

func getList[T any](ctx context.Context, c *Client, target string, opts []requestcoord.Option) ([]T, error) {
	resp, err := c.requester.Get(ctx, target, opts...)
	if err != nil {
		return nil, mapError(err)
	}

	result, err := decodeList[T](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target, err)
	}
	return result, nil
}

// decodeMutation decodes the reply to a mutation. Backends may reply with an
// empty body, in which case fallback is returned.
func decodeMutation[T any](target string, resp transport.Response, fallback T) (T, error) {
	if len(resp.Body) == 0 || resp.StatusCode == http.StatusNoContent {
		return fallback, nil
	}
	result, err := decode[T](resp.Body)
	if errors.Is(err, errNoPayload) {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", target, err)
	}
	return result, nil
}

func (c *Client) invalidate(ctx context.Context, targets ...string) {
	c.cache.ClearCache(ctx, targets...)
	logging.FromContext(ctx).DebugContext(ctx, "Invalidated cached reads", "targets", targets)
}

type AssetQuery struct {
	Search string
	Page   int
}

func (q AssetQuery) params() url.Values {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	return params
}

func (c *Client) ListAssets(ctx context.Context, query AssetQuery, opts ...requestcoord.Option) ([]domain.Asset, error) {
	opts = append(opts, requestcoord.WithParams(query.params()))
	return getList[domain.Asset](ctx, c, assetsTarget, opts)
}

func (c *Client) CreateAsset(ctx context.Context, asset domain.Asset) (domain.Asset, error) {
	resp, err := c.requester.Post(ctx, assetsTarget, asset)
	if err != nil {
		return domain.Asset{}, mapError(err)
	}
	c.invalidate(ctx, assetsTarget)

	return decodeMutation(assetsTarget, resp, asset)
}

func (c *Client) UpdateAsset(ctx context.Context, assetID string, asset domain.Asset) (domain.Asset, error) {
	target := assetTarget(assetID)
	resp, err := c.requester.Put(ctx, target, asset)
	if err != nil {
		return domain.Asset{}, mapError(err)
	}
	c.invalidate(ctx, assetsTarget)

	asset.ID = assetID
	return decodeMutation(target, resp, asset)
}

func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	_, err := c.requester.Delete(ctx, assetTarget(assetID))
	if err != nil {
		return mapError(err)
	}
	c.invalidate(ctx, assetsTarget)
	return nil
}

func (c *Client) GetBankDetails(ctx context.Context, employeeID string, opts ...requestcoord.Option) (domain.BankDetails, error) {
	details, err := get[domain.BankDetails](ctx, c, bankDetailsTarget(employeeID), opts)
	if err != nil {
		return domain.BankDetails{}, err
	}
	if details.EmployeeID == "" {
		details.EmployeeID = employeeID
	}
	return details, nil
}

func (c *Client) UpdateBankDetails(ctx context.Context, employeeID string, details domain.BankDetails) (domain.BankDetails, error) {
	target := bankDetailsTarget(employeeID)
	details.EmployeeID = employeeID

	resp, err := c.requester.Put(ctx, target, details)
	if err != nil {
		return domain.BankDetails{}, mapError(err)
	}
	c.invalidate(ctx, target)

	return decodeMutation(target, resp, details)
}

func (c *Client) ListAdvances(ctx context.Context, employeeID string, opts ...requestcoord.Option) ([]domain.Advance, error) {
	if employeeID != "" {
		opts = append(opts, requestcoord.WithParams(url.Values{"employee_id": {employeeID}}))
	}
	return getList[domain.Advance](ctx, c, advancesTarget, opts)
}

func (c *Client) CreateAdvance(ctx context.Context, advance domain.Advance) (domain.Advance, error) {
	if advance.Amount <= 0 {
		return domain.Advance{}, fmt.Errorf("%w: advance amount must be positive", domain.ErrInvalidAmount)
	}
	if advance.MonthlyInstallment < 0 || advance.MonthlyInstallment > advance.Amount {
		return domain.Advance{}, fmt.Errorf("%w: installment must be between 0 and the advance amount", domain.ErrInvalidAmount)
	}

	resp, err := c.requester.Post(ctx, advancesTarget, advance)
	if err != nil {
		return domain.Advance{}, mapError(err)
	}
	c.invalidate(ctx, advancesTarget)

	return decodeMutation(advancesTarget, resp, advance)
}

func (c *Client) ListEmployees(ctx context.Context, search string, opts ...requestcoord.Option) ([]domain.Employee, error) {
	if search != "" {
		opts = append(opts, requestcoord.WithParams(url.Values{"search": {search}}))
	}
	return getList[domain.Employee](ctx, c, employeesTarget, opts)
}

func (c *Client) GetPayrollSettings(ctx context.Context, opts ...requestcoord.Option) (domain.PayrollSettings, error) {
	return get[domain.PayrollSettings](ctx, c, payrollSettingsTarget, opts)
}

func (c *Client) UpdatePayrollSettings(ctx context.Context, settings domain.PayrollSettings) (domain.PayrollSettings, error) {
	resp, err := c.requester.Put(ctx, payrollSettingsTarget, settings)
	if err != nil {
		return domain.PayrollSettings{}, mapError(err)
	}
	c.invalidate(ctx, payrollSettingsTarget)

	return decodeMutation(payrollSettingsTarget, resp, settings)
}

func (c *Client) ListAttendance(ctx context.Context, month domain.Month, opts ...requestcoord.Option) ([]domain.AttendanceSummary, error) {
	opts = append(opts, requestcoord.WithParams(url.Values{"month": {month.String()}}))
	return getList[domain.AttendanceSummary](ctx, c, attendanceTarget, opts)
}

func (c *Client) ListTaxRules(ctx context.Context, opts ...requestcoord.Option) ([]domain.TaxRule, error) {
	return getList[domain.TaxRule](ctx, c, taxRulesTarget, opts)
}

type generatePayslipsRequest struct {
	Month       domain.Month `json:"month"`
	EmployeeIDs []string     `json:"employee_ids,omitempty"`
}

// GeneratePayslips asks the backend to generate payslips for the month. No
// employee IDs means every employee.
func (c *Client) GeneratePayslips(ctx context.Context, month domain.Month, employeeIDs []string) ([]domain.Payslip, error) {
	resp, err := c.requester.Post(ctx, generatePayslipTarget, generatePayslipsRequest{
		Month:       month,
		EmployeeIDs: employeeIDs,
	})
	if err != nil {
		return nil, mapError(err)
	}
	c.invalidate(ctx, payslipsTarget)

	if len(resp.Body) == 0 {
		return []domain.Payslip{}, nil
	}
	payslips, err := decodeList[domain.Payslip](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", generatePayslipTarget, err)
	}
	return payslips, nil
}

func (c *Client) ListPayslips(ctx context.Context, employeeID string, month domain.Month, opts ...requestcoord.Option) ([]domain.Payslip, error) {
	params := url.Values{}
	if employeeID != "" {
		params.Set("employee_id", employeeID)
	}
	if !month.IsZero() {
		params.Set("month", month.String())
	}
	opts = append(opts, requestcoord.WithParams(params))
	return getList[domain.Payslip](ctx, c, payslipsTarget, opts)
}

type runPayrollRequest struct {
	Month domain.Month `json:"month"`
}

func (c *Client) RunPayroll(ctx context.Context, month domain.Month) (domain.PayrollRun, error) {
	resp, err := c.requester.Post(ctx, payrollRunTarget, runPayrollRequest{Month: month})
	if err != nil {
		return domain.PayrollRun{}, mapError(err)
	}
	c.invalidate(ctx, payslipsTarget, advancesTarget)

	return decodeMutation(payrollRunTarget, resp, domain.PayrollRun{Month: month, Status: "submitted"})
}
