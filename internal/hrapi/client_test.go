package hrapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/hrapi"
	"github.com/Amund211/paydesk/internal/requestcoord"
	"github.com/Amund211/paydesk/internal/transport"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	target string
	body   any
	opts   int
}

type fakeRequester struct {
	t         *testing.T
	responses map[string]transport.Response
	err       error
	calls     []call
}

func (f *fakeRequester) respond(method, target string, body any, opts []requestcoord.Option) (transport.Response, error) {
	f.calls = append(f.calls, call{method: method, target: target, body: body, opts: len(opts)})
	if f.err != nil {
		return transport.Response{}, f.err
	}
	resp, ok := f.responses[method+" "+target]
	require.True(f.t, ok, "unexpected request %s %s", method, target)
	return resp, nil
}

func (f *fakeRequester) Get(ctx context.Context, target string, opts ...requestcoord.Option) (transport.Response, error) {
	return f.respond(http.MethodGet, target, nil, opts)
}

func (f *fakeRequester) Post(ctx context.Context, target string, body any, opts ...requestcoord.Option) (transport.Response, error) {
	return f.respond(http.MethodPost, target, body, opts)
}

func (f *fakeRequester) Put(ctx context.Context, target string, body any, opts ...requestcoord.Option) (transport.Response, error) {
	return f.respond(http.MethodPut, target, body, opts)
}

func (f *fakeRequester) Delete(ctx context.Context, target string, opts ...requestcoord.Option) (transport.Response, error) {
	return f.respond(http.MethodDelete, target, nil, opts)
}

type fakeClearer struct {
	cleared [][]string
}

func (f *fakeClearer) ClearCache(ctx context.Context, targets ...string) {
	f.cleared = append(f.cleared, targets)
}

func ok(body string) transport.Response {
	return transport.Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

func newClient(t *testing.T, responses map[string]transport.Response) (*hrapi.Client, *fakeRequester, *fakeClearer) {
	requester := &fakeRequester{t: t, responses: responses}
	clearer := &fakeClearer{}
	return hrapi.NewClient(requester, clearer), requester, clearer
}

func TestAssets(t *testing.T) {
	t.Parallel()

	t.Run("list", func(t *testing.T) {
		t.Parallel()

		client, requester, _ := newClient(t, map[string]transport.Response{
			"GET /assets": ok(`{"count":1,"results":[{"id":"A-1","name":"ThinkPad","category":"laptop","status":"assigned","assigned_to":"E-1","value":"85000.00"}]}`),
		})

		assets, err := client.ListAssets(t.Context(), hrapi.AssetQuery{Search: "think", Page: 2}, requestcoord.WithoutCache())
		require.NoError(t, err)
		require.Equal(t, []domain.Asset{{
			ID:         "A-1",
			Name:       "ThinkPad",
			Category:   "laptop",
			Status:     domain.AssetAssigned,
			AssignedTo: "E-1",
			Value:      8500000,
		}}, assets)
		// WithoutCache and WithParams
		require.Equal(t, 2, requester.calls[0].opts)
	})

	t.Run("create invalidates", func(t *testing.T) {
		t.Parallel()

		client, requester, clearer := newClient(t, map[string]transport.Response{
			"POST /assets": ok(`{"status":"success","data":{"id":"A-2","name":"Monitor","category":"display","status":"available","value":"12000.00"}}`),
		})

		created, err := client.CreateAsset(t.Context(), domain.Asset{Name: "Monitor", Category: "display", Status: domain.AssetAvailable, Value: 1200000})
		require.NoError(t, err)
		require.Equal(t, "A-2", created.ID)
		require.Equal(t, [][]string{{"/assets"}}, clearer.cleared)

		encoded, err := json.Marshal(requester.calls[0].body)
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"Monitor","category":"display","status":"available","value":12000.00}`, string(encoded))
	})

	t.Run("update with empty reply", func(t *testing.T) {
		t.Parallel()

		client, _, clearer := newClient(t, map[string]transport.Response{
			"PUT /assets/A%201": {StatusCode: http.StatusNoContent},
		})

		updated, err := client.UpdateAsset(t.Context(), "A 1", domain.Asset{Name: "Monitor", Status: domain.AssetRetired})
		require.NoError(t, err)
		require.Equal(t, "A 1", updated.ID)
		require.Equal(t, domain.AssetRetired, updated.Status)
		require.Equal(t, [][]string{{"/assets"}}, clearer.cleared)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		client, requester, clearer := newClient(t, map[string]transport.Response{
			"DELETE /assets/A-1": {StatusCode: http.StatusNoContent},
		})

		require.NoError(t, client.DeleteAsset(t.Context(), "A-1"))
		require.Equal(t, http.MethodDelete, requester.calls[0].method)
		require.Equal(t, [][]string{{"/assets"}}, clearer.cleared)
	})

	t.Run("failed mutation does not invalidate", func(t *testing.T) {
		t.Parallel()

		client, requester, clearer := newClient(t, nil)
		requester.err = requestcoord.ErrRequestCancelled

		require.ErrorIs(t, client.DeleteAsset(t.Context(), "A-1"), requestcoord.ErrRequestCancelled)
		require.Empty(t, clearer.cleared)
	})
}

func TestBankDetails(t *testing.T) {
	t.Parallel()

	t.Run("get", func(t *testing.T) {
		t.Parallel()

		client, _, _ := newClient(t, map[string]transport.Response{
			"GET /employees/E-1/bank-details": ok(`{"account_holder":"Priya K","bank_name":"HDFC","account_number":"001234567890","ifsc":"HDFC0000123"}`),
		})

		details, err := client.GetBankDetails(t.Context(), "E-1")
		require.NoError(t, err)
		require.Equal(t, "E-1", details.EmployeeID)
		require.Equal(t, "XXXXXXXX7890", details.MaskedAccountNumber())
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		client, requester, _ := newClient(t, nil)
		requester.err = &transport.Error{Method: http.MethodGet, Target: "/employees/E-9/bank-details", StatusCode: http.StatusNotFound}

		_, err := client.GetBankDetails(t.Context(), "E-9")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update invalidates the employee's details", func(t *testing.T) {
		t.Parallel()

		client, requester, clearer := newClient(t, map[string]transport.Response{
			"PUT /employees/E-1/bank-details": ok(`{"status":"success","message":"updated"}`),
		})

		updated, err := client.UpdateBankDetails(t.Context(), "E-1", domain.BankDetails{AccountNumber: "111122223333", IFSC: "SBIN0001"})
		require.NoError(t, err)
		require.Equal(t, "SBIN0001", updated.IFSC)
		require.Equal(t, "E-1", requester.calls[0].body.(domain.BankDetails).EmployeeID)
		require.Equal(t, [][]string{{"/employees/E-1/bank-details"}}, clearer.cleared)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		client, requester, clearer := newClient(t, nil)
		requester.err = &transport.Error{
			Method:     http.MethodPut,
			Target:     "/employees/E-1/bank-details",
			StatusCode: http.StatusBadRequest,
			Body:       []byte(`{"status":"error","message":"invalid IFSC code"}`),
		}

		_, err := client.UpdateBankDetails(t.Context(), "E-1", domain.BankDetails{IFSC: "nope"})
		require.ErrorIs(t, err, domain.ErrBackendRejected)
		require.ErrorContains(t, err, "invalid IFSC code")
		require.Empty(t, clearer.cleared)
	})
}

func TestAdvances(t *testing.T) {
	t.Parallel()

	t.Run("list", func(t *testing.T) {
		t.Parallel()

		client, _, _ := newClient(t, map[string]transport.Response{
			"GET /advances": ok(`[{"id":"ADV-1","employee_id":"E-1","amount":10000,"recovered_amount":2500,"monthly_installment":2500}]`),
		})

		advances, err := client.ListAdvances(t.Context(), "E-1")
		require.NoError(t, err)
		require.Len(t, advances, 1)
		require.Equal(t, domain.Cents(750000), advances[0].Outstanding())
	})

	t.Run("create validates amounts", func(t *testing.T) {
		t.Parallel()

		client, requester, _ := newClient(t, nil)

		_, err := client.CreateAdvance(t.Context(), domain.Advance{EmployeeID: "E-1", Amount: 0})
		require.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = client.CreateAdvance(t.Context(), domain.Advance{EmployeeID: "E-1", Amount: 100, MonthlyInstallment: 200})
		require.ErrorIs(t, err, domain.ErrInvalidAmount)

		require.Empty(t, requester.calls)
	})

	t.Run("create", func(t *testing.T) {
		t.Parallel()

		client, _, clearer := newClient(t, map[string]transport.Response{
			"POST /advances": ok(`{"id":"ADV-2","employee_id":"E-1","amount":5000,"monthly_installment":1000,"status":"active"}`),
		})

		advance, err := client.CreateAdvance(t.Context(), domain.Advance{EmployeeID: "E-1", Amount: 500000, MonthlyInstallment: 100000})
		require.NoError(t, err)
		require.Equal(t, "ADV-2", advance.ID)
		require.Equal(t, [][]string{{"/advances"}}, clearer.cleared)
	})
}

func TestPayroll(t *testing.T) {
	t.Parallel()

	march := domain.Month{Year: 2026, Month: 3}

	t.Run("settings", func(t *testing.T) {
		t.Parallel()

		client, _, _ := newClient(t, map[string]transport.Response{
			"GET /payroll-settings": ok(`{"status":"success","data":{"basic_percent":"40","hra_percent":"50","conveyance_allowance":"1600.00","pf_enabled":true}}`),
		})

		settings, err := client.GetPayrollSettings(t.Context())
		require.NoError(t, err)
		require.Equal(t, "40", settings.BasicPercent.String())
		require.Equal(t, domain.Cents(160000), settings.ConveyanceAllowance)
		require.True(t, settings.PFEnabled)
	})

	t.Run("attendance and tax rules", func(t *testing.T) {
		t.Parallel()

		client, _, _ := newClient(t, map[string]transport.Response{
			"GET /attendance": ok(`{"data":{"results":[{"employee_id":"E-1","month":"2026-03","present_days":"20","paid_leave_days":"1","holidays":"2","weekly_offs":"5"}]}}`),
			"GET /tax-rules":  ok(`[{"id":"T-1","name":"Professional tax","category":"professional_tax","lower_bound":"15000.00","rate":"0","fixed_amount":"200.00"}]`),
		})

		attendance, err := client.ListAttendance(t.Context(), march)
		require.NoError(t, err)
		require.Len(t, attendance, 1)
		require.Equal(t, "28", attendance[0].PayableDays().String())

		rules, err := client.ListTaxRules(t.Context())
		require.NoError(t, err)
		require.Equal(t, domain.Cents(20000), rules[0].FixedAmount)
		require.Nil(t, rules[0].UpperBound)
	})

	t.Run("run payroll", func(t *testing.T) {
		t.Parallel()

		client, requester, clearer := newClient(t, map[string]transport.Response{
			"POST /payroll/run": ok(`{"status":"success","data":{"id":"RUN-1","month":"2026-03","status":"processing","employee_count":12}}`),
		})

		run, err := client.RunPayroll(t.Context(), march)
		require.NoError(t, err)
		require.Equal(t, "RUN-1", run.ID)
		require.Equal(t, "processing", run.Status)
		require.Equal(t, [][]string{{"/payslips", "/advances"}}, clearer.cleared)

		encoded, err := json.Marshal(requester.calls[0].body)
		require.NoError(t, err)
		require.JSONEq(t, `{"month":"2026-03"}`, string(encoded))
	})

	t.Run("failed run is a payload, not a rejection", func(t *testing.T) {
		t.Parallel()

		client, _, _ := newClient(t, map[string]transport.Response{
			"POST /payroll/run": ok(`{"id":"RUN-2","month":"2026-03","status":"error","employee_count":0}`),
		})

		run, err := client.RunPayroll(t.Context(), march)
		require.NoError(t, err)
		require.Equal(t, "RUN-2", run.ID)
		require.Equal(t, "error", run.Status)
	})

	t.Run("generate and list payslips", func(t *testing.T) {
		t.Parallel()

		client, _, clearer := newClient(t, map[string]transport.Response{
			"POST /payslips/generate": ok(`{"status":"success","message":"generated 0 payslips"}`),
			"GET /payslips":           ok(`[{"employee_id":"E-1","employee_name":"Priya","month":"2026-03","net_pay":"41000.00"}]`),
		})

		// A message-only reply carries no payslips
		generated, err := client.GeneratePayslips(t.Context(), march, []string{"E-1"})
		require.NoError(t, err)
		require.Empty(t, generated)
		require.Equal(t, [][]string{{"/payslips"}}, clearer.cleared)

		payslips, err := client.ListPayslips(t.Context(), "E-1", march)
		require.NoError(t, err)
		require.Equal(t, domain.Cents(4100000), payslips[0].NetPay)
	})
}

func TestEmployees(t *testing.T) {
	t.Parallel()

	client, requester, _ := newClient(t, map[string]transport.Response{
		"GET /employees": ok(`[]`),
	})

	employees, err := client.ListEmployees(t.Context(), "pri")
	require.NoError(t, err)
	require.Empty(t, employees)
	require.Equal(t, 1, requester.calls[0].opts)

	t.Run("null data envelope", func(t *testing.T) {
		t.Parallel()

		client, _, _ := newClient(t, map[string]transport.Response{
			"GET /employees": ok(`{"status":"success","data":null,"message":"No employees"}`),
		})

		employees, err := client.ListEmployees(t.Context(), "")
		require.NoError(t, err)
		require.NotNil(t, employees)
		require.Empty(t, employees)
	})
}
