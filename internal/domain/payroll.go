package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayrollSettings struct {
	// Share of gross allocated to basic pay, in percent
	BasicPercent decimal.Decimal `json:"basic_percent"`
	// House rent allowance as a share of basic, in percent
	HRAPercent             decimal.Decimal `json:"hra_percent"`
	ConveyanceAllowance    Cents           `json:"conveyance_allowance"`
	PFEnabled              bool            `json:"pf_enabled"`
	ESIEnabled             bool            `json:"esi_enabled"`
	ProfessionalTaxEnabled bool            `json:"professional_tax_enabled"`
	TDSEnabled             bool            `json:"tds_enabled"`
	PayDay                 int             `json:"pay_day,omitempty"`
}

type AttendanceSummary struct {
	EmployeeID      string          `json:"employee_id"`
	Month           Month           `json:"month"`
	PresentDays     decimal.Decimal `json:"present_days"`
	PaidLeaveDays   decimal.Decimal `json:"paid_leave_days"`
	UnpaidLeaveDays decimal.Decimal `json:"unpaid_leave_days"`
	Holidays        decimal.Decimal `json:"holidays"`
	WeeklyOffs      decimal.Decimal `json:"weekly_offs"`
}

// PayableDays counts every day the employee is paid for.
func (a AttendanceSummary) PayableDays() decimal.Decimal {
	return a.PresentDays.Add(a.PaidLeaveDays).Add(a.Holidays).Add(a.WeeklyOffs)
}

type TaxRule struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Description   string          `json:"description,omitempty"`
	LowerBound    Cents           `json:"lower_bound"`
	UpperBound    *Cents          `json:"upper_bound,omitempty"`
	RatePercent   decimal.Decimal `json:"rate"`
	FixedAmount   Cents           `json:"fixed_amount"`
	EffectiveFrom string          `json:"effective_from,omitempty"`
}

type PayslipLine struct {
	Label string `json:"label"`
	// Full is the monthly amount before pro-rating; zero for deductions
	Full   Cents `json:"full"`
	Amount Cents `json:"amount"`
}

type Payslip struct {
	EmployeeID      string          `json:"employee_id"`
	EmployeeName    string          `json:"employee_name"`
	EmployeeCode    string          `json:"employee_code,omitempty"`
	Designation     string          `json:"designation,omitempty"`
	Department      string          `json:"department,omitempty"`
	Month           Month           `json:"month"`
	DaysInMonth     int             `json:"days_in_month"`
	PayableDays     decimal.Decimal `json:"payable_days"`
	Earnings        []PayslipLine   `json:"earnings"`
	Deductions      []PayslipLine   `json:"deductions"`
	GrossEarnings   Cents           `json:"gross_earnings"`
	TotalDeductions Cents           `json:"total_deductions"`
	NetPay          Cents           `json:"net_pay"`
	BankAccount     string          `json:"bank_account,omitempty"`
	BankName        string          `json:"bank_name,omitempty"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

type PayrollRun struct {
	ID            string `json:"id"`
	Month         Month  `json:"month"`
	Status        string `json:"status"`
	EmployeeCount int    `json:"employee_count"`
	TotalNetPay   Cents  `json:"total_net_pay"`
}
