package payroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/paydesk/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPayableDays = errors.New("invalid payable days")
	ErrInvalidSettings    = errors.New("invalid payroll settings")
)

const (
	LabelBasic           = "Basic"
	LabelHRA             = "House rent allowance"
	LabelConveyance      = "Conveyance allowance"
	LabelSpecial         = "Special allowance"
	LabelProvidentFund   = "Provident fund"
	LabelESI             = "Employee state insurance"
	LabelProfessionalTax = "Professional tax"
	LabelIncomeTax       = "Income tax (TDS)"
	LabelAdvanceRecovery = "Advance recovery"
)

var hundred = decimal.NewFromInt(100)

type Input struct {
	Employee domain.Employee
	Month    domain.Month
	Settings domain.PayrollSettings
	// Attendance is nil when the employee has no attendance record, they are
	// then paid for the full month
	Attendance  *domain.AttendanceSummary
	Advances    []domain.Advance
	BankDetails *domain.BankDetails
	GeneratedAt time.Time
}

type Calculator struct {
	rules Rules
}

func NewCalculator(rules Rules) *Calculator {
	return &Calculator{rules: rules}
}

// percentOf returns amount * percent / 100, rounded half up to whole cents
func percentOf(amount domain.Cents, percent decimal.Decimal) domain.Cents {
	return domain.Cents(decimal.NewFromInt(int64(amount)).Mul(percent).Div(hundred).Round(0).IntPart())
}

// prorate returns amount * payableDays / daysInMonth, rounded half up to whole cents
func prorate(amount domain.Cents, payableDays decimal.Decimal, daysInMonth int) domain.Cents {
	return domain.Cents(
		decimal.NewFromInt(int64(amount)).
			Mul(payableDays).
			Div(decimal.NewFromInt(int64(daysInMonth))).
			Round(0).
			IntPart(),
	)
}

type components struct {
	basic      domain.Cents
	hra        domain.Cents
	conveyance domain.Cents
	special    domain.Cents
}

// allocate splits a monthly gross into salary components. Special allowance
// takes whatever remains, so the components always sum to gross.
func allocate(gross domain.Cents, settings domain.PayrollSettings) components {
	basic := min(percentOf(gross, settings.BasicPercent), gross)
	hra := min(percentOf(basic, settings.HRAPercent), gross-basic)
	conveyance := max(min(settings.ConveyanceAllowance, gross-basic-hra), 0)
	return components{
		basic:      basic,
		hra:        hra,
		conveyance: conveyance,
		special:    gross - basic - hra - conveyance,
	}
}

func validateSettings(settings domain.PayrollSettings) error {
	if !validPercent(settings.BasicPercent) {
		return fmt.Errorf("%w: basic percent must be between 0 and 100, got %s", ErrInvalidSettings, settings.BasicPercent)
	}
	if !validPercent(settings.HRAPercent) {
		return fmt.Errorf("%w: hra percent must be between 0 and 100, got %s", ErrInvalidSettings, settings.HRAPercent)
	}
	if settings.ConveyanceAllowance < 0 {
		return fmt.Errorf("%w: conveyance allowance must not be negative", ErrInvalidSettings)
	}
	return nil
}

func (c *Calculator) Compute(in Input) (domain.Payslip, error) {
	if in.Month.IsZero() {
		return domain.Payslip{}, fmt.Errorf("%w: month is required", domain.ErrInvalidMonth)
	}
	if in.Employee.MonthlyGross < 0 {
		return domain.Payslip{}, fmt.Errorf("%w: monthly gross must not be negative", domain.ErrInvalidAmount)
	}
	if err := validateSettings(in.Settings); err != nil {
		return domain.Payslip{}, err
	}

	daysInMonth := in.Month.DaysIn()
	payableDays := decimal.NewFromInt(int64(daysInMonth))
	if in.Attendance != nil {
		payableDays = in.Attendance.PayableDays()
	}
	if payableDays.IsNegative() || payableDays.GreaterThan(decimal.NewFromInt(int64(daysInMonth))) {
		return domain.Payslip{}, fmt.Errorf("%w: %s payable days in a %d day month", ErrInvalidPayableDays, payableDays, daysInMonth)
	}

	full := allocate(in.Employee.MonthlyGross, in.Settings)
	earned := components{
		basic:      prorate(full.basic, payableDays, daysInMonth),
		hra:        prorate(full.hra, payableDays, daysInMonth),
		conveyance: prorate(full.conveyance, payableDays, daysInMonth),
		special:    prorate(full.special, payableDays, daysInMonth),
	}

	earnings := []domain.PayslipLine{
		{Label: LabelBasic, Full: full.basic, Amount: earned.basic},
	}
	for _, line := range []domain.PayslipLine{
		{Label: LabelHRA, Full: full.hra, Amount: earned.hra},
		{Label: LabelConveyance, Full: full.conveyance, Amount: earned.conveyance},
		{Label: LabelSpecial, Full: full.special, Amount: earned.special},
	} {
		if line.Full != 0 {
			earnings = append(earnings, line)
		}
	}
	grossEarnings := earned.basic + earned.hra + earned.conveyance + earned.special

	d := deductions{available: grossEarnings}
	if in.Settings.PFEnabled {
		d.add(LabelProvidentFund, c.providentFund(earned.basic))
	}
	if in.Settings.ESIEnabled {
		d.add(LabelESI, c.esi(in.Employee.MonthlyGross, grossEarnings))
	}
	if in.Settings.ProfessionalTaxEnabled {
		d.add(LabelProfessionalTax, c.professionalTax(grossEarnings))
	}
	if in.Settings.TDSEnabled {
		d.add(LabelIncomeTax, c.monthlyIncomeTax(in.Employee.MonthlyGross))
	}
	var recovery domain.Cents
	for _, advance := range in.Advances {
		if advance.EmployeeID != "" && advance.EmployeeID != in.Employee.ID {
			continue
		}
		recovery += advance.NextRecovery()
	}
	d.add(LabelAdvanceRecovery, recovery)

	payslip := domain.Payslip{
		EmployeeID:      in.Employee.ID,
		EmployeeName:    in.Employee.Name,
		EmployeeCode:    in.Employee.Code,
		Designation:     in.Employee.Designation,
		Department:      in.Employee.Department,
		Month:           in.Month,
		DaysInMonth:     daysInMonth,
		PayableDays:     payableDays,
		Earnings:        earnings,
		Deductions:      d.lines,
		GrossEarnings:   grossEarnings,
		TotalDeductions: d.total,
		NetPay:          grossEarnings - d.total,
		GeneratedAt:     in.GeneratedAt,
	}
	if payslip.Deductions == nil {
		payslip.Deductions = []domain.PayslipLine{}
	}
	if in.BankDetails != nil {
		payslip.BankAccount = in.BankDetails.MaskedAccountNumber()
		payslip.BankName = in.BankDetails.BankName
	}

	return payslip, nil
}

// deductions caps every deduction at what is left of the gross, net pay never
// goes negative
type deductions struct {
	available domain.Cents
	total     domain.Cents
	lines     []domain.PayslipLine
}

func (d *deductions) add(label string, amount domain.Cents) {
	amount = min(amount, d.available)
	if amount <= 0 {
		return
	}
	d.available -= amount
	d.total += amount
	d.lines = append(d.lines, domain.PayslipLine{Label: label, Amount: amount})
}

func (c *Calculator) providentFund(earnedBasic domain.Cents) domain.Cents {
	wages := earnedBasic
	if c.rules.PFWageCeiling > 0 {
		wages = min(wages, c.rules.PFWageCeiling)
	}
	return percentOf(wages, c.rules.PFRatePercent)
}

// esi applies when the full monthly gross is within the threshold
func (c *Calculator) esi(monthlyGross domain.Cents, earnedGross domain.Cents) domain.Cents {
	if monthlyGross > c.rules.ESIThreshold {
		return 0
	}
	return percentOf(earnedGross, c.rules.ESIRatePercent)
}

func (c *Calculator) professionalTax(earnedGross domain.Cents) domain.Cents {
	for _, slab := range c.rules.ProfessionalTaxSlabs {
		if slab.UpTo == nil || earnedGross <= *slab.UpTo {
			return slab.Amount
		}
	}
	return 0
}

// AnnualIncomeTax is the tax on a taxable annual income, including cess
func (c *Calculator) AnnualIncomeTax(taxableIncome domain.Cents) domain.Cents {
	if taxableIncome <= 0 || taxableIncome <= c.rules.TaxRebateThreshold {
		return 0
	}

	var tax domain.Cents
	var lower domain.Cents
	for _, slab := range c.rules.IncomeTaxSlabs {
		upper := taxableIncome
		if slab.UpTo != nil {
			upper = min(*slab.UpTo, taxableIncome)
		}
		if upper > lower {
			tax += percentOf(upper-lower, slab.RatePercent)
		}
		if slab.UpTo == nil || taxableIncome <= *slab.UpTo {
			break
		}
		lower = *slab.UpTo
	}

	return tax + percentOf(tax, c.rules.CessPercent)
}

// monthlyIncomeTax projects the monthly gross over a year
func (c *Calculator) monthlyIncomeTax(monthlyGross domain.Cents) domain.Cents {
	taxable := monthlyGross*12 - c.rules.StandardDeduction
	annual := c.AnnualIncomeTax(taxable)
	return domain.Cents(decimal.NewFromInt(int64(annual)).Div(decimal.NewFromInt(12)).Round(0).IntPart())
}
