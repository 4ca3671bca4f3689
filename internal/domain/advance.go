package domain

type Advance struct {
	ID                 string `json:"id,omitempty"`
	EmployeeID         string `json:"employee_id"`
	Amount             Cents  `json:"amount"`
	RecoveredAmount    Cents  `json:"recovered_amount"`
	MonthlyInstallment Cents  `json:"monthly_installment"`
	Reason             string `json:"reason,omitempty"`
	IssuedOn           string `json:"issued_on,omitempty"`
	Status             string `json:"status,omitempty"`
}

func (a Advance) Outstanding() Cents {
	return max(a.Amount-a.RecoveredAmount, 0)
}

// NextRecovery is the amount to recover in the next payroll run.
// An advance without an installment plan is recovered in full.
func (a Advance) NextRecovery() Cents {
	outstanding := a.Outstanding()
	if a.MonthlyInstallment <= 0 {
		return outstanding
	}
	return min(a.MonthlyInstallment, outstanding)
}
