package domain

type Employee struct {
	ID           string `json:"id"`
	Code         string `json:"employee_code"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Department   string `json:"department,omitempty"`
	Designation  string `json:"designation,omitempty"`
	MonthlyGross Cents  `json:"monthly_gross"`
}

type BankDetails struct {
	EmployeeID    string `json:"employee_id"`
	AccountHolder string `json:"account_holder"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	Branch        string `json:"branch,omitempty"`
}

// MaskedAccountNumber keeps only the last four digits visible.
func (b BankDetails) MaskedAccountNumber() string {
	n := len(b.AccountNumber)
	if n <= 4 {
		return b.AccountNumber
	}
	masked := make([]byte, n)
	for i := range n - 4 {
		masked[i] = 'X'
	}
	copy(masked[n-4:], b.AccountNumber[n-4:])
	return string(masked)
}
