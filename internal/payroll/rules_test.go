package payroll_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/payroll"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	t.Parallel()

	rules := payroll.DefaultRules()
	require.Equal(t, "12", rules.PFRatePercent.String())
	require.Equal(t, domain.Cents(1500000), rules.PFWageCeiling)
	require.Equal(t, "0.75", rules.ESIRatePercent.String())
	require.Equal(t, domain.Cents(2100000), rules.ESIThreshold)
	require.Len(t, rules.ProfessionalTaxSlabs, 3)
	require.Nil(t, rules.ProfessionalTaxSlabs[2].UpTo)
	require.Equal(t, domain.Cents(20000), rules.ProfessionalTaxSlabs[2].Amount)
	require.Len(t, rules.IncomeTaxSlabs, 7)
	require.Equal(t, domain.Cents(7500000), rules.StandardDeduction)
}

func TestParseRules(t *testing.T) {
	t.Parallel()

	valid := `
provident_fund:
  employee_rate_percent: "10"
  wage_ceiling: 0
esi:
  employee_rate_percent: 1
  gross_threshold: 25000
professional_tax:
  slabs:
    - amount: 150
income_tax:
  standard_deduction: 50000
  rebate_threshold: 0
  cess_percent: 0
  slabs:
    - rate_percent: 10
`
	rules, err := payroll.ParseRules([]byte(valid))
	require.NoError(t, err)
	require.Equal(t, "10", rules.PFRatePercent.String())
	require.Equal(t, domain.Cents(15000), rules.ProfessionalTaxSlabs[0].Amount)

	// A flat 10% without rebate or cess
	require.Equal(t, domain.Cents(100000), payroll.NewCalculator(rules).AnnualIncomeTax(1000000))

	invalid := map[string]string{
		"not yaml":          "provident_fund: [",
		"bad number":        "provident_fund:\n  employee_rate_percent: twelve\n",
		"rate over hundred": "provident_fund:\n  employee_rate_percent: 120\nincome_tax:\n  slabs:\n    - rate_percent: 0\n",
		"no income tax":     "provident_fund:\n  employee_rate_percent: 12\n",
		"closed last slab":  "income_tax:\n  slabs:\n    - up_to: 10\n      rate_percent: 0\n",
		"decreasing slabs":  "income_tax:\n  slabs:\n    - up_to: 10\n      rate_percent: 0\n    - up_to: 5\n      rate_percent: 0\n    - rate_percent: 1\n",
		"open middle slab":  "professional_tax:\n  slabs:\n    - amount: 1\n    - amount: 2\nincome_tax:\n  slabs:\n    - rate_percent: 1\n",
	}
	for name, data := range invalid {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := payroll.ParseRules([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoadRules(t *testing.T) {
	t.Parallel()

	rules, err := payroll.LoadRules("")
	require.NoError(t, err)
	require.Equal(t, payroll.DefaultRules(), rules)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("income_tax:\n  slabs:\n    - rate_percent: 5\n"), 0o600))
	rules, err = payroll.LoadRules(path)
	require.NoError(t, err)
	require.Equal(t, "5", rules.IncomeTaxSlabs[0].RatePercent.String())

	_, err = payroll.LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
