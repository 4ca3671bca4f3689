package payroll

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/Amund211/paydesk/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidRules = errors.New("invalid statutory rules")

//go:embed rules.yaml
var defaultRulesYAML []byte

// yamlDecimal reads a YAML scalar, quoted or not, as an exact decimal
type yamlDecimal struct {
	decimal.Decimal
}

func (d *yamlDecimal) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	parsed, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
	}
	d.Decimal = parsed
	return nil
}

func (d yamlDecimal) cents() domain.Cents {
	return domain.CentsFromDecimal(d.Decimal)
}

type rulesFile struct {
	ProvidentFund struct {
		EmployeeRatePercent yamlDecimal `yaml:"employee_rate_percent"`
		WageCeiling         yamlDecimal `yaml:"wage_ceiling"`
	} `yaml:"provident_fund"`
	ESI struct {
		EmployeeRatePercent yamlDecimal `yaml:"employee_rate_percent"`
		GrossThreshold      yamlDecimal `yaml:"gross_threshold"`
	} `yaml:"esi"`
	ProfessionalTax struct {
		Slabs []struct {
			UpTo   *yamlDecimal `yaml:"up_to"`
			Amount yamlDecimal  `yaml:"amount"`
		} `yaml:"slabs"`
	} `yaml:"professional_tax"`
	IncomeTax struct {
		StandardDeduction yamlDecimal `yaml:"standard_deduction"`
		RebateThreshold   yamlDecimal `yaml:"rebate_threshold"`
		CessPercent       yamlDecimal `yaml:"cess_percent"`
		Slabs             []struct {
			UpTo        *yamlDecimal `yaml:"up_to"`
			RatePercent yamlDecimal  `yaml:"rate_percent"`
		} `yaml:"slabs"`
	} `yaml:"income_tax"`
}

type FixedSlab struct {
	// UpTo is the inclusive upper bound, nil for the last slab
	UpTo   *domain.Cents
	Amount domain.Cents
}

type RateSlab struct {
	UpTo        *domain.Cents
	RatePercent decimal.Decimal
}

type Rules struct {
	PFRatePercent  decimal.Decimal
	PFWageCeiling  domain.Cents
	ESIRatePercent decimal.Decimal
	ESIThreshold   domain.Cents

	ProfessionalTaxSlabs []FixedSlab

	StandardDeduction  domain.Cents
	TaxRebateThreshold domain.Cents
	CessPercent        decimal.Decimal
	IncomeTaxSlabs     []RateSlab
}

func DefaultRules() Rules {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Errorf("embedded rules are invalid: %w", err))
	}
	return rules
}

// LoadRules reads rules from path, or returns the defaults if path is empty
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (Rules, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Rules{}, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	rules := Rules{
		PFRatePercent:      file.ProvidentFund.EmployeeRatePercent.Decimal,
		PFWageCeiling:      file.ProvidentFund.WageCeiling.cents(),
		ESIRatePercent:     file.ESI.EmployeeRatePercent.Decimal,
		ESIThreshold:       file.ESI.GrossThreshold.cents(),
		StandardDeduction:  file.IncomeTax.StandardDeduction.cents(),
		TaxRebateThreshold: file.IncomeTax.RebateThreshold.cents(),
		CessPercent:        file.IncomeTax.CessPercent.Decimal,
	}

	for _, slab := range file.ProfessionalTax.Slabs {
		fixed := FixedSlab{Amount: slab.Amount.cents()}
		if slab.UpTo != nil {
			upTo := slab.UpTo.cents()
			fixed.UpTo = &upTo
		}
		rules.ProfessionalTaxSlabs = append(rules.ProfessionalTaxSlabs, fixed)
	}

	for _, slab := range file.IncomeTax.Slabs {
		rate := RateSlab{RatePercent: slab.RatePercent.Decimal}
		if slab.UpTo != nil {
			upTo := slab.UpTo.cents()
			rate.UpTo = &upTo
		}
		rules.IncomeTaxSlabs = append(rules.IncomeTaxSlabs, rate)
	}

	if err := rules.validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

func validPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(decimal.NewFromInt(100))
}

func (r Rules) validate() error {
	for name, p := range map[string]decimal.Decimal{
		"provident fund rate": r.PFRatePercent,
		"esi rate":            r.ESIRatePercent,
		"cess":                r.CessPercent,
	} {
		if !validPercent(p) {
			return fmt.Errorf("%w: %s must be between 0 and 100, got %s", ErrInvalidRules, name, p)
		}
	}

	if len(r.ProfessionalTaxSlabs) > 0 && r.ProfessionalTaxSlabs[len(r.ProfessionalTaxSlabs)-1].UpTo != nil {
		return fmt.Errorf("%w: last professional tax slab must be open ended", ErrInvalidRules)
	}
	var previous domain.Cents = -1
	for i, slab := range r.ProfessionalTaxSlabs {
		if slab.UpTo == nil && i != len(r.ProfessionalTaxSlabs)-1 {
			return fmt.Errorf("%w: only the last professional tax slab may be open ended", ErrInvalidRules)
		}
		if slab.UpTo != nil {
			if *slab.UpTo <= previous {
				return fmt.Errorf("%w: professional tax slabs must be increasing", ErrInvalidRules)
			}
			previous = *slab.UpTo
		}
	}

	if len(r.IncomeTaxSlabs) == 0 {
		return fmt.Errorf("%w: missing income tax slabs", ErrInvalidRules)
	}
	if r.IncomeTaxSlabs[len(r.IncomeTaxSlabs)-1].UpTo != nil {
		return fmt.Errorf("%w: last income tax slab must be open ended", ErrInvalidRules)
	}
	previous = -1
	for i, slab := range r.IncomeTaxSlabs {
		if !validPercent(slab.RatePercent) {
			return fmt.Errorf("%w: income tax rate must be between 0 and 100, got %s", ErrInvalidRules, slab.RatePercent)
		}
		if slab.UpTo == nil && i != len(r.IncomeTaxSlabs)-1 {
			return fmt.Errorf("%w: only the last income tax slab may be open ended", ErrInvalidRules)
		}
		if slab.UpTo != nil {
			if *slab.UpTo <= previous {
				return fmt.Errorf("%w: income tax slabs must be increasing", ErrInvalidRules)
			}
			previous = *slab.UpTo
		}
	}

	return nil
}
