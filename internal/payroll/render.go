package payroll

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/Amund211/paydesk/internal/domain"
)

//go:embed templates/payslip.html.tmpl
var templateFS embed.FS

var payslipTemplate = template.Must(
	template.New("payslip.html.tmpl").
		Funcs(template.FuncMap{
			"money":     formatMoney,
			"monthName": monthName,
			"inWords":   AmountInWords,
		}).
		ParseFS(templateFS, "templates/payslip.html.tmpl"),
)

func RenderHTML(w io.Writer, payslip domain.Payslip) error {
	if err := payslipTemplate.Execute(w, payslip); err != nil {
		return fmt.Errorf("failed to render payslip: %w", err)
	}
	return nil
}

func monthName(m domain.Month) string {
	return fmt.Sprintf("%s %d", m.Month.String(), m.Year)
}

// formatMoney groups digits the Indian way, e.g. 12,34,567.89
func formatMoney(c domain.Cents) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	rupees := int64(c) / 100
	paise := int64(c) % 100

	digits := fmt.Sprintf("%d", rupees)
	if len(digits) > 3 {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		groups = append([]string{head}, groups...)
		digits = strings.Join(groups, ",") + "," + tail
	}

	return fmt.Sprintf("%s%s.%02d", sign, digits, paise)
}

var ones = []string{
	"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

func belowHundred(n int64) string {
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + "-" + ones[n%10]
}

func belowThousand(n int64) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, ones[n/100]+" hundred")
		n %= 100
	}
	if n > 0 {
		parts = append(parts, belowHundred(n))
	}
	return strings.Join(parts, " ")
}

// AmountInWords spells out an amount using crore and lakh, e.g.
// "rupees one lakh twenty thousand and fifty paise"
func AmountInWords(c domain.Cents) string {
	if c < 0 {
		return "minus " + AmountInWords(-c)
	}

	rupees := int64(c) / 100
	paise := int64(c) % 100

	var parts []string
	for _, unit := range []struct {
		size int64
		name string
	}{
		{10_000_000, "crore"},
		{100_000, "lakh"},
		{1_000, "thousand"},
	} {
		if rupees >= unit.size {
			count := rupees / unit.size
			// Amounts past 99 crore repeat the crore unit
			if unit.size == 10_000_000 && count >= 1000 {
				parts = append(parts, strings.TrimPrefix(AmountInWords(domain.Cents(count*100)), "rupees ")+" crore")
			} else if count >= 100 {
				parts = append(parts, belowThousand(count)+" "+unit.name)
			} else {
				parts = append(parts, belowHundred(count)+" "+unit.name)
			}
			rupees %= unit.size
		}
	}
	if rupees > 0 {
		parts = append(parts, belowThousand(rupees))
	}

	words := "rupees zero"
	if len(parts) > 0 {
		words = "rupees " + strings.Join(parts, " ")
	}
	if paise > 0 {
		words += " and " + belowHundred(paise) + " paise"
	}
	return words
}
