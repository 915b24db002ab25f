package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ten     = decimal.NewFromInt(10)
	hundred = decimal.NewFromInt(100)
)

// ParseRate parses a copayment rate written either as a fraction ("0.1") or
// as a percentage ("10%"). The result must lie within [0, 1].
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("copayment rate is empty")
	}
	pct := strings.HasSuffix(s, "%")
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "%"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("copayment rate %q: %w", s, err)
	}
	if pct {
		d = d.Div(hundred)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("copayment rate %q out of range", s)
	}
	return d, nil
}

// RoundToTen rounds amount × rate to the nearest 10 yen, halves rounding up:
// round(amount × rate / 10) × 10.
func RoundToTen(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Div(ten).Round(0).Mul(ten).IntPart()
}

// RatePercent renders a rate as a whole percentage, e.g. 0.3 -> 30.
func RatePercent(rate decimal.Decimal) int64 {
	return rate.Mul(hundred).Round(0).IntPart()
}
