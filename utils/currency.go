package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount with dot thousand separators,
// e.g. 1250000 -> "1.250.000 VND". Fractions are rounded away.
func FormatCurrency(amount decimal.Decimal) string {
	digits := amount.Round(0).Abs().String()

	var groups []string
	for i := len(digits); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{digits[start:i]}, groups...)
	}

	out := strings.Join(groups, ".") + " VND"
	if amount.Round(0).IsNegative() {
		out = "-" + out
	}
	return out
}
