package table

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMultiplier renders a payout multiplier with two decimals and a
// trailing ×. Non-finite multipliers render as "∞×".
func FormatMultiplier(m float64) string {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return "∞×"
	}
	return fmt.Sprintf("%.2f×", m)
}

// FormatAmount renders amount with thousands separators and between two
// and eight fraction digits.
func FormatAmount(amount decimal.Decimal) string {
	s := amount.Round(8).StringFixed(8)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	for len(frac) < 2 {
		frac += "0"
	}

	var b strings.Builder
	if neg && (strings.Trim(whole, "0") != "" || strings.Trim(frac, "0") != "") {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
