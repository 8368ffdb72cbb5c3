package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a number the way a transcription/extraction layer hands it over:
// "1200", "1,200.50", "$1,200", "USD -40", " 3 ". Anything else is an error.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s != "" {
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, "$", "")
		s = strings.ReplaceAll(s, "USD", "")
		s = strings.ReplaceAll(s, "usd", "")
		s = strings.TrimSpace(s)
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	dots := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
			dots++
		default:
			return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
		}
	}
	if s == "" || s == "." || dots > 1 {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if neg {
		s = "-" + s
	}
	return decimal.NewFromString(s)
}

// AmountOr returns the parsed amount, or fallback when raw is empty or not numeric.
func AmountOr(raw string, fallback decimal.Decimal) decimal.Decimal {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	d, err := ParseAmount(raw)
	if err != nil {
		return fallback
	}
	return d
}
