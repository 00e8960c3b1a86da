// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// FormatScaledAmount formats a base-unit amount as a decimal string with the
// given number of decimal places, trimming trailing fractional zeros.
// FormatScaledAmount(100000000, 8) returns "1".
func FormatScaledAmount(amount *uint256.Int, decimals uint8) string {
	if amount == nil || amount.IsZero() {
		return "0"
	}
	if decimals == 0 {
		return amount.Dec()
	}

	divisor := pow10(decimals)
	whole := new(uint256.Int).Div(amount, divisor)
	frac := new(uint256.Int).Mod(amount, divisor)

	if frac.IsZero() {
		return whole.Dec()
	}

	fracStr := frac.Dec()
	fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")

	return whole.Dec() + "." + fracStr
}

// ParseScaledAmount parses a decimal string into base units at the given
// precision, truncating (never rounding) any fractional digits beyond
// decimals. It accepts only ASCII digits and at most one '.', with no
// leading/trailing dot and no sign.
// ParseScaledAmount("1", 8) returns 100000000 (1 whole unit at 8 decimals).
func ParseScaledAmount(s string, decimals uint8) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount string")
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if strings.Contains(frac, ".") {
		return nil, fmt.Errorf("invalid amount %q: multiple decimal points", s)
	}
	if hasDot && frac == "" {
		return nil, fmt.Errorf("invalid amount %q: trailing decimal point", s)
	}
	if hasDot && whole == "" {
		return nil, fmt.Errorf("invalid amount %q: leading decimal point", s)
	}
	if whole == "" {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	if !isDigits(whole) || (hasDot && !isDigits(frac)) {
		return nil, fmt.Errorf("invalid amount %q: non-digit characters", s)
	}

	if len(frac) > int(decimals) {
		frac = frac[:decimals]
	} else {
		frac += strings.Repeat("0", int(decimals)-len(frac))
	}

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		combined = "0"
	}

	value, overflow := uint256.FromDecimal(combined)
	if overflow != nil {
		return nil, fmt.Errorf("amount overflow: %s", s)
	}

	return value, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func pow10(n uint8) *uint256.Int {
	result := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		result.Mul(result, ten)
	}
	return result
}
