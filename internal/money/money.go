// Package money represents US dollar amounts as integer cents. Amounts
// in this system never exceed a few hundred million dollars, so int64
// cents is exact and cheap to compare and sum.
package money

import (
	"fmt"
	"strings"
)

// Amount is a dollar amount in cents.
type Amount int64

// FromDollars converts whole dollars to an Amount.
func FromDollars(d int64) Amount {
	return Amount(d * 100)
}

// Dollars returns the amount as a float, for feature extraction only.
// Never compare or accumulate the float form.
func (a Amount) Dollars() float64 {
	return float64(a) / 100
}

// String formats as a plain decimal with two places, e.g. "1234.50".
func (a Amount) String() string {
	neg := ""
	v := int64(a)
	if v < 0 {
		neg = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", neg, v/100, v%100)
}

// Parse reads a non-negative decimal string like "1234.5" or "1234.56".
// The empty string parses to zero. Fractions beyond cents, negatives
// and malformed input are rejected.
func Parse(s string) (Amount, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if strings.Contains(frac, ".") {
		return 0, false
	}
	if whole == "" {
		whole = "0"
	}
	if hasDot && frac == "" {
		return 0, false
	}

	var cents int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return 0, false
		}
		cents = cents*10 + int64(r-'0')
		if cents > 1<<53 {
			return 0, false
		}
	}
	cents *= 100

	if hasDot {
		if len(frac) > 2 {
			return 0, false
		}
		for len(frac) < 2 {
			frac += "0"
		}
		for _, r := range frac {
			if r < '0' || r > '9' {
				return 0, false
			}
		}
		cents += int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	}
	return Amount(cents), true
}
