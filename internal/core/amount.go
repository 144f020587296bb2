package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered numeric string to a non-negative decimal.
//
// Both dot (10.50) and comma (10,50) decimal separators are accepted. An
// empty string parses as zero, matching the behaviour of a blank entry field.
// Negative values and anything that is not a plain number are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RoundPrice rounds a price term for presentation (4 fractional digits).
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// RoundMoney rounds a monetary total or volume for presentation (2 fractional digits).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParseAdjustment parses a price adjustment. It accepts the ParseAmount
// notation with an optional leading minus.
func ParseAdjustment(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = strings.TrimSpace(s[1:])
	}
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, newValidationError("adjustment", raw, ErrInvalidAmount)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}
