// Package money holds the currency code value type shared by the exchange
// packages.
//
// Invariants:
//   - A valid Code is exactly three upper-case ASCII letters (ISO 4217 shape).
//   - Codes entering the system from strings go through ParseCode, which
//     trims and upper-cases before validating.
package money

import (
	"fmt"
	"slices"
	"strings"
)

// Code represents a currency code (e.g., "USD", "EUR").
type Code string

// Common currency codes
const (
	USD Code = "USD" // US Dollar
	EUR Code = "EUR" // Euro
	GBP Code = "GBP" // British Pound
	JPY Code = "JPY" // Japanese Yen
	CAD Code = "CAD" // Canadian Dollar
	AUD Code = "AUD" // Australian Dollar
	CHF Code = "CHF" // Swiss Franc
	INR Code = "INR" // Indian Rupee
)

// ParseCode normalizes s and returns it as a Code.
func ParseCode(s string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	return c, nil
}

// MustParseCode is like ParseCode but panics on error. Intended for
// constants and tests.
func MustParseCode(s string) Code {
	c, err := ParseCode(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCodes parses every element of ss. Empty elements are skipped so a
// trailing comma in a list is harmless.
func ParseCodes(ss []string) ([]Code, error) {
	codes := make([]Code, 0, len(ss))
	for _, s := range ss {
		if strings.TrimSpace(s) == "" {
			continue
		}
		c, err := ParseCode(s)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, nil
}

// IsValid checks if the currency code is valid
func (c Code) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	return c[0] >= 'A' && c[0] <= 'Z' &&
		c[1] >= 'A' && c[1] <= 'Z' &&
		c[2] >= 'A' && c[2] <= 'Z'
}

// String returns the string representation of the currency code.
func (c Code) String() string {
	return string(c)
}

// SortedUnique returns the codes de-duplicated and sorted.
func SortedUnique(codes []Code) []Code {
	out := slices.Clone(codes)
	slices.Sort(out)
	return slices.Compact(out)
}

// JoinCodes joins codes with sep.
func JoinCodes(codes []Code, sep string) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, sep)
}
