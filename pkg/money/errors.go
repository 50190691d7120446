package money

import "errors"

// Common money package errors
var (
	// ErrInvalidCurrency is returned when a currency code is not three
	// upper-case letters after normalization.
	ErrInvalidCurrency = errors.New("invalid currency code")
)
