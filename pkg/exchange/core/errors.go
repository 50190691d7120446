package core

import (
	"errors"
	"fmt"

	"github.com/subsy/fx/pkg/money"
)

// Common errors for exchange operations
var (
	// ErrInvalidRate indicates that an unusable exchange rate was found
	ErrInvalidRate = errors.New("invalid exchange rate")

	// ErrRateNotFound indicates that the requested rate was not found
	ErrRateNotFound = errors.New("exchange rate not found")

	// ErrProviderUnavailable indicates that the rate provider could not be reached
	ErrProviderUnavailable = errors.New("rate provider unavailable")

	// ErrRemoteRejected indicates that the rate provider answered with a
	// non-retryable failure
	ErrRemoteRejected = errors.New("rate provider rejected request")

	// ErrInvalidAmount indicates that an invalid amount was provided
	ErrInvalidAmount = errors.New("invalid amount")
)

// MissingRateError is returned when a rate table lacks a currency needed
// for a conversion.
type MissingRateError struct {
	From    money.Code
	To      money.Code
	Missing money.Code
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf(
		"Missing exchange rate for conversion: %s→%s (missing: %s)",
		e.From, e.To, e.Missing,
	)
}

// Is makes errors.Is(err, ErrRateNotFound) hold for a MissingRateError.
func (e *MissingRateError) Is(target error) bool {
	return target == ErrRateNotFound
}

// ProviderError represents an error from a rate provider
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Op == "" {
		return "provider " + e.Provider + ": " + e.Err.Error()
	}
	return "provider " + e.Provider + " " + e.Op + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError checks if an error is a ProviderError
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
