package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/subsy/fx/pkg/money"
)

func TestMissingRateError(t *testing.T) {
	err := error(&MissingRateError{From: "ZZZ", To: money.USD, Missing: "ZZZ"})

	assert.EqualError(t, err, "Missing exchange rate for conversion: ZZZ→USD (missing: ZZZ)")
	assert.ErrorIs(t, err, ErrRateNotFound)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), ErrRateNotFound)
}

func TestProviderError(t *testing.T) {
	err := &ProviderError{Provider: "subsy", Op: "rates", Err: ErrProviderUnavailable}

	assert.EqualError(t, err, "provider subsy rates: rate provider unavailable")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.True(t, IsProviderError(fmt.Errorf("outer: %w", err)))
	assert.False(t, IsProviderError(errors.New("plain")))

	noOp := &ProviderError{Provider: "stub", Err: ErrRemoteRejected}
	assert.EqualError(t, noOp, "provider stub: rate provider rejected request")
}
