package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kassa-fin/kassa/internal/shared"
)

func TestParse(t *testing.T) {
	d, err := Parse("1300.00")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("1300")))

	d, err = Parse("0.5")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("0.5")))

	_, err = Parse("12.345")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = Parse("not-a-number")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestParsePositive(t *testing.T) {
	_, err := ParsePositive("10.00")
	require.NoError(t, err)

	for _, s := range []string{"0", "0.00", "-3.50"} {
		_, err := ParsePositive(s)
		require.Error(t, err, "input %q", s)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	}
}

func TestRoundHalfUp(t *testing.T) {
	assert.True(t, Round(decimal.RequireFromString("1.005")).Equal(decimal.RequireFromString("1.01")))
	assert.True(t, Round(decimal.RequireFromString("1.004")).Equal(decimal.RequireFromString("1.00")))
	assert.True(t, Round(decimal.RequireFromString("2.675")).Equal(decimal.RequireFromString("2.68")))
}

func TestRequireScale(t *testing.T) {
	require.NoError(t, RequireScale(decimal.RequireFromString("9.99"), "amount"))
	err := RequireScale(decimal.RequireFromString("9.999"), "amount")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}
