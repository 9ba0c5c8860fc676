package allocation

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kassa-fin/kassa/internal/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func shareFor(t *testing.T, shares []Share, ownerID int64) decimal.Decimal {
	t.Helper()
	for _, s := range shares {
		if s.OwnerID == ownerID {
			return s.Amount
		}
	}
	t.Fatalf("no share for owner %d", ownerID)
	return decimal.Zero
}

func TestSplitProportionalRemainderOnLargestWeight(t *testing.T) {
	shares, err := Split(dec("1300.00"), StrategyProportional, []Participant{
		{OwnerID: 1, Weight: dec("0.6")},
		{OwnerID: 2, Weight: dec("0.4")},
	})
	require.NoError(t, err)
	require.Len(t, shares, 2)

	// Owner 2 gets round(1300*0.4)=520.00; owner 1 absorbs the rest.
	assert.True(t, shareFor(t, shares, 2).Equal(dec("520.00")))
	assert.True(t, shareFor(t, shares, 1).Equal(dec("780.00")))
}

func TestSplitProportionalUnevenThirds(t *testing.T) {
	shares, err := Split(dec("100.00"), StrategyProportional, []Participant{
		{OwnerID: 1, Weight: dec("1")},
		{OwnerID: 2, Weight: dec("1")},
		{OwnerID: 3, Weight: dec("1")},
	})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s.Amount)
	}
	assert.True(t, sum.Equal(dec("100.00")))
	// Equal weights: lowest id bears the remainder.
	assert.True(t, shareFor(t, shares, 1).Equal(dec("33.34")))
	assert.True(t, shareFor(t, shares, 2).Equal(dec("33.33")))
	assert.True(t, shareFor(t, shares, 3).Equal(dec("33.33")))
}

func TestSplitFixedFee(t *testing.T) {
	shares, err := Split(dec("90.00"), StrategyFixedFee, []Participant{
		{OwnerID: 5, Weight: dec("1")},
		{OwnerID: 7, Weight: dec("1")},
		{OwnerID: 9, Weight: dec("1")},
	})
	require.NoError(t, err)
	for _, s := range shares {
		assert.True(t, s.Amount.Equal(dec("30.00")), "owner %d got %s", s.OwnerID, s.Amount)
	}
}

func TestSplitUsageBased(t *testing.T) {
	shares, err := Split(dec("200.00"), StrategyUsageBased, []Participant{
		{OwnerID: 1, Weight: dec("30")},
		{OwnerID: 2, Weight: dec("10")},
	})
	require.NoError(t, err)
	assert.True(t, shareFor(t, shares, 1).Equal(dec("150.00")))
	assert.True(t, shareFor(t, shares, 2).Equal(dec("50.00")))
}

func TestSplitUsageBasedZeroConsumption(t *testing.T) {
	_, err := Split(dec("200.00"), StrategyUsageBased, []Participant{
		{OwnerID: 1, Weight: decimal.Zero},
		{OwnerID: 2, Weight: decimal.Zero},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestSplitNoneYieldsNoShares(t *testing.T) {
	shares, err := Split(dec("50.00"), StrategyNone, nil)
	require.NoError(t, err)
	assert.Nil(t, shares)
}

func TestSplitValidation(t *testing.T) {
	cases := map[string]struct {
		total        decimal.Decimal
		strategy     Strategy
		participants []Participant
	}{
		"unknown strategy": {dec("10.00"), Strategy("HALVES"), []Participant{{OwnerID: 1, Weight: dec("1")}}},
		"zero total":       {decimal.Zero, StrategyFixedFee, []Participant{{OwnerID: 1, Weight: dec("1")}}},
		"negative total":   {dec("-5.00"), StrategyFixedFee, []Participant{{OwnerID: 1, Weight: dec("1")}}},
		"over-scale total": {dec("10.001"), StrategyFixedFee, []Participant{{OwnerID: 1, Weight: dec("1")}}},
		"no participants":  {dec("10.00"), StrategyProportional, nil},
		"negative weight":  {dec("10.00"), StrategyProportional, []Participant{{OwnerID: 1, Weight: dec("-1")}}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Split(tc.total, tc.strategy, tc.participants)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrValidation))
		})
	}
}

func TestSplitSharesAlwaysSumToTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	strategies := []Strategy{StrategyProportional, StrategyFixedFee, StrategyUsageBased}

	for i := 0; i < 200; i++ {
		total := decimal.NewFromInt(rng.Int63n(1_000_000) + 1).Div(decimal.NewFromInt(100))
		n := rng.Intn(9) + 1
		participants := make([]Participant, 0, n)
		for j := 0; j < n; j++ {
			participants = append(participants, Participant{
				OwnerID: int64(j + 1),
				Weight:  decimal.NewFromInt(rng.Int63n(1000) + 1),
			})
		}
		strategy := strategies[rng.Intn(len(strategies))]

		shares, err := Split(total, strategy, participants)
		require.NoError(t, err)
		require.Len(t, shares, n)

		sum := decimal.Zero
		for _, s := range shares {
			sum = sum.Add(s.Amount)
			assert.LessOrEqual(t, int32(-2), s.Amount.Exponent())
		}
		require.True(t, sum.Equal(total), "strategy %s total %s got %s", strategy, total, sum)
	}
}
