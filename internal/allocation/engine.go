// Package allocation divides expense totals among owners. Each strategy is a
// pure function; rounding remainders always land on the largest-weight owner
// (lowest owner id on ties) so shares sum to the total exactly.
package allocation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/money"
	"github.com/kassa-fin/kassa/internal/shared"
)

// Strategy enumerates expense allocation strategies.
type Strategy string

const (
	StrategyProportional Strategy = "PROPORTIONAL"
	StrategyFixedFee     Strategy = "FIXED_FEE"
	StrategyUsageBased   Strategy = "USAGE_BASED"
	StrategyNone         Strategy = "NONE"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyProportional, StrategyFixedFee, StrategyUsageBased, StrategyNone:
		return true
	default:
		return false
	}
}

// Participant pairs an owner with a weight. The weight's meaning depends on
// the strategy: ownership share for PROPORTIONAL, metered consumption for
// USAGE_BASED; FIXED_FEE ignores weights and divides equally.
type Participant struct {
	OwnerID int64
	Weight  decimal.Decimal
}

// Share is one owner's allocated portion of a total.
type Share struct {
	OwnerID int64
	Amount  decimal.Decimal
}

// Split divides total among participants according to the strategy.
// StrategyNone yields no shares. For every other strategy the returned
// shares sum to total exactly.
func Split(total decimal.Decimal, strategy Strategy, participants []Participant) ([]Share, error) {
	if !strategy.Valid() {
		return nil, shared.Validationf("unknown allocation strategy %q", strategy)
	}
	if strategy == StrategyNone {
		return nil, nil
	}
	if err := money.RequirePositive(total, "total"); err != nil {
		return nil, err
	}
	if err := money.RequireScale(total, "total"); err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, shared.Validationf("allocation requires at least one participant")
	}

	var shares []Share
	switch strategy {
	case StrategyFixedFee:
		shares = splitEqual(total, participants)
	case StrategyProportional, StrategyUsageBased:
		var err error
		shares, err = splitWeighted(total, strategy, participants)
		if err != nil {
			return nil, err
		}
	}

	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s.Amount)
	}
	if !sum.Equal(total) {
		return nil, fmt.Errorf("allocation: shares sum %s does not match total %s", sum, total)
	}
	return shares, nil
}

// splitEqual divides total equally; the remainder-bearing owner (lowest id,
// since all weights are equal) absorbs the rounding difference.
func splitEqual(total decimal.Decimal, participants []Participant) []Share {
	ordered := sortByID(participants)
	n := int64(len(ordered))
	even := money.Round(total.Div(decimal.NewFromInt(n)))

	shares := make([]Share, len(ordered))
	rest := total
	for i := len(ordered) - 1; i >= 1; i-- {
		shares[i] = Share{OwnerID: ordered[i].OwnerID, Amount: even}
		rest = rest.Sub(even)
	}
	shares[0] = Share{OwnerID: ordered[0].OwnerID, Amount: rest}
	return shares
}

// splitWeighted divides total proportionally to weights. Every owner except
// the remainder bearer gets round(total*w/denominator, 2); the bearer gets
// whatever is left, guaranteeing exact sum-to-total.
func splitWeighted(total decimal.Decimal, strategy Strategy, participants []Participant) ([]Share, error) {
	ordered := sortByID(participants)
	denominator := decimal.Zero
	for _, p := range ordered {
		if p.Weight.IsNegative() {
			return nil, shared.Validationf("owner %d has negative weight %s", p.OwnerID, p.Weight)
		}
		denominator = denominator.Add(p.Weight)
	}
	if denominator.IsZero() {
		if strategy == StrategyUsageBased {
			return nil, shared.Validationf("total consumption is zero")
		}
		return nil, shared.Validationf("total weight is zero")
	}

	bearer := remainderBearer(ordered)
	shares := make([]Share, len(ordered))
	rest := total
	for i, p := range ordered {
		if i == bearer {
			continue
		}
		amount := money.Round(total.Mul(p.Weight).Div(denominator))
		shares[i] = Share{OwnerID: p.OwnerID, Amount: amount}
		rest = rest.Sub(amount)
	}
	shares[bearer] = Share{OwnerID: ordered[bearer].OwnerID, Amount: rest}
	return shares, nil
}

// remainderBearer picks the index of the max-weight participant; ties go to
// the lowest owner id, which is the first occurrence in id order.
func remainderBearer(ordered []Participant) int {
	bearer := 0
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Weight.GreaterThan(ordered[bearer].Weight) {
			bearer = i
		}
	}
	return bearer
}

func sortByID(participants []Participant) []Participant {
	ordered := make([]Participant, len(participants))
	copy(ordered, participants)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].OwnerID < ordered[j].OwnerID })
	return ordered
}
