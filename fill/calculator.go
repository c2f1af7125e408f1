// Package fill computes how much of each asset and fee changes hands when an
// order is filled. All arithmetic is exact integer arithmetic.
package fill

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/kaifufi/exchange-fillsim-go/chain"
)

// ErrDivisionByZero is returned when a proportional amount has a zero denominator
var ErrDivisionByZero = errors.New("division by zero")

// Results is the outcome of one fill
type Results struct {
	MakerAssetFilledAmount *big.Int
	TakerAssetFilledAmount *big.Int
	MakerFeePaid           *big.Int
	TakerFeePaid           *big.Int
}

// NewResults returns all-zero results
func NewResults() *Results {
	return &Results{
		MakerAssetFilledAmount: new(big.Int),
		TakerAssetFilledAmount: new(big.Int),
		MakerFeePaid:           new(big.Int),
		TakerFeePaid:           new(big.Int),
	}
}

// Add accumulates other into r
func (r *Results) Add(other *Results) *Results {
	r.MakerAssetFilledAmount.Add(r.MakerAssetFilledAmount, other.MakerAssetFilledAmount)
	r.TakerAssetFilledAmount.Add(r.TakerAssetFilledAmount, other.TakerAssetFilledAmount)
	r.MakerFeePaid.Add(r.MakerFeePaid, other.MakerFeePaid)
	r.TakerFeePaid.Add(r.TakerFeePaid, other.TakerFeePaid)
	return r
}

// Equal reports whether both results move the same amounts
func (r *Results) Equal(other *Results) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.MakerAssetFilledAmount.Cmp(other.MakerAssetFilledAmount) == 0 &&
		r.TakerAssetFilledAmount.Cmp(other.TakerAssetFilledAmount) == 0 &&
		r.MakerFeePaid.Cmp(other.MakerFeePaid) == 0 &&
		r.TakerFeePaid.Cmp(other.TakerFeePaid) == 0
}

func (r *Results) String() string {
	return fmt.Sprintf("maker filled %s, taker filled %s, maker fee %s, taker fee %s",
		r.MakerAssetFilledAmount, r.TakerAssetFilledAmount, r.MakerFeePaid, r.TakerFeePaid)
}

// PartialAmountFloor returns floor(target * numerator / denominator)
func PartialAmountFloor(numerator, denominator, target *big.Int) (*big.Int, error) {
	if denominator.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	out := new(big.Int).Mul(target, numerator)
	return out.Quo(out, denominator), nil
}

// Remaining is the taker amount not yet filled, never negative
func Remaining(takerAssetAmount, alreadyFilled *big.Int) *big.Int {
	remaining := new(big.Int).Sub(takerAssetAmount, alreadyFilled)
	if remaining.Sign() < 0 {
		return remaining.SetInt64(0)
	}
	return remaining
}

// EffectiveFillAmount caps a requested fill at what is left of the order
func EffectiveFillAmount(requested, takerAssetAmount, alreadyFilled *big.Int) *big.Int {
	remaining := Remaining(takerAssetAmount, alreadyFilled)
	if requested.Cmp(remaining) < 0 {
		return new(big.Int).Set(requested)
	}
	return remaining
}

// Calculate computes the amounts moved when takerAssetFilledAmount of order is
// filled. The maker fee scales with the maker side, the taker fee with the
// taker side.
func Calculate(order *chain.Order, takerAssetFilledAmount *big.Int) (*Results, error) {
	makerAssetFilledAmount, err := PartialAmountFloor(takerAssetFilledAmount, order.TakerAssetAmount, order.MakerAssetAmount)
	if err != nil {
		return nil, fmt.Errorf("maker asset filled amount: %w", err)
	}
	makerFeePaid, err := PartialAmountFloor(makerAssetFilledAmount, order.MakerAssetAmount, order.MakerFee)
	if err != nil {
		return nil, fmt.Errorf("maker fee: %w", err)
	}
	takerFeePaid, err := PartialAmountFloor(takerAssetFilledAmount, order.TakerAssetAmount, order.TakerFee)
	if err != nil {
		return nil, fmt.Errorf("taker fee: %w", err)
	}
	return &Results{
		MakerAssetFilledAmount: makerAssetFilledAmount,
		TakerAssetFilledAmount: new(big.Int).Set(takerAssetFilledAmount),
		MakerFeePaid:           makerFeePaid,
		TakerFeePaid:           takerFeePaid,
	}, nil
}

// IsFillPriceValid reports whether the maker receives at least the order's
// price for what it gives up. Flooring the maker side never undercuts the
// maker, so this only fails for results not produced by Calculate.
func IsFillPriceValid(order *chain.Order, results *Results) bool {
	// taker filled / taker amount >= maker filled / maker amount
	lhs := new(big.Int).Mul(results.TakerAssetFilledAmount, order.MakerAssetAmount)
	rhs := new(big.Int).Mul(results.MakerAssetFilledAmount, order.TakerAssetAmount)
	return lhs.Cmp(rhs) >= 0
}
