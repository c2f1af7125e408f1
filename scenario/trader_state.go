package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
	"github.com/kaifufi/exchange-fillsim-go/assets"
	"github.com/kaifufi/exchange-fillsim-go/fill"
)

// ErrDegenerateScenario is returned when a state scenario has no meaning for
// the fill, such as a balance too low for a fill that needs nothing
var ErrDegenerateScenario = errors.New("degenerate scenario")

// Need is how much of one asset a trader must hold and allow the proxy to move
type Need struct {
	Balance   *big.Int
	Allowance *big.Int
}

func newNeed(amount *big.Int) Need {
	return Need{Balance: new(big.Int).Set(amount), Allowance: new(big.Int).Set(amount)}
}

// TraderNeeds is what one trader must provide for a fill. When the fee is paid
// in the trade asset it is folded into Asset and FeeMerged is set.
type TraderNeeds struct {
	Asset     Need
	Fee       Need
	FeeMerged bool
}

// Needs computes what maker and taker must provide for a fill of the
// requested amount of a fresh order
func Needs(built *BuiltOrder, requested *big.Int) (maker, taker TraderNeeds) {
	order := built.Order()
	results := fill.NewResults()
	if order.TakerAssetAmount != nil && order.TakerAssetAmount.Sign() > 0 && requested != nil {
		amount := fill.EffectiveFillAmount(requested, order.TakerAssetAmount, new(big.Int))
		if r, err := fill.Calculate(order, amount); err == nil {
			results = r
		}
	}

	maker = traderNeeds(
		built.MakerAsset, results.MakerAssetFilledAmount,
		built.MakerFeeAsset, results.MakerFeePaid,
		built.TakerAsset, results.TakerAssetFilledAmount,
	)
	taker = traderNeeds(
		built.TakerAsset, results.TakerAssetFilledAmount,
		built.TakerFeeAsset, results.TakerFeePaid,
		built.MakerAsset, results.MakerAssetFilledAmount,
	)
	return maker, taker
}

// traderNeeds folds a fee paid in the asset given away into its need, and
// reduces the balance needed for a fee paid in the asset received, which
// arrives before the fee is taken
func traderNeeds(given assetdata.Descriptor, givenAmount *big.Int, feeAsset assetdata.Descriptor, fee *big.Int, received assetdata.Descriptor, receivedAmount *big.Int) TraderNeeds {
	needs := TraderNeeds{Asset: newNeed(givenAmount), Fee: newNeed(fee)}
	switch {
	case assetdata.Equal(feeAsset, given):
		needs.Asset.Balance.Add(needs.Asset.Balance, fee)
		needs.Asset.Allowance.Add(needs.Asset.Allowance, fee)
		needs.FeeMerged = true
	case assetdata.Equal(feeAsset, received):
		needs.Fee.Balance.Sub(needs.Fee.Balance, receivedAmount)
		if needs.Fee.Balance.Sign() < 0 {
			needs.Fee.Balance.SetInt64(0)
		}
	}
	return needs
}

// TraderStateMutator sets a trader's balance and allowance of an asset
// relative to what a fill needs
type TraderStateMutator struct{}

// Apply sets user's balance and allowance of asset. Composite and
// semi-fungible assets are set leaf by leaf, each to the amount of that leaf
// the fill moves.
func (TraderStateMutator) Apply(ctx context.Context, layer *assets.Layer, user common.Address, asset assetdata.Descriptor, needed Need, balance BalanceScenario, allowance AllowanceScenario) error {
	for _, l := range leaves(asset, needed) {
		if err := applyLeaf(ctx, layer, user, l, balance, allowance); err != nil {
			return err
		}
	}
	return nil
}

type leaf struct {
	asset assetdata.Descriptor
	need  Need
}

func scaleNeed(n Need, factor *big.Int) Need {
	return Need{
		Balance:   new(big.Int).Mul(n.Balance, factor),
		Allowance: new(big.Int).Mul(n.Allowance, factor),
	}
}

func leaves(asset assetdata.Descriptor, need Need) []leaf {
	switch v := asset.(type) {
	case assetdata.SemiFungible:
		out := make([]leaf, 0, len(v.IDs))
		for i, id := range v.IDs {
			single := assetdata.SemiFungible{
				Token:        v.Token,
				IDs:          []*big.Int{id},
				Values:       []*big.Int{big.NewInt(1)},
				CallbackData: v.CallbackData,
			}
			out = append(out, leaf{asset: single, need: scaleNeed(need, v.Values[i])})
		}
		return out
	case assetdata.Composite:
		var out []leaf
		for i, child := range v.Children {
			out = append(out, leaves(child, scaleNeed(need, v.Weights[i]))...)
		}
		return out
	default:
		return []leaf{{asset: asset, need: need}}
	}
}

func applyLeaf(ctx context.Context, layer *assets.Layer, user common.Address, l leaf, balance BalanceScenario, allowance AllowanceScenario) error {
	balanceValue, err := balanceTarget(balance, l.need.Balance)
	if err != nil {
		return fmt.Errorf("%s balance of %s: %w", balance, l.asset, err)
	}
	if err := layer.SetBalance(ctx, user, l.asset, balanceValue); err != nil {
		return err
	}

	allowanceValue, err := allowanceTarget(allowance, l.need.Allowance)
	if err != nil {
		return fmt.Errorf("%s allowance of %s: %w", allowance, l.asset, err)
	}
	if _, ok := l.asset.(assetdata.NonFungible); ok {
		if allowanceValue, err = nonFungibleAllowance(ctx, layer, user, l.asset, allowanceValue); err != nil {
			return err
		}
	}
	return layer.SetAllowance(ctx, user, l.asset, allowanceValue)
}

func balanceTarget(s BalanceScenario, need *big.Int) (*big.Int, error) {
	switch s {
	case BalanceZero:
		return new(big.Int), nil
	case BalanceTooLow:
		if need.Sign() == 0 {
			return nil, ErrDegenerateScenario
		}
		return new(big.Int).Sub(need, big.NewInt(1)), nil
	case BalanceExact:
		return new(big.Int).Set(need), nil
	case BalanceHigher:
		return new(big.Int).Add(need, big.NewInt(1)), nil
	default:
		return nil, fmt.Errorf("unknown balance scenario %d", int(s))
	}
}

func allowanceTarget(s AllowanceScenario, need *big.Int) (*big.Int, error) {
	switch s {
	case AllowanceZero:
		return new(big.Int), nil
	case AllowanceTooLow:
		if need.Sign() == 0 {
			return nil, ErrDegenerateScenario
		}
		return new(big.Int).Sub(need, big.NewInt(1)), nil
	case AllowanceExact:
		return new(big.Int).Set(need), nil
	case AllowanceHigher:
		return new(big.Int).Add(need, big.NewInt(1)), nil
	case AllowanceUnlimited:
		return assets.Unlimited(), nil
	default:
		return nil, fmt.Errorf("unknown allowance scenario %d", int(s))
	}
}

// nonFungibleAllowance maps an allowance onto the values a single token
// accepts. Anything above one approves the whole collection, as does one when
// the user does not own the token and so cannot approve it alone.
func nonFungibleAllowance(ctx context.Context, layer *assets.Layer, user common.Address, asset assetdata.Descriptor, value *big.Int) (*big.Int, error) {
	if value.Sign() == 0 || assets.IsUnlimited(value) {
		return value, nil
	}
	if value.Cmp(big.NewInt(1)) > 0 {
		return assets.Unlimited(), nil
	}
	owned, err := layer.GetBalance(ctx, user, asset)
	if err != nil {
		return nil, err
	}
	if owned.Sign() == 0 {
		return assets.Unlimited(), nil
	}
	return value, nil
}
