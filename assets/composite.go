package assets

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
)

type compositeAsset struct {
	layer *Layer
	asset assetdata.Composite
}

// GetBalance is the number of whole bundles the user holds, with each child's
// contribution rounded half up. Children with zero weight do not limit it; a
// bundle with no weighted child delivers nothing and reads as zero.
func (a *compositeAsset) GetBalance(ctx context.Context, user common.Address) (*big.Int, error) {
	var min *big.Int
	for i, child := range a.asset.Children {
		weight := a.asset.Weights[i]
		if weight.Sign() == 0 {
			continue
		}
		balance, err := a.layer.GetBalance(ctx, user, child)
		if err != nil {
			return nil, err
		}
		bundles := DivRoundHalfUp(balance, weight)
		if min == nil || bundles.Cmp(min) < 0 {
			min = bundles
		}
	}
	if min == nil {
		return new(big.Int), nil
	}
	return min, nil
}

func (a *compositeAsset) SetBalance(ctx context.Context, user common.Address, desired *big.Int) error {
	shares := distribute(desired, a.asset.Weights)
	for i, child := range a.asset.Children {
		if err := a.layer.SetBalance(ctx, user, child, shares[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a *compositeAsset) GetAllowance(ctx context.Context, user common.Address) (*big.Int, error) {
	var min *big.Int
	for _, child := range a.asset.Children {
		allowance, err := a.layer.GetAllowance(ctx, user, child)
		if err != nil {
			return nil, err
		}
		if min == nil || allowance.Cmp(min) < 0 {
			min = allowance
		}
	}
	if min == nil {
		return Unlimited(), nil
	}
	return min, nil
}

func (a *compositeAsset) SetAllowance(ctx context.Context, user common.Address, desired *big.Int) error {
	for _, child := range a.asset.Children {
		if err := a.layer.SetAllowance(ctx, user, child, desired); err != nil {
			return err
		}
	}
	return nil
}

func (a *compositeAsset) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	for i, child := range a.asset.Children {
		scaled := new(big.Int).Mul(a.asset.Weights[i], amount)
		if scaled.Sign() == 0 {
			continue
		}
		if err := a.layer.Transfer(ctx, from, to, child, scaled); err != nil {
			return err
		}
	}
	return nil
}

// DivRoundHalfUp returns a/b rounded to the nearest integer, halves up
func DivRoundHalfUp(a, b *big.Int) *big.Int {
	n := new(big.Int).Lsh(a, 1)
	n.Add(n, b)
	return n.Div(n, new(big.Int).Lsh(b, 1))
}

// distribute splits total across parts in proportion to ratios, flooring each
// share. When the ratios sum to zero every share is total times its ratio.
func distribute(total *big.Int, ratios []*big.Int) []*big.Int {
	sum := new(big.Int)
	for _, r := range ratios {
		sum.Add(sum, r)
	}
	shares := make([]*big.Int, len(ratios))
	for i, r := range ratios {
		share := new(big.Int).Mul(total, r)
		if sum.Sign() != 0 {
			share.Div(share, sum)
		}
		shares[i] = share
	}
	return shares
}
