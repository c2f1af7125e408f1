package assets

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
)

type semiFungibleAsset struct {
	layer *Layer
	asset assetdata.SemiFungible
}

// GetBalance is the smallest balance held across the descriptor's ids
func (a *semiFungibleAsset) GetBalance(ctx context.Context, user common.Address) (*big.Int, error) {
	var min *big.Int
	for _, id := range a.asset.IDs {
		balance, err := a.layer.ledger.ERC1155BalanceOf(ctx, a.asset.Token, user, id)
		if err != nil {
			return nil, err
		}
		if min == nil || balance.Cmp(min) < 0 {
			min = balance
		}
	}
	if min == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(min), nil
}

func (a *semiFungibleAsset) SetBalance(ctx context.Context, user common.Address, desired *big.Int) error {
	shares := distribute(desired, a.asset.Values)
	for i, id := range a.asset.IDs {
		var err error
		if assetdata.IsNonFungibleID(id) {
			err = a.setUniqueBalance(ctx, user, id, shares[i])
		} else {
			err = a.setFungibleBalance(ctx, user, id, shares[i])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *semiFungibleAsset) setFungibleBalance(ctx context.Context, user common.Address, id, desired *big.Int) error {
	l := a.layer.ledger
	current, err := l.ERC1155BalanceOf(ctx, a.asset.Token, user, id)
	if err != nil {
		return err
	}
	switch delta := new(big.Int).Sub(desired, current); delta.Sign() {
	case 1:
		return l.ERC1155Mint(ctx, a.asset.Token, user, id, delta)
	case -1:
		return l.ERC1155Burn(ctx, a.asset.Token, user, id, delta.Neg(delta))
	default:
		return nil
	}
}

func (a *semiFungibleAsset) setUniqueBalance(ctx context.Context, user common.Address, id, desired *big.Int) error {
	l := a.layer.ledger
	owner, err := l.ERC1155OwnerOf(ctx, a.asset.Token, id)
	if err != nil {
		return err
	}
	wantsToken := desired.Sign() > 0
	switch {
	case wantsToken && owner == (common.Address{}):
		return fmt.Errorf("%w: id %#x of %s", ErrCannotMintUniqueUnit, id, a.asset.Token.Hex())
	case wantsToken && owner != user:
		return l.ERC1155Transfer(ctx, a.asset.Token, owner, user, id, big.NewInt(1))
	case !wantsToken && owner == user:
		return l.ERC1155Transfer(ctx, a.asset.Token, user, a.layer.burnAddress, id, big.NewInt(1))
	default:
		return nil
	}
}

// GetAllowance is collection-wide: unlimited or nothing
func (a *semiFungibleAsset) GetAllowance(ctx context.Context, user common.Address) (*big.Int, error) {
	all, err := a.layer.ledger.ERC1155IsApprovedForAll(ctx, a.asset.Token, user, a.layer.proxies.ERC1155)
	if err != nil {
		return nil, err
	}
	if all {
		return Unlimited(), nil
	}
	return new(big.Int), nil
}

func (a *semiFungibleAsset) SetAllowance(ctx context.Context, user common.Address, desired *big.Int) error {
	return a.layer.ledger.ERC1155SetApprovalForAll(ctx, a.asset.Token, user, a.layer.proxies.ERC1155, desired.Sign() > 0)
}

func (a *semiFungibleAsset) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	pl, err := a.layer.proxyLedger()
	if err != nil {
		return err
	}
	for i, id := range a.asset.IDs {
		scaled := new(big.Int).Mul(a.asset.Values[i], amount)
		if scaled.Sign() == 0 {
			continue
		}
		if err := pl.ERC1155TransferFrom(ctx, a.asset.Token, a.layer.proxies.ERC1155, from, to, id, scaled); err != nil {
			return err
		}
	}
	return nil
}
