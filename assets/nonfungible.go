package assets

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
)

type nonFungibleAsset struct {
	layer *Layer
	asset assetdata.NonFungible
}

func (a *nonFungibleAsset) GetBalance(ctx context.Context, user common.Address) (*big.Int, error) {
	owner, err := a.layer.ledger.ERC721OwnerOf(ctx, a.asset.Token, a.asset.TokenID)
	if err != nil {
		return nil, err
	}
	if owner == user && user != (common.Address{}) {
		return big.NewInt(1), nil
	}
	return new(big.Int), nil
}

// SetBalance treats any desired amount of at least one as "owns the token"
func (a *nonFungibleAsset) SetBalance(ctx context.Context, user common.Address, desired *big.Int) error {
	l := a.layer.ledger
	owner, err := l.ERC721OwnerOf(ctx, a.asset.Token, a.asset.TokenID)
	if err != nil {
		return err
	}
	wantsToken := desired.Sign() > 0
	switch {
	case wantsToken && owner == (common.Address{}):
		return l.ERC721Mint(ctx, a.asset.Token, user, a.asset.TokenID)
	case wantsToken && owner != user:
		return l.ERC721Transfer(ctx, a.asset.Token, owner, user, a.asset.TokenID)
	case !wantsToken && owner == user:
		return l.ERC721Transfer(ctx, a.asset.Token, user, a.layer.burnAddress, a.asset.TokenID)
	default:
		return nil
	}
}

func (a *nonFungibleAsset) GetAllowance(ctx context.Context, user common.Address) (*big.Int, error) {
	l := a.layer.ledger
	proxy := a.layer.proxies.ERC721
	all, err := l.ERC721IsApprovedForAll(ctx, a.asset.Token, user, proxy)
	if err != nil {
		return nil, err
	}
	if all {
		return Unlimited(), nil
	}
	owner, err := l.ERC721OwnerOf(ctx, a.asset.Token, a.asset.TokenID)
	if err != nil {
		return nil, err
	}
	if owner != user {
		return new(big.Int), nil
	}
	approved, err := l.ERC721GetApproved(ctx, a.asset.Token, a.asset.TokenID)
	if err != nil {
		return nil, err
	}
	if approved == proxy {
		return big.NewInt(1), nil
	}
	return new(big.Int), nil
}

// SetAllowance accepts 0, 1 or unlimited. One approves the proxy for this
// token only, unlimited approves it for the whole collection.
func (a *nonFungibleAsset) SetAllowance(ctx context.Context, user common.Address, desired *big.Int) error {
	l := a.layer.ledger
	proxy := a.layer.proxies.ERC721
	switch {
	case IsUnlimited(desired):
		return l.ERC721SetApprovalForAll(ctx, a.asset.Token, user, proxy, true)
	case desired.Cmp(big.NewInt(1)) == 0:
		if err := a.revokeOperator(ctx, user); err != nil {
			return err
		}
		return l.ERC721Approve(ctx, a.asset.Token, user, proxy, a.asset.TokenID)
	case desired.Sign() == 0:
		if err := a.revokeOperator(ctx, user); err != nil {
			return err
		}
		owner, err := l.ERC721OwnerOf(ctx, a.asset.Token, a.asset.TokenID)
		if err != nil {
			return err
		}
		if owner != user {
			return nil
		}
		approved, err := l.ERC721GetApproved(ctx, a.asset.Token, a.asset.TokenID)
		if err != nil {
			return err
		}
		if approved != proxy {
			return nil
		}
		return l.ERC721Approve(ctx, a.asset.Token, user, common.Address{}, a.asset.TokenID)
	default:
		return &InvalidAllowanceError{Asset: a.asset, Value: new(big.Int).Set(desired)}
	}
}

func (a *nonFungibleAsset) revokeOperator(ctx context.Context, user common.Address) error {
	l := a.layer.ledger
	proxy := a.layer.proxies.ERC721
	all, err := l.ERC721IsApprovedForAll(ctx, a.asset.Token, user, proxy)
	if err != nil || !all {
		return err
	}
	return l.ERC721SetApprovalForAll(ctx, a.asset.Token, user, proxy, false)
}

func (a *nonFungibleAsset) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount.Cmp(big.NewInt(1)) != 0 {
		return fmt.Errorf("%w: %s can only move one unit, got %s", ErrInvalidAmount, a.asset, amount)
	}
	pl, err := a.layer.proxyLedger()
	if err != nil {
		return err
	}
	return pl.ERC721TransferFrom(ctx, a.asset.Token, a.layer.proxies.ERC721, from, to, a.asset.TokenID)
}
