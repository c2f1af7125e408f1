package assets

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
)

type fungibleAsset struct {
	layer *Layer
	asset assetdata.Fungible
}

func (a *fungibleAsset) GetBalance(ctx context.Context, user common.Address) (*big.Int, error) {
	return a.layer.ledger.ERC20BalanceOf(ctx, a.asset.Token, user)
}

func (a *fungibleAsset) SetBalance(ctx context.Context, user common.Address, desired *big.Int) error {
	return a.layer.ledger.ERC20SetBalance(ctx, a.asset.Token, user, desired)
}

func (a *fungibleAsset) GetAllowance(ctx context.Context, user common.Address) (*big.Int, error) {
	return a.layer.ledger.ERC20Allowance(ctx, a.asset.Token, user, a.layer.proxies.ERC20)
}

func (a *fungibleAsset) SetAllowance(ctx context.Context, user common.Address, desired *big.Int) error {
	return a.layer.ledger.ERC20Approve(ctx, a.asset.Token, user, a.layer.proxies.ERC20, desired)
}

func (a *fungibleAsset) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	pl, err := a.layer.proxyLedger()
	if err != nil {
		return err
	}
	return pl.ERC20TransferFrom(ctx, a.asset.Token, a.layer.proxies.ERC20, from, to, amount)
}
