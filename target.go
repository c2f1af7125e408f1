package fillsim

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assets"
	"github.com/kaifufi/exchange-fillsim-go/chain"
	"github.com/kaifufi/exchange-fillsim-go/fill"
	"github.com/kaifufi/exchange-fillsim-go/scenario"
	"github.com/kaifufi/exchange-fillsim-go/simulator"
)

// chainTarget fills orders on a deployed exchange and sets token state
// through the dummy token contracts
type chainTarget struct {
	caller *chain.ContractCaller
	domain *chain.EIP712Domain
	layer  *assets.Layer
}

func newChainTargetFactory(caller *chain.ContractCaller) scenario.TargetFactory {
	return func(ctx context.Context, fixture *scenario.Fixture) (scenario.Target, error) {
		for _, key := range fixture.Keys() {
			caller.AddAccount(key)
		}
		return &chainTarget{
			caller: caller,
			domain: fixture.Domain(),
			layer:  assets.NewLayer(caller, fixture.Proxies, fixture.BurnAddress),
		}, nil
	}
}

func (t *chainTarget) FillOrder(ctx context.Context, signed *chain.SignedOrder, taker common.Address, takerAssetFillAmount *big.Int) (*fill.Results, error) {
	results, err := t.caller.FillOrder(ctx, signed, taker, takerAssetFillAmount)
	if err != nil {
		return nil, classifyRevert(err, chain.OrderHash(t.domain, signed.Order))
	}
	return toFillResults(results), nil
}

func (t *chainTarget) GetFilledAmount(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	return t.caller.GetFilledAmount(ctx, orderHash)
}

func (t *chainTarget) Assets() *assets.Layer {
	return t.layer
}

// classifyRevert turns a decoded exchange revert into the failure the
// simulator reports. Other errors, such as RPC failures, pass through.
func classifyRevert(err error, orderHash common.Hash) error {
	var revert *chain.RevertError
	if !errors.As(err, &revert) {
		return err
	}
	return &simulator.FillError{
		Kind:      simulator.KindFromRevert(revert),
		OrderHash: orderHash,
		Err:       err,
	}
}

// toFillResults drops the protocol fee, which the simulator does not model
func toFillResults(r *chain.FillResults) *fill.Results {
	return &fill.Results{
		MakerAssetFilledAmount: r.MakerAssetFilledAmount,
		TakerAssetFilledAmount: r.TakerAssetFilledAmount,
		MakerFeePaid:           r.MakerFeePaid,
		TakerFeePaid:           r.TakerFeePaid,
	}
}
