// Package simulator predicts the outcome of filling an order: whether the
// exchange accepts it, what amounts move, and how balances change. Fills run
// against an in-memory ledger and either apply completely or not at all.
package simulator

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
	"github.com/kaifufi/exchange-fillsim-go/assets"
	"github.com/kaifufi/exchange-fillsim-go/chain"
	"github.com/kaifufi/exchange-fillsim-go/fill"
	"github.com/kaifufi/exchange-fillsim-go/ledger"
)

// Option configures a Simulator
type Option func(*Simulator)

// WithClock sets the time orders are checked for expiry against
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// WithLogger sets the logger fills are reported to
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// Simulator is a reference exchange over an in-memory ledger. It is not safe
// for concurrent use.
type Simulator struct {
	ledger      *ledger.Memory
	layer       *assets.Layer
	burnAddress common.Address
	domain      *chain.EIP712Domain
	filled      map[common.Hash]*big.Int
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a Simulator that owns l. Orders are identified by their hash
// under domain.
func New(l *ledger.Memory, domain *chain.EIP712Domain, proxies assets.Proxies, burnAddress common.Address, opts ...Option) *Simulator {
	s := &Simulator{
		ledger:      l,
		layer:       assets.NewLayer(l, proxies, burnAddress),
		burnAddress: burnAddress,
		domain:      domain,
		filled:      make(map[common.Hash]*big.Int),
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assets returns the asset layer over the simulator's ledger, used to set up
// and inspect trader state
func (s *Simulator) Assets() *assets.Layer {
	return s.layer
}

// Ledger returns the simulator's ledger
func (s *Simulator) Ledger() *ledger.Memory {
	return s.ledger
}

// OrderHash returns the identity of order under the simulator's domain
func (s *Simulator) OrderHash(order *chain.Order) common.Hash {
	return chain.OrderHash(s.domain, order)
}

// GetFilledAmount returns the taker amount already filled for an order
func (s *Simulator) GetFilledAmount(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	if filled, ok := s.filled[orderHash]; ok {
		return new(big.Int).Set(filled), nil
	}
	return new(big.Int), nil
}

// FillOrder fills a signed order. Signatures are not verified.
func (s *Simulator) FillOrder(ctx context.Context, signed *chain.SignedOrder, taker common.Address, takerAssetFillAmount *big.Int) (*fill.Results, error) {
	return s.SimulateFill(ctx, signed.Order, taker, takerAssetFillAmount)
}

// orderAssets are the decoded asset data of an order
type orderAssets struct {
	maker, taker, makerFee, takerFee assetdata.Descriptor
}

// SimulateFill validates a fill of order by taker, computes its results and
// applies its four transfers. On any failure the ledger is left untouched and
// the error is a *FillError.
func (s *Simulator) SimulateFill(ctx context.Context, order *chain.Order, taker common.Address, requested *big.Int) (*fill.Results, error) {
	hash := s.OrderHash(order)
	logger := s.logger.With("order_hash", hash.Hex(), "taker", taker.Hex())

	decoded, err := s.validate(order, hash, taker, requested)
	if err != nil {
		logger.Debug("fill rejected", "error", err)
		return nil, err
	}

	alreadyFilled := s.filledAmount(hash)
	fillAmount := fill.EffectiveFillAmount(requested, order.TakerAssetAmount, alreadyFilled)
	results, err := fill.Calculate(order, fillAmount)
	if err != nil {
		return nil, newFillError(KindUnknown, hash, err)
	}
	if !fill.IsFillPriceValid(order, results) {
		logger.Warn("fill price rounding guard tripped", "results", results.String())
		return nil, newFillError(KindInvalidFillPrice, hash, nil)
	}

	if err := s.settle(ctx, order, taker, decoded, results); err != nil {
		logger.Debug("fill reverted", "error", err)
		return nil, newFillError(KindTransferFailed, hash, err)
	}

	s.filled[hash] = new(big.Int).Add(alreadyFilled, results.TakerAssetFilledAmount)
	logger.Debug("fill settled",
		"maker_asset_filled", results.MakerAssetFilledAmount.String(),
		"taker_asset_filled", results.TakerAssetFilledAmount.String(),
		"maker_fee_paid", results.MakerFeePaid.String(),
		"taker_fee_paid", results.TakerFeePaid.String(),
	)
	return results, nil
}

func (s *Simulator) filledAmount(hash common.Hash) *big.Int {
	if filled, ok := s.filled[hash]; ok {
		return filled
	}
	return new(big.Int)
}

// validate applies the exchange's checks in order; the first failing check
// decides the error
func (s *Simulator) validate(order *chain.Order, hash common.Hash, taker common.Address, requested *big.Int) (*orderAssets, error) {
	if order.MakerAssetAmount == nil || order.MakerAssetAmount.Sign() == 0 {
		return nil, newFillError(KindInvalidMakerAmount, hash, nil)
	}

	if order.TakerAssetAmount == nil || fill.Remaining(order.TakerAssetAmount, s.filledAmount(hash)).Sign() == 0 {
		return nil, newFillError(KindOrderUnfillable, hash, nil)
	}
	if order.ExpirationTimeSeconds == nil || order.ExpirationTimeSeconds.Cmp(big.NewInt(s.now().Unix())) <= 0 {
		return nil, newFillError(KindOrderUnfillable, hash, nil)
	}

	if order.SenderAddress != (common.Address{}) && order.SenderAddress != taker {
		return nil, newFillError(KindInvalidSender, hash, nil)
	}
	if order.TakerAddress != (common.Address{}) && order.TakerAddress != taker {
		return nil, newFillError(KindInvalidTaker, hash, nil)
	}
	if requested == nil || requested.Sign() == 0 {
		return nil, newFillError(KindInvalidTakerAmount, hash, nil)
	}

	var decoded orderAssets
	for _, field := range []struct {
		data []byte
		dst  *assetdata.Descriptor
	}{
		{order.MakerAssetData, &decoded.maker},
		{order.TakerAssetData, &decoded.taker},
		{order.MakerFeeAssetData, &decoded.makerFee},
		{order.TakerFeeAssetData, &decoded.takerFee},
	} {
		d, err := assetdata.Decode(field.data)
		if err != nil {
			return nil, newFillError(KindDecode, hash, err)
		}
		*field.dst = d
	}
	return &decoded, nil
}

// settle performs the four transfers of a fill on a clone of the ledger and
// commits the clone only if all of them succeed
func (s *Simulator) settle(ctx context.Context, order *chain.Order, taker common.Address, decoded *orderAssets, results *fill.Results) error {
	working := s.ledger.Clone()
	layer := assets.NewLayer(working, s.layer.Proxies(), s.burnAddress)

	maker := order.MakerAddress
	feeRecipient := order.FeeRecipientAddress
	transfers := []struct {
		from, to common.Address
		asset    assetdata.Descriptor
		amount   *big.Int
		skip     bool
	}{
		{taker, maker, decoded.taker, results.TakerAssetFilledAmount, false},
		{maker, feeRecipient, decoded.makerFee, results.MakerFeePaid, maker == feeRecipient},
		{maker, taker, decoded.maker, results.MakerAssetFilledAmount, false},
		{taker, feeRecipient, decoded.takerFee, results.TakerFeePaid, taker == feeRecipient},
	}
	for _, t := range transfers {
		if t.skip || t.amount.Sign() == 0 || t.from == t.to {
			continue
		}
		if err := layer.Transfer(ctx, t.from, t.to, t.asset, t.amount); err != nil {
			return err
		}
	}

	s.ledger.Commit(working)
	return nil
}
