package simulator

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
	"github.com/kaifufi/exchange-fillsim-go/assets"
	"github.com/kaifufi/exchange-fillsim-go/chain"
	"github.com/kaifufi/exchange-fillsim-go/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	makerToken   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	takerToken   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	feeToken     = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	collectible  = common.HexToAddress("0x0000000000000000000000000000000000000721")
	maker        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	taker        = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	feeRecipient = common.HexToAddress("0x000000000000000000000000000000000000fee0")
	burn         = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	exchange     = common.HexToAddress("0x48bacb9266a570d521063ef5dd96e61686dbe788")
)

var testProxies = assets.Proxies{
	ERC20:      common.HexToAddress("0x000000000000000000000000000000000000f020"),
	ERC721:     common.HexToAddress("0x000000000000000000000000000000000000f721"),
	ERC1155:    common.HexToAddress("0x00000000000000000000000000000000000f1155"),
	MultiAsset: common.HexToAddress("0x000000000000000000000000000000000000f999"),
}

var testNow = time.Unix(1_700_000_000, 0)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newTestSimulator() *Simulator {
	m := ledger.NewMemory()
	m.DeployERC20(makerToken, 18)
	m.DeployERC20(takerToken, 18)
	m.DeployERC20(feeToken, 18)
	m.DeployERC721(collectible)
	return New(m, chain.NewEIP712Domain(big.NewInt(1337), exchange), testProxies, burn,
		WithClock(func() time.Time { return testNow }))
}

func baseOrderData() *chain.OrderData {
	return &chain.OrderData{
		Maker:                 maker,
		FeeRecipient:          feeRecipient,
		MakerAsset:            assetdata.Fungible{Token: makerToken},
		TakerAsset:            assetdata.Fungible{Token: takerToken},
		MakerFeeAsset:         assetdata.Fungible{Token: feeToken},
		TakerFeeAsset:         assetdata.Fungible{Token: feeToken},
		MakerAssetAmount:      e18(10),
		TakerAssetAmount:      e18(10),
		MakerFee:              e18(1),
		TakerFee:              e18(2),
		ExpirationTimeSeconds: big.NewInt(testNow.Add(24 * time.Hour).Unix()),
		Salt:                  big.NewInt(1),
	}
}

func buildOrder(t *testing.T, data *chain.OrderData) *chain.Order {
	t.Helper()
	order, err := chain.NewOrderBuilder(exchange, 1337).BuildOrder(data)
	require.NoError(t, err)
	return order
}

// fund gives user enough of asset and approves the proxies for all of it
func fund(t *testing.T, s *Simulator, user common.Address, asset assetdata.Descriptor, amount *big.Int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Assets().SetBalance(ctx, user, asset, amount))
	require.NoError(t, s.Assets().SetAllowance(ctx, user, asset, assets.Unlimited()))
}

func balance(t *testing.T, s *Simulator, user common.Address, asset assetdata.Descriptor) string {
	t.Helper()
	b, err := s.Assets().GetBalance(context.Background(), user, asset)
	require.NoError(t, err)
	return b.String()
}

func fundBaseOrder(t *testing.T, s *Simulator) {
	fund(t, s, maker, assetdata.Fungible{Token: makerToken}, e18(100))
	fund(t, s, maker, assetdata.Fungible{Token: feeToken}, e18(100))
	fund(t, s, taker, assetdata.Fungible{Token: takerToken}, e18(100))
	fund(t, s, taker, assetdata.Fungible{Token: feeToken}, e18(100))
}

func TestFullFillAtParity(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator()
	fundBaseOrder(t, s)
	order := buildOrder(t, baseOrderData())

	results, err := s.SimulateFill(ctx, order, taker, order.TakerAssetAmount)
	require.NoError(t, err)
	assert.Equal(t, e18(10).String(), results.MakerAssetFilledAmount.String())
	assert.Equal(t, e18(10).String(), results.TakerAssetFilledAmount.String())
	assert.Equal(t, e18(1).String(), results.MakerFeePaid.String())
	assert.Equal(t, e18(2).String(), results.TakerFeePaid.String())

	assert.Equal(t, e18(90).String(), balance(t, s, maker, assetdata.Fungible{Token: makerToken}))
	assert.Equal(t, e18(10).String(), balance(t, s, taker, assetdata.Fungible{Token: makerToken}))
	assert.Equal(t, e18(10).String(), balance(t, s, maker, assetdata.Fungible{Token: takerToken}))
	assert.Equal(t, e18(3).String(), balance(t, s, feeRecipient, assetdata.Fungible{Token: feeToken}))

	filled, err := s.GetFilledAmount(ctx, s.OrderHash(order))
	require.NoError(t, err)
	assert.Equal(t, e18(10).String(), filled.String())

	// a fully filled order cannot be filled again
	_, err = s.SimulateFill(ctx, order, taker, big.NewInt(1))
	assert.ErrorIs(t, err, ErrOrderUnfillable)
}

func TestPartialFillsAccumulateAndCap(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator()
	fundBaseOrder(t, s)
	order := buildOrder(t, baseOrderData())

	_, err := s.SimulateFill(ctx, order, taker, e18(4))
	require.NoError(t, err)

	// the second request exceeds what is left and is capped
	results, err := s.SimulateFill(ctx, order, taker, e18(50))
	require.NoError(t, err)
	assert.Equal(t, e18(6).String(), results.TakerAssetFilledAmount.String())

	filled, err := s.GetFilledAmount(ctx, s.OrderHash(order))
	require.NoError(t, err)
	assert.Equal(t, e18(10).String(), filled.String())
}

func TestZeroMakerAmountIsInvalid(t *testing.T) {
	s := newTestSimulator()
	data := baseOrderData()
	data.MakerAssetAmount = big.NewInt(0)
	data.ExpirationTimeSeconds = big.NewInt(1)
	order := buildOrder(t, data)

	for _, requested := range []*big.Int{big.NewInt(0), big.NewInt(1), e18(10)} {
		_, err := s.SimulateFill(context.Background(), order, taker, requested)
		assert.ErrorIs(t, err, ErrInvalidMakerAmount)
		assert.Equal(t, KindInvalidMakerAmount, KindOf(err))
	}
}

func TestExpiredOrderIsUnfillable(t *testing.T) {
	s := newTestSimulator()
	fundBaseOrder(t, s)
	data := baseOrderData()
	data.ExpirationTimeSeconds = big.NewInt(testNow.Add(-time.Hour).Unix())
	order := buildOrder(t, data)

	_, err := s.SimulateFill(context.Background(), order, taker, order.TakerAssetAmount)
	assert.ErrorIs(t, err, ErrOrderUnfillable)

	// expiring exactly now is also too late
	data.ExpirationTimeSeconds = big.NewInt(testNow.Unix())
	_, err = s.SimulateFill(context.Background(), buildOrder(t, data), taker, order.TakerAssetAmount)
	assert.ErrorIs(t, err, ErrOrderUnfillable)
}

func TestSenderAndTakerRestrictions(t *testing.T) {
	s := newTestSimulator()
	fundBaseOrder(t, s)
	stranger := common.HexToAddress("0x0000000000000000000000000000000000005555")

	data := baseOrderData()
	data.Sender = stranger
	data.Taker = stranger
	_, err := s.SimulateFill(context.Background(), buildOrder(t, data), taker, e18(1))
	assert.ErrorIs(t, err, ErrInvalidSender, "sender is checked before taker")

	data = baseOrderData()
	data.Taker = stranger
	_, err = s.SimulateFill(context.Background(), buildOrder(t, data), taker, e18(1))
	assert.ErrorIs(t, err, ErrInvalidTaker)

	data = baseOrderData()
	data.Taker = taker
	data.Sender = taker
	_, err = s.SimulateFill(context.Background(), buildOrder(t, data), taker, e18(1))
	assert.NoError(t, err)
}

func TestZeroRequestedAmountIsInvalid(t *testing.T) {
	s := newTestSimulator()
	_, err := s.SimulateFill(context.Background(), buildOrder(t, baseOrderData()), taker, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidTakerAmount)
}

func TestMalformedAssetDataFailsDecoding(t *testing.T) {
	s := newTestSimulator()
	order := buildOrder(t, baseOrderData())
	order.TakerFeeAssetData = []byte{0xde, 0xad}

	_, err := s.SimulateFill(context.Background(), order, taker, e18(1))
	assert.ErrorIs(t, err, assetdata.ErrDecode)
	assert.Equal(t, KindDecode, KindOf(err))
}

func TestInsufficientMakerBalanceRevertsAtomically(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator()
	fundBaseOrder(t, s)
	makerAsset := assetdata.Fungible{Token: makerToken}
	order := buildOrder(t, baseOrderData())
	fillAmount := order.TakerAssetAmount
	require.NoError(t, s.Assets().SetBalance(ctx, maker, makerAsset, new(big.Int).Sub(fillAmount, big.NewInt(1))))

	before := s.Ledger().Snapshot()
	_, err := s.SimulateFill(ctx, order, taker, fillAmount)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Equal(t, KindTransferFailed, KindOf(err))

	// the taker leg ran before the maker leg failed, yet nothing is visible
	assert.Empty(t, ledger.Diff(before, s.Ledger().Snapshot()))
	filled, err := s.GetFilledAmount(ctx, s.OrderHash(order))
	require.NoError(t, err)
	assert.Equal(t, "0", filled.String())
}

func TestInsufficientAllowanceFails(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator()
	fundBaseOrder(t, s)
	order := buildOrder(t, baseOrderData())
	require.NoError(t, s.Assets().SetAllowance(ctx, taker, assetdata.Fungible{Token: takerToken}, e18(1)))

	_, err := s.SimulateFill(ctx, order, taker, e18(2))
	assert.ErrorIs(t, err, ledger.ErrInsufficientAllowance)
}

// The maker pays its fee in the taker asset using only what the fill delivers
func TestMakerFeePaidFromReceivedTakerAsset(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator()
	takerAsset := assetdata.Fungible{Token: takerToken}
	data := baseOrderData()
	data.MakerFeeAsset = takerAsset
	data.TakerFee = big.NewInt(0)
	order := buildOrder(t, data)

	fund(t, s, maker, assetdata.Fungible{Token: makerToken}, e18(10))
	// the maker holds none of the taker asset, only an allowance
	require.NoError(t, s.Assets().SetAllowance(ctx, maker, takerAsset, assets.Unlimited()))
	fund(t, s, taker, takerAsset, e18(10))
	assert.Equal(t, "0", balance(t, s, feeRecipient, takerAsset))

	results, err := s.SimulateFill(ctx, order, taker, order.TakerAssetAmount)
	require.NoError(t, err)

	assert.Equal(t, results.MakerFeePaid.String(), balance(t, s, feeRecipient, takerAsset))
	assert.Equal(t, e18(9).String(), balance(t, s, maker, takerAsset))
}

func TestFeeTransfersSkippedForSelfRecipient(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator()
	makerAsset := assetdata.Fungible{Token: makerToken}
	takerAsset := assetdata.Fungible{Token: takerToken}
	data := baseOrderData()
	data.FeeRecipient = maker
	order := buildOrder(t, data)

	// the maker owns no fee tokens; its fee is skipped
	fund(t, s, maker, makerAsset, e18(10))
	fund(t, s, taker, takerAsset, e18(10))
	fund(t, s, taker, assetdata.Fungible{Token: feeToken}, e18(2))

	_, err := s.SimulateFill(ctx, order, taker, order.TakerAssetAmount)
	require.NoError(t, err)
	assert.Equal(t, e18(2).String(), balance(t, s, maker, assetdata.Fungible{Token: feeToken}))
}

func TestNonFungibleTakerAsset(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator()
	nft := assetdata.NonFungible{Token: collectible, TokenID: big.NewInt(77)}
	data := baseOrderData()
	data.TakerAsset = nft
	data.TakerAssetAmount = big.NewInt(1)
	data.TakerFee = big.NewInt(0)
	order := buildOrder(t, data)

	fund(t, s, maker, assetdata.Fungible{Token: makerToken}, e18(10))
	fund(t, s, maker, assetdata.Fungible{Token: feeToken}, e18(1))
	require.NoError(t, s.Assets().SetBalance(ctx, taker, nft, big.NewInt(1)))
	require.NoError(t, s.Assets().SetAllowance(ctx, taker, nft, big.NewInt(1)))

	_, err := s.SimulateFill(ctx, order, taker, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "1", balance(t, s, maker, nft))
	assert.Equal(t, "0", balance(t, s, taker, nft))
}

func TestKindFromRevert(t *testing.T) {
	cases := []struct {
		revert *chain.RevertError
		want   ErrorKind
	}{
		{&chain.RevertError{Kind: chain.RevertOrderStatus, Status: chain.OrderStatusInvalidMakerAssetAmount}, KindInvalidMakerAmount},
		{&chain.RevertError{Kind: chain.RevertOrderStatus, Status: chain.OrderStatusExpired}, KindOrderUnfillable},
		{&chain.RevertError{Kind: chain.RevertOrderStatus, Status: chain.OrderStatusFullyFilled}, KindOrderUnfillable},
		{&chain.RevertError{Kind: chain.RevertInvalidContext, Code: chain.ContextInvalidSender}, KindInvalidSender},
		{&chain.RevertError{Kind: chain.RevertInvalidContext, Code: chain.ContextInvalidTaker}, KindInvalidTaker},
		{&chain.RevertError{Kind: chain.RevertFill, Code: chain.FillErrorInvalidTakerAmount}, KindInvalidTakerAmount},
		{&chain.RevertError{Kind: chain.RevertFill, Code: chain.FillErrorInvalidFillPrice}, KindInvalidFillPrice},
		{&chain.RevertError{Kind: chain.RevertAssetProxyTransfer}, KindTransferFailed},
		{&chain.RevertError{Kind: chain.RevertAssetProxyDispatch}, KindDecode},
		{&chain.RevertError{Kind: chain.RevertUnknown}, KindUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KindFromRevert(c.revert), c.revert.Error())
		assert.Equal(t, c.want, KindOf(c.revert))
	}
}

func TestKindOfAssetLayerErrors(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindInvalidAllowance, KindOf(&assets.InvalidAllowanceError{Value: big.NewInt(2)}))
	assert.Equal(t, KindCannotMintUniqueUnit, KindOf(assets.ErrCannotMintUniqueUnit))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "TransferFailed", KindTransferFailed.String())
}
