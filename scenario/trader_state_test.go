package scenario

import (
	"context"
	"math/big"
	"testing"

	"github.com/kaifufi/exchange-fillsim-go/assetdata"
	"github.com/kaifufi/exchange-fillsim-go/assets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsScaleWithRequestedAmount(t *testing.T) {
	f := newTestFixture()
	s := DefaultScenario().Order
	s.MakerAssetData = AssetERC20ZeroDecimals
	s.TakerAssetData = AssetERC20ZeroDecimals
	s.MakerFeeAssetData = AssetERC20ZeroDecimals
	s.TakerFeeAssetData = AssetERC20ZeroDecimals
	s.MakerAssetAmount = AmountLarge // 1000
	s.TakerAssetAmount = AmountSmall // 100
	built, err := NewOrderFactory(f).Build(s)
	require.NoError(t, err)

	maker, taker := Needs(built, big.NewInt(30))
	assert.Equal(t, "300", maker.Asset.Balance.String())
	assert.Equal(t, "300", maker.Fee.Balance.String())
	assert.Equal(t, "30", taker.Asset.Allowance.String())
	assert.Equal(t, "300", taker.Fee.Allowance.String())
	assert.False(t, maker.FeeMerged)

	// requests beyond the order are capped
	maker, _ = Needs(built, big.NewInt(5000))
	assert.Equal(t, "1000", maker.Asset.Balance.String())
}

func TestNeedsFeeInTradedAssets(t *testing.T) {
	f := newTestFixture()
	s := DefaultScenario().Order
	s.MakerAssetData = AssetERC20ZeroDecimals
	s.TakerAssetData = AssetERC20ZeroDecimals
	s.MakerFeeAssetData = AssetMakerToken
	s.TakerFeeAssetData = AssetMakerToken
	s.TakerFee = AmountLarge
	s.MakerFee = AmountSmall
	built, err := NewOrderFactory(f).Build(s)
	require.NoError(t, err)

	maker, taker := Needs(built, built.Order().TakerAssetAmount)
	// the maker's fee is paid in the asset it gives away
	assert.True(t, maker.FeeMerged)
	assert.Equal(t, "1100", maker.Asset.Balance.String())
	// the taker's fee is paid in the asset it receives first
	assert.False(t, taker.FeeMerged)
	assert.Equal(t, "0", taker.Fee.Balance.String())
	assert.Equal(t, "1000", taker.Fee.Allowance.String())
}

func TestNeedsForUnfillableOrder(t *testing.T) {
	f := newTestFixture()
	s := DefaultScenario().Order
	s.TakerAssetAmount = AmountZero
	built, err := NewOrderFactory(f).Build(s)
	require.NoError(t, err)

	maker, taker := Needs(built, big.NewInt(10))
	assert.Equal(t, "0", maker.Asset.Balance.String())
	assert.Equal(t, "0", taker.Fee.Allowance.String())
}

func TestApplyFungibleScenarios(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	layer := f.NewSimulator().Assets()
	asset := assetdata.Fungible{Token: f.Tokens[RoleMakerAsset].ERC20EighteenDecimals}
	user := f.Maker()
	need := newNeed(big.NewInt(100))
	var m TraderStateMutator

	cases := []struct {
		balance   BalanceScenario
		allowance AllowanceScenario
		wantBal   string
		wantAllow string
	}{
		{BalanceZero, AllowanceZero, "0", "0"},
		{BalanceTooLow, AllowanceTooLow, "99", "99"},
		{BalanceExact, AllowanceExact, "100", "100"},
		{BalanceHigher, AllowanceHigher, "101", "101"},
		{BalanceExact, AllowanceUnlimited, "100", assets.Unlimited().String()},
	}
	for _, c := range cases {
		require.NoError(t, m.Apply(ctx, layer, user, asset, need, c.balance, c.allowance))
		balance, err := layer.GetBalance(ctx, user, asset)
		require.NoError(t, err)
		allowance, err := layer.GetAllowance(ctx, user, asset)
		require.NoError(t, err)
		assert.Equal(t, c.wantBal, balance.String(), "%s", c.balance)
		assert.Equal(t, c.wantAllow, allowance.String(), "%s", c.allowance)
	}
}

func TestApplyDegenerate(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	layer := f.NewSimulator().Assets()
	asset := assetdata.Fungible{Token: f.Tokens[RoleMakerAsset].ERC20EighteenDecimals}
	var m TraderStateMutator

	err := m.Apply(ctx, layer, f.Maker(), asset, newNeed(new(big.Int)), BalanceTooLow, AllowanceExact)
	assert.ErrorIs(t, err, ErrDegenerateScenario)
	err = m.Apply(ctx, layer, f.Maker(), asset, newNeed(new(big.Int)), BalanceExact, AllowanceTooLow)
	assert.ErrorIs(t, err, ErrDegenerateScenario)
}

func TestApplyNonFungibleAllowance(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	layer := f.NewSimulator().Assets()
	nft := assetdata.NonFungible{Token: f.Tokens[RoleMakerAsset].ERC721, TokenID: big.NewInt(7)}
	var m TraderStateMutator

	// owned and exact: a single token approval
	require.NoError(t, m.Apply(ctx, layer, f.Maker(), nft, newNeed(big.NewInt(1)), BalanceExact, AllowanceExact))
	allowance, err := layer.GetAllowance(ctx, f.Maker(), nft)
	require.NoError(t, err)
	assert.Equal(t, "1", allowance.String())

	// higher than one token approves the collection
	require.NoError(t, m.Apply(ctx, layer, f.Maker(), nft, newNeed(big.NewInt(1)), BalanceExact, AllowanceHigher))
	allowance, err = layer.GetAllowance(ctx, f.Maker(), nft)
	require.NoError(t, err)
	assert.True(t, assets.IsUnlimited(allowance))

	// a user who will not own the token cannot approve it alone
	require.NoError(t, m.Apply(ctx, layer, f.Taker(), nft, newNeed(big.NewInt(1)), BalanceZero, AllowanceExact))
	allowance, err = layer.GetAllowance(ctx, f.Taker(), nft)
	require.NoError(t, err)
	assert.True(t, assets.IsUnlimited(allowance))
}

func TestApplyCompositeSetsEachLeaf(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	layer := f.NewSimulator().Assets()
	tokens := f.Tokens[RoleTakerAsset]
	bundle := assetdata.Composite{
		Weights: []*big.Int{big.NewInt(1), big.NewInt(2)},
		Children: []assetdata.Descriptor{
			assetdata.Fungible{Token: tokens.ERC20EighteenDecimals},
			assetdata.Fungible{Token: tokens.ERC20FiveDecimals},
		},
	}
	var m TraderStateMutator

	require.NoError(t, m.Apply(ctx, layer, f.Taker(), bundle, newNeed(big.NewInt(100)), BalanceExact, AllowanceExact))
	first, err := layer.GetBalance(ctx, f.Taker(), bundle.Children[0])
	require.NoError(t, err)
	second, err := layer.GetBalance(ctx, f.Taker(), bundle.Children[1])
	require.NoError(t, err)
	assert.Equal(t, "100", first.String())
	assert.Equal(t, "200", second.String())

	// exactly enough to move the whole bundle
	require.NoError(t, layer.Transfer(ctx, f.Taker(), f.Maker(), bundle, big.NewInt(100)))
}

func TestApplyUniqueSemiFungibleNeedsHolder(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	sim := f.NewSimulator()
	layer := sim.Assets()
	token := f.Tokens[RoleMakerAsset].ERC1155
	id := assetdata.NonFungibleID(nonFungibleTypeIndex, 1)
	unit := assetdata.SemiFungible{Token: token, IDs: []*big.Int{id}, Values: []*big.Int{big.NewInt(1)}}
	var m TraderStateMutator

	err := m.Apply(ctx, layer, f.Maker(), unit, newNeed(big.NewInt(1)), BalanceExact, AllowanceExact)
	assert.ErrorIs(t, err, assets.ErrCannotMintUniqueUnit)

	require.NoError(t, layer.Ledger().ERC1155Mint(ctx, token, f.Holder(), id, big.NewInt(1)))
	require.NoError(t, m.Apply(ctx, layer, f.Maker(), unit, newNeed(big.NewInt(1)), BalanceExact, AllowanceExact))
	balance, err := layer.GetBalance(ctx, f.Maker(), unit)
	require.NoError(t, err)
	assert.Equal(t, "1", balance.String())
}
