package scenario

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
	"github.com/kaifufi/exchange-fillsim-go/chain"
	"github.com/shopspring/decimal"
)

const (
	pastExpiry   = time.Hour
	futureExpiry = 24 * time.Hour
)

// ERC1155 type indexes used for scenario ids
const (
	fungibleTypeIndex    = 1
	nonFungibleTypeIndex = 2
)

// UniqueUnit is an ERC1155 non-fungible id that must exist before trader
// state can be set
type UniqueUnit struct {
	Token common.Address
	ID    *big.Int
}

// BuiltOrder is a signed order together with the assets its legs trade
type BuiltOrder struct {
	Signed        *chain.SignedOrder
	Hash          common.Hash
	MakerAsset    assetdata.Descriptor
	TakerAsset    assetdata.Descriptor
	MakerFeeAsset assetdata.Descriptor
	TakerFeeAsset assetdata.Descriptor
	UniqueUnits   []UniqueUnit
}

// Order returns the unsigned order
func (b *BuiltOrder) Order() *chain.Order {
	return b.Signed.Order
}

// OrderFactory turns order scenarios into signed orders
type OrderFactory struct {
	fixture *Fixture
}

// NewOrderFactory creates an OrderFactory for fixture
func NewOrderFactory(fixture *Fixture) *OrderFactory {
	return &OrderFactory{fixture: fixture}
}

// Build creates and signs the order s describes
func (of *OrderFactory) Build(s OrderScenario) (*BuiltOrder, error) {
	f := of.fixture
	built := &BuiltOrder{}

	makerAsset, err := of.asset(built, RoleMakerAsset, s.MakerAssetData)
	if err != nil {
		return nil, err
	}
	takerAsset, err := of.asset(built, RoleTakerAsset, s.TakerAssetData)
	if err != nil {
		return nil, err
	}
	makerFeeAsset, makerFeeKind, err := of.feeAsset(built, RoleMakerFee, s.MakerFeeAssetData, s, makerAsset, takerAsset)
	if err != nil {
		return nil, err
	}
	takerFeeAsset, takerFeeKind, err := of.feeAsset(built, RoleTakerFee, s.TakerFeeAssetData, s, makerAsset, takerAsset)
	if err != nil {
		return nil, err
	}
	built.MakerAsset, built.TakerAsset = makerAsset, takerAsset
	built.MakerFeeAsset, built.TakerFeeAsset = makerFeeAsset, takerFeeAsset

	makerAmount, err := Amount(s.MakerAssetAmount, s.MakerAssetData)
	if err != nil {
		return nil, err
	}
	takerAmount, err := Amount(s.TakerAssetAmount, s.TakerAssetData)
	if err != nil {
		return nil, err
	}
	makerFee, err := Amount(s.MakerFee, makerFeeKind)
	if err != nil {
		return nil, err
	}
	takerFee, err := Amount(s.TakerFee, takerFeeKind)
	if err != nil {
		return nil, err
	}

	data := &chain.OrderData{
		Maker:                 f.Maker(),
		Taker:                 of.taker(s.Taker),
		FeeRecipient:          of.feeRecipient(s.FeeRecipient),
		Sender:                of.sender(s.Sender),
		MakerAsset:            makerAsset,
		TakerAsset:            takerAsset,
		MakerFeeAsset:         makerFeeAsset,
		TakerFeeAsset:         takerFeeAsset,
		MakerAssetAmount:      makerAmount,
		TakerAssetAmount:      takerAmount,
		MakerFee:              makerFee,
		TakerFee:              takerFee,
		ExpirationTimeSeconds: of.expiration(s.Expiration),
	}
	builder := f.OrderBuilder()
	signed, err := builder.BuildSignedOrder(data, f.MakerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build order: %w", err)
	}
	built.Signed = signed
	built.Hash = chain.OrderHash(builder.Domain(), signed.Order)
	return built, nil
}

// asset creates the descriptor of a trade leg
func (of *OrderFactory) asset(built *BuiltOrder, role Role, kind AssetDataScenario) (assetdata.Descriptor, error) {
	f := of.fixture
	tokens := f.Tokens[role]
	switch kind {
	case AssetERC20ZeroDecimals:
		return assetdata.Fungible{Token: tokens.ERC20ZeroDecimals}, nil
	case AssetERC20FiveDecimals:
		return assetdata.Fungible{Token: tokens.ERC20FiveDecimals}, nil
	case AssetERC20EighteenDecimals:
		return assetdata.Fungible{Token: tokens.ERC20EighteenDecimals}, nil
	case AssetERC721:
		return assetdata.NonFungible{Token: tokens.ERC721, TokenID: new(big.Int).SetUint64(f.NextTokenID())}, nil
	case AssetERC1155Fungible:
		return assetdata.SemiFungible{
			Token:  tokens.ERC1155,
			IDs:    []*big.Int{assetdata.FungibleID(fungibleTypeIndex)},
			Values: []*big.Int{big.NewInt(1)},
		}, nil
	case AssetERC1155NonFungible:
		id := assetdata.NonFungibleID(nonFungibleTypeIndex, f.NextTokenID())
		built.UniqueUnits = append(built.UniqueUnits, UniqueUnit{Token: tokens.ERC1155, ID: id})
		return assetdata.SemiFungible{
			Token:  tokens.ERC1155,
			IDs:    []*big.Int{id},
			Values: []*big.Int{big.NewInt(1)},
		}, nil
	case AssetMultiAssetERC20:
		return assetdata.Composite{
			Weights: []*big.Int{
				new(big.Int).Set(f.MultiAssetWeights[0]),
				new(big.Int).Set(f.MultiAssetWeights[1]),
			},
			Children: []assetdata.Descriptor{
				assetdata.Fungible{Token: tokens.ERC20EighteenDecimals},
				assetdata.Fungible{Token: tokens.ERC20FiveDecimals},
			},
		}, nil
	default:
		return nil, fmt.Errorf("%s is not a trade asset", kind)
	}
}

// feeAsset creates the descriptor of a fee leg and reports which asset kind
// its amounts follow
func (of *OrderFactory) feeAsset(built *BuiltOrder, role Role, kind AssetDataScenario, s OrderScenario, makerAsset, takerAsset assetdata.Descriptor) (assetdata.Descriptor, AssetDataScenario, error) {
	switch kind {
	case AssetMakerToken:
		return makerAsset, s.MakerAssetData, nil
	case AssetTakerToken:
		return takerAsset, s.TakerAssetData, nil
	default:
		d, err := of.asset(built, role, kind)
		return d, kind, err
	}
}

func (of *OrderFactory) taker(s TakerScenario) common.Address {
	switch s {
	case TakerCorrectlySpecified:
		return of.fixture.Taker()
	case TakerIncorrectlySpecified:
		return of.fixture.Stranger()
	default:
		return common.Address{}
	}
}

func (of *OrderFactory) sender(s SenderScenario) common.Address {
	switch s {
	case SenderCorrectlySpecified:
		return of.fixture.Taker()
	case SenderIncorrectlySpecified:
		return of.fixture.Stranger()
	default:
		return common.Address{}
	}
}

func (of *OrderFactory) feeRecipient(s FeeRecipientScenario) common.Address {
	switch s {
	case FeeRecipientBurnAddress:
		return of.fixture.BurnAddress
	case FeeRecipientMakerAddress:
		return of.fixture.Maker()
	case FeeRecipientTakerAddress:
		return of.fixture.Taker()
	default:
		return of.fixture.EthUser()
	}
}

func (of *OrderFactory) expiration(s ExpirationScenario) *big.Int {
	now := of.fixture.Now()
	if s == ExpirationInPast {
		return big.NewInt(now.Add(-pastExpiry).Unix())
	}
	return big.NewInt(now.Add(futureExpiry).Unix())
}

// Amount returns the base-unit amount s selects for an asset of kind. Unique
// assets always trade exactly one unit.
func Amount(s AmountScenario, kind AssetDataScenario) (*big.Int, error) {
	if s == AmountZero {
		return new(big.Int), nil
	}
	large := s == AmountLarge
	switch kind {
	case AssetERC20FiveDecimals:
		return units(large, fiveDecimals), nil
	case AssetERC20EighteenDecimals:
		return units(large, eighteenDecimals), nil
	case AssetERC721, AssetERC1155NonFungible:
		return big.NewInt(1), nil
	case AssetERC20ZeroDecimals, AssetERC1155Fungible, AssetMultiAssetERC20:
		if large {
			return big.NewInt(1000), nil
		}
		return big.NewInt(100), nil
	default:
		return nil, fmt.Errorf("no amount convention for %s", kind)
	}
}

// units returns 10 or 5 whole tokens in base units
func units(large bool, decimals int32) *big.Int {
	whole := decimal.NewFromInt(5)
	if large {
		whole = decimal.NewFromInt(10)
	}
	return whole.Shift(decimals).BigInt()
}

// FillAmount returns the requested fill amount s selects for an order
// trading takerAssetAmount
func FillAmount(s FillAmountScenario, takerAssetAmount *big.Int) *big.Int {
	switch s {
	case FillGreaterThanTakerAssetAmount:
		return new(big.Int).Add(takerAssetAmount, big.NewInt(1))
	case FillLessThanTakerAssetAmount:
		return new(big.Int).Quo(takerAssetAmount, big.NewInt(2))
	case FillExactlyTakerAssetAmount:
		return new(big.Int).Set(takerAssetAmount)
	default:
		return new(big.Int)
	}
}
