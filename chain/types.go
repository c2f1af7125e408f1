package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Order is an offer by the maker to trade maker assets for taker assets
type Order struct {
	MakerAddress          common.Address
	TakerAddress          common.Address // zero means any taker
	FeeRecipientAddress   common.Address
	SenderAddress         common.Address // zero means any sender
	MakerAssetAmount      *big.Int
	TakerAssetAmount      *big.Int
	MakerFee              *big.Int
	TakerFee              *big.Int
	ExpirationTimeSeconds *big.Int
	Salt                  *big.Int
	MakerAssetData        []byte
	TakerAssetData        []byte
	MakerFeeAssetData     []byte
	TakerFeeAssetData     []byte
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	c := *o
	for _, v := range []**big.Int{&c.MakerAssetAmount, &c.TakerAssetAmount, &c.MakerFee, &c.TakerFee, &c.ExpirationTimeSeconds, &c.Salt} {
		if *v != nil {
			*v = new(big.Int).Set(*v)
		}
	}
	for _, b := range []*[]byte{&c.MakerAssetData, &c.TakerAssetData, &c.MakerFeeAssetData, &c.TakerFeeAssetData} {
		*b = common.CopyBytes(*b)
	}
	return &c
}

// SignedOrder is an order with the maker's signature
type SignedOrder struct {
	Order     *Order
	Signature []byte
}

// OrderStatus mirrors the exchange's order status codes
type OrderStatus uint8

const (
	OrderStatusInvalid OrderStatus = iota
	OrderStatusInvalidMakerAssetAmount
	OrderStatusInvalidTakerAssetAmount
	OrderStatusFillable
	OrderStatusExpired
	OrderStatusFullyFilled
	OrderStatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusInvalidMakerAssetAmount:
		return "INVALID_MAKER_ASSET_AMOUNT"
	case OrderStatusInvalidTakerAssetAmount:
		return "INVALID_TAKER_ASSET_AMOUNT"
	case OrderStatusFillable:
		return "FILLABLE"
	case OrderStatusExpired:
		return "EXPIRED"
	case OrderStatusFullyFilled:
		return "FULLY_FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	default:
		return "INVALID"
	}
}

// The order tuple of fillOrder
const orderTupleJSON = `{
	"name": "order",
	"type": "tuple",
	"components": [
		{"name": "makerAddress", "type": "address"},
		{"name": "takerAddress", "type": "address"},
		{"name": "feeRecipientAddress", "type": "address"},
		{"name": "senderAddress", "type": "address"},
		{"name": "makerAssetAmount", "type": "uint256"},
		{"name": "takerAssetAmount", "type": "uint256"},
		{"name": "makerFee", "type": "uint256"},
		{"name": "takerFee", "type": "uint256"},
		{"name": "expirationTimeSeconds", "type": "uint256"},
		{"name": "salt", "type": "uint256"},
		{"name": "makerAssetData", "type": "bytes"},
		{"name": "takerAssetData", "type": "bytes"},
		{"name": "makerFeeAssetData", "type": "bytes"},
		{"name": "takerFeeAssetData", "type": "bytes"}
	]
}`

// Exchange ABI JSON for fillOrder, filled and protocolFeeMultiplier
const exchangeABIJSON = `[
	{
		"constant": false,
		"inputs": [
			` + orderTupleJSON + `,
			{"name": "takerAssetFillAmount", "type": "uint256"},
			{"name": "signature", "type": "bytes"}
		],
		"name": "fillOrder",
		"outputs": [
			{
				"name": "fillResults",
				"type": "tuple",
				"components": [
					{"name": "makerAssetFilledAmount", "type": "uint256"},
					{"name": "takerAssetFilledAmount", "type": "uint256"},
					{"name": "makerFeePaid", "type": "uint256"},
					{"name": "takerFeePaid", "type": "uint256"},
					{"name": "protocolFeePaid", "type": "uint256"}
				]
			}
		],
		"payable": true,
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "", "type": "bytes32"}],
		"name": "filled",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "protocolFeeMultiplier",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	}
]`

// Dummy ERC20 ABI JSON: a token whose balances can be set directly
const dummyERC20ABIJSON = `[
	{
		"constant": true,
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "setBalance",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	}
]`

// Dummy ERC721 ABI JSON: a collection anyone can mint into
const dummyERC721ABIJSON = `[
	{
		"constant": true,
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "mint",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "approved", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "getApproved",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "operator", "type": "address"},
			{"name": "approved", "type": "bool"}
		],
		"name": "setApprovalForAll",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "operator", "type": "address"}
		],
		"name": "isApprovedForAll",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	}
]`

// ERC1155 mintable ABI JSON
const erc1155MintableABIJSON = `[
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "id", "type": "uint256"}
		],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "id", "type": "uint256"},
			{"name": "to", "type": "address[]"},
			{"name": "quantities", "type": "uint256[]"}
		],
		"name": "mintFungible",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "id", "type": "uint256"},
			{"name": "value", "type": "uint256"},
			{"name": "data", "type": "bytes"}
		],
		"name": "safeTransferFrom",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "operator", "type": "address"},
			{"name": "approved", "type": "bool"}
		],
		"name": "setApprovalForAll",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "operator", "type": "address"}
		],
		"name": "isApprovedForAll",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	}
]`

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("failed to parse " + name + " ABI: " + err.Error())
	}
	return parsed
}

// GetExchangeABI returns the parsed exchange ABI
func GetExchangeABI() abi.ABI {
	return mustParseABI("exchange", exchangeABIJSON)
}

// GetDummyERC20ABI returns the parsed dummy ERC20 ABI
func GetDummyERC20ABI() abi.ABI {
	return mustParseABI("dummy ERC20", dummyERC20ABIJSON)
}

// GetDummyERC721ABI returns the parsed dummy ERC721 ABI
func GetDummyERC721ABI() abi.ABI {
	return mustParseABI("dummy ERC721", dummyERC721ABIJSON)
}

// GetERC1155MintableABI returns the parsed ERC1155 mintable ABI
func GetERC1155MintableABI() abi.ABI {
	return mustParseABI("ERC1155 mintable", erc1155MintableABIJSON)
}
