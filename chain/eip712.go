package chain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Order validation errors
var (
	ErrInvalidOrderSalt   = errors.New("invalid order salt")
	ErrInvalidMakerAmount = errors.New("invalid maker amount")
	ErrInvalidTakerAmount = errors.New("invalid taker amount")
	ErrMissingAssetData   = errors.New("missing asset data")
)

// EIP712 domain constants of the exchange
const (
	EIP712DomainName    = "0x Protocol"
	EIP712DomainVersion = "3.0.0"
)

// Pre-computed type hashes using keccak256
var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	OrderTypeHash = crypto.Keccak256Hash([]byte(
		"Order(" +
			"address makerAddress," +
			"address takerAddress," +
			"address feeRecipientAddress," +
			"address senderAddress," +
			"uint256 makerAssetAmount," +
			"uint256 takerAssetAmount," +
			"uint256 makerFee," +
			"uint256 takerFee," +
			"uint256 expirationTimeSeconds," +
			"uint256 salt," +
			"bytes makerAssetData," +
			"bytes takerAssetData," +
			"bytes makerFeeAssetData," +
			"bytes takerFeeAssetData" +
			")",
	))
)

var (
	bytes32Type, _ = abi.NewType("bytes32", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	addressType, _ = abi.NewType("address", "", nil)

	domainArguments = abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: addressType}, // verifyingContract
	}

	orderArguments = abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: addressType}, // makerAddress
		{Type: addressType}, // takerAddress
		{Type: addressType}, // feeRecipientAddress
		{Type: addressType}, // senderAddress
		{Type: uint256Type}, // makerAssetAmount
		{Type: uint256Type}, // takerAssetAmount
		{Type: uint256Type}, // makerFee
		{Type: uint256Type}, // takerFee
		{Type: uint256Type}, // expirationTimeSeconds
		{Type: uint256Type}, // salt
		{Type: bytes32Type}, // keccak256(makerAssetData)
		{Type: bytes32Type}, // keccak256(takerAssetData)
		{Type: bytes32Type}, // keccak256(makerFeeAssetData)
		{Type: bytes32Type}, // keccak256(takerFeeAssetData)
	}
)

// EIP712Domain represents the EIP712 domain separator data
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewEIP712Domain creates the exchange domain for a chain
func NewEIP712Domain(chainID *big.Int, exchange common.Address) *EIP712Domain {
	return &EIP712Domain{
		Name:              EIP712DomainName,
		Version:           EIP712DomainVersion,
		ChainID:           chainID,
		VerifyingContract: exchange,
	}
}

// Hash computes the EIP712 domain separator hash
func (d *EIP712Domain) Hash() common.Hash {
	encoded, err := domainArguments.Pack(
		EIP712DomainTypeHash,
		crypto.Keccak256Hash([]byte(d.Name)),
		crypto.Keccak256Hash([]byte(d.Version)),
		d.ChainID,
		d.VerifyingContract,
	)
	if err != nil {
		panic("failed to encode domain separator: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

// StructHash computes the EIP712 struct hash of the order. Dynamic asset
// data fields are hashed before encoding.
func (o *Order) StructHash() common.Hash {
	encoded, err := orderArguments.Pack(
		OrderTypeHash,
		o.MakerAddress,
		o.TakerAddress,
		o.FeeRecipientAddress,
		o.SenderAddress,
		orZero(o.MakerAssetAmount),
		orZero(o.TakerAssetAmount),
		orZero(o.MakerFee),
		orZero(o.TakerFee),
		orZero(o.ExpirationTimeSeconds),
		orZero(o.Salt),
		crypto.Keccak256Hash(o.MakerAssetData),
		crypto.Keccak256Hash(o.TakerAssetData),
		crypto.Keccak256Hash(o.MakerFeeAssetData),
		crypto.Keccak256Hash(o.TakerFeeAssetData),
	)
	if err != nil {
		panic("failed to encode order struct: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

// OrderHash is the identity of an order: keccak256("\x19\x01" ++ domainSeparator ++ structHash)
func OrderHash(domain *EIP712Domain, order *Order) common.Hash {
	domainSeparator := domain.Hash()
	structHash := order.StructHash()

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator.Bytes()...)
	data = append(data, structHash.Bytes()...)
	return crypto.Keccak256Hash(data)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
