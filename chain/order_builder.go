package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
)

// SignatureTypeEIP712 is the trailing signature type byte of an EIP712 signature
const SignatureTypeEIP712 byte = 0x02

// ErrInvalidSignature is returned for signatures that are not v‖r‖s‖type
var ErrInvalidSignature = errors.New("invalid signature")

// OrderData represents the data for building an order
type OrderData struct {
	Maker                 common.Address
	Taker                 common.Address
	FeeRecipient          common.Address
	Sender                common.Address
	MakerAsset            assetdata.Descriptor
	TakerAsset            assetdata.Descriptor
	MakerFeeAsset         assetdata.Descriptor // defaults to MakerAsset
	TakerFeeAsset         assetdata.Descriptor // defaults to TakerAsset
	MakerAssetAmount      *big.Int
	TakerAssetAmount      *big.Int
	MakerFee              *big.Int
	TakerFee              *big.Int
	ExpirationTimeSeconds *big.Int
	Salt                  *big.Int // generated when nil
}

// OrderBuilder builds and signs orders for one exchange deployment
type OrderBuilder struct {
	domain *EIP712Domain
	rng    *rand.Rand
}

// NewOrderBuilder creates a new OrderBuilder
func NewOrderBuilder(exchangeAddr common.Address, chainID int64) *OrderBuilder {
	return &OrderBuilder{
		domain: NewEIP712Domain(big.NewInt(chainID), exchangeAddr),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Domain returns the EIP712 domain orders are signed under
func (ob *OrderBuilder) Domain() *EIP712Domain {
	return ob.domain
}

// BuildOrder builds an order from OrderData
func (ob *OrderBuilder) BuildOrder(data *OrderData) (*Order, error) {
	if err := ob.validateInputs(data); err != nil {
		return nil, err
	}

	makerFeeAsset := data.MakerFeeAsset
	if makerFeeAsset == nil {
		makerFeeAsset = data.MakerAsset
	}
	takerFeeAsset := data.TakerFeeAsset
	if takerFeeAsset == nil {
		takerFeeAsset = data.TakerAsset
	}

	encoded := make([][]byte, 0, 4)
	for _, d := range []assetdata.Descriptor{data.MakerAsset, data.TakerAsset, makerFeeAsset, takerFeeAsset} {
		b, err := assetdata.Encode(d)
		if err != nil {
			return nil, fmt.Errorf("failed to encode asset data: %w", err)
		}
		encoded = append(encoded, b)
	}

	salt := data.Salt
	if salt == nil {
		salt = ob.generateSalt()
	}

	return &Order{
		MakerAddress:          data.Maker,
		TakerAddress:          data.Taker,
		FeeRecipientAddress:   data.FeeRecipient,
		SenderAddress:         data.Sender,
		MakerAssetAmount:      new(big.Int).Set(data.MakerAssetAmount),
		TakerAssetAmount:      new(big.Int).Set(data.TakerAssetAmount),
		MakerFee:              new(big.Int).Set(orZero(data.MakerFee)),
		TakerFee:              new(big.Int).Set(orZero(data.TakerFee)),
		ExpirationTimeSeconds: new(big.Int).Set(orZero(data.ExpirationTimeSeconds)),
		Salt:                  new(big.Int).Set(salt),
		MakerAssetData:        encoded[0],
		TakerAssetData:        encoded[1],
		MakerFeeAssetData:     encoded[2],
		TakerFeeAssetData:     encoded[3],
	}, nil
}

// BuildSignedOrder builds and signs an order
func (ob *OrderBuilder) BuildSignedOrder(data *OrderData, signer *ecdsa.PrivateKey) (*SignedOrder, error) {
	order, err := ob.BuildOrder(data)
	if err != nil {
		return nil, err
	}

	signature, err := ob.SignOrder(order, signer)
	if err != nil {
		return nil, err
	}

	return &SignedOrder{
		Order:     order,
		Signature: signature,
	}, nil
}

// SignOrder signs the EIP712 hash of an order. The signature is laid out as
// v‖r‖s‖type, the form the exchange verifies.
func (ob *OrderBuilder) SignOrder(order *Order, signer *ecdsa.PrivateKey) ([]byte, error) {
	hash := OrderHash(ob.domain, order)
	sig, err := crypto.Sign(hash.Bytes(), signer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	out := make([]byte, 0, 66)
	out = append(out, sig[64]+27)
	out = append(out, sig[:64]...)
	out = append(out, SignatureTypeEIP712)
	return out, nil
}

// RecoverSigner returns the address that produced signature over the order
func (ob *OrderBuilder) RecoverSigner(order *Order, signature []byte) (common.Address, error) {
	if len(signature) != 66 || signature[65] != SignatureTypeEIP712 || signature[0] < 27 {
		return common.Address{}, ErrInvalidSignature
	}
	sig := make([]byte, 65)
	copy(sig, signature[1:65])
	sig[64] = signature[0] - 27

	hash := OrderHash(ob.domain, order)
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func (ob *OrderBuilder) validateInputs(data *OrderData) error {
	if data.Maker == (common.Address{}) {
		return fmt.Errorf("maker is required")
	}
	if data.MakerAsset == nil || data.TakerAsset == nil {
		return ErrMissingAssetData
	}
	if data.MakerAssetAmount == nil || data.MakerAssetAmount.Sign() < 0 {
		return ErrInvalidMakerAmount
	}
	if data.TakerAssetAmount == nil || data.TakerAssetAmount.Sign() < 0 {
		return ErrInvalidTakerAmount
	}
	if data.Salt != nil && data.Salt.Sign() < 0 {
		return ErrInvalidOrderSalt
	}
	for _, v := range []*big.Int{data.MakerFee, data.TakerFee, data.ExpirationTimeSeconds} {
		if v != nil && v.Sign() < 0 {
			return fmt.Errorf("negative order field %s", v)
		}
	}
	return nil
}

func (ob *OrderBuilder) generateSalt() *big.Int {
	now := big.NewInt(time.Now().Unix())
	return now.Mul(now, big.NewInt(ob.rng.Int63()))
}
