package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testExchange = common.HexToAddress("0x48bacb9266a570d521063ef5dd96e61686dbe788")

func testOrderData(maker common.Address) *OrderData {
	return &OrderData{
		Maker:                 maker,
		FeeRecipient:          common.HexToAddress("0x000000000000000000000000000000000000fee0"),
		MakerAsset:            assetdata.Fungible{Token: common.HexToAddress("0x00000000000000000000000000000000000000a1")},
		TakerAsset:            assetdata.NonFungible{Token: common.HexToAddress("0x0000000000000000000000000000000000000721"), TokenID: big.NewInt(7)},
		MakerAssetAmount:      big.NewInt(100),
		TakerAssetAmount:      big.NewInt(1),
		MakerFee:              big.NewInt(3),
		ExpirationTimeSeconds: big.NewInt(1_900_000_000),
		Salt:                  big.NewInt(42),
	}
}

func TestBuildOrderEncodesAssetsAndDefaultsFees(t *testing.T) {
	ob := NewOrderBuilder(testExchange, 1337)
	data := testOrderData(common.HexToAddress("0x00000000000000000000000000000000000a11ce"))

	order, err := ob.BuildOrder(data)
	require.NoError(t, err)

	makerAsset, err := assetdata.Decode(order.MakerAssetData)
	require.NoError(t, err)
	assert.True(t, assetdata.Equal(data.MakerAsset, makerAsset))
	assert.Equal(t, order.MakerAssetData, order.MakerFeeAssetData)
	assert.Equal(t, order.TakerAssetData, order.TakerFeeAssetData)
	assert.Equal(t, "0", order.TakerFee.String())
	assert.Equal(t, "42", order.Salt.String())

	// the builder does not alias caller amounts
	data.MakerAssetAmount.SetInt64(1)
	assert.Equal(t, "100", order.MakerAssetAmount.String())
}

func TestBuildOrderGeneratesSalt(t *testing.T) {
	ob := NewOrderBuilder(testExchange, 1337)
	data := testOrderData(common.HexToAddress("0x00000000000000000000000000000000000a11ce"))
	data.Salt = nil

	order, err := ob.BuildOrder(data)
	require.NoError(t, err)
	assert.NotNil(t, order.Salt)
	assert.True(t, order.Salt.Sign() >= 0)
}

func TestBuildOrderValidation(t *testing.T) {
	ob := NewOrderBuilder(testExchange, 1337)

	data := testOrderData(common.Address{})
	_, err := ob.BuildOrder(data)
	assert.Error(t, err)

	data = testOrderData(common.HexToAddress("0x01"))
	data.TakerAsset = nil
	_, err = ob.BuildOrder(data)
	assert.ErrorIs(t, err, ErrMissingAssetData)

	data = testOrderData(common.HexToAddress("0x01"))
	data.MakerAssetAmount = big.NewInt(-1)
	_, err = ob.BuildOrder(data)
	assert.ErrorIs(t, err, ErrInvalidMakerAmount)
}

func TestSignOrderRecoversMaker(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	maker := crypto.PubkeyToAddress(key.PublicKey)

	ob := NewOrderBuilder(testExchange, 1337)
	signed, err := ob.BuildSignedOrder(testOrderData(maker), key)
	require.NoError(t, err)

	require.Len(t, signed.Signature, 66)
	assert.Contains(t, []byte{27, 28}, signed.Signature[0])
	assert.Equal(t, SignatureTypeEIP712, signed.Signature[65])

	recovered, err := ob.RecoverSigner(signed.Order, signed.Signature)
	require.NoError(t, err)
	assert.Equal(t, maker, recovered)

	// a different domain yields a different signer
	other := NewOrderBuilder(testExchange, 1)
	recovered, err = other.RecoverSigner(signed.Order, signed.Signature)
	require.NoError(t, err)
	assert.NotEqual(t, maker, recovered)

	_, err = ob.RecoverSigner(signed.Order, signed.Signature[:65])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestOrderHashCoversEveryField(t *testing.T) {
	ob := NewOrderBuilder(testExchange, 1337)
	order, err := ob.BuildOrder(testOrderData(common.HexToAddress("0x01")))
	require.NoError(t, err)
	base := OrderHash(ob.Domain(), order)
	assert.Equal(t, base, OrderHash(ob.Domain(), order.Clone()))

	mutations := map[string]func(o *Order){
		"taker":        func(o *Order) { o.TakerAddress = common.HexToAddress("0x02") },
		"sender":       func(o *Order) { o.SenderAddress = common.HexToAddress("0x03") },
		"makerAmount":  func(o *Order) { o.MakerAssetAmount.SetInt64(101) },
		"takerFee":     func(o *Order) { o.TakerFee.SetInt64(1) },
		"expiration":   func(o *Order) { o.ExpirationTimeSeconds.SetInt64(1) },
		"salt":         func(o *Order) { o.Salt.SetInt64(43) },
		"takerFeeData": func(o *Order) { o.TakerFeeAssetData = o.MakerAssetData },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			o := order.Clone()
			mutate(o)
			assert.NotEqual(t, base, OrderHash(ob.Domain(), o))
		})
	}

	// the domain binds the exchange
	otherDomain := NewEIP712Domain(big.NewInt(1337), common.HexToAddress("0x04"))
	assert.NotEqual(t, base, OrderHash(otherDomain, order))
}

func TestDomainConstants(t *testing.T) {
	d := NewEIP712Domain(big.NewInt(1), testExchange)
	assert.Equal(t, "0x Protocol", d.Name)
	assert.Equal(t, "3.0.0", d.Version)
	assert.Equal(t, crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")), EIP712DomainTypeHash)
}
