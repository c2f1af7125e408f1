package assetdata

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = common.HexToAddress("0x1dc4c1cefef38a777b15aa20260a54e584b16c48")
	tokenB = common.HexToAddress("0x1d7022f5b17d2f8b695918fb48fa1089c9f85401")
)

func TestProxyIDs(t *testing.T) {
	assert.Equal(t, "0xf47261b0", ERC20ProxyID.String())
	assert.Equal(t, "0x02571792", ERC721ProxyID.String())
	assert.Equal(t, "0xa7cb5fb7", ERC1155ProxyID.String())
	assert.Equal(t, "0x94cfcdd7", MultiAssetProxyID.String())
}

func TestEncodeERC20(t *testing.T) {
	encoded, err := Encode(Fungible{Token: tokenA})
	require.NoError(t, err)
	require.Len(t, encoded, 4+32)
	assert.Equal(t, ERC20ProxyID[:], encoded[:4])
	assert.Equal(t, tokenA.Bytes(), encoded[4+12:])
}

func TestDecodeRoundTrip(t *testing.T) {
	descriptors := []Descriptor{
		Fungible{Token: tokenA},
		NonFungible{Token: tokenB, TokenID: big.NewInt(42)},
		SemiFungible{
			Token:        tokenA,
			IDs:          []*big.Int{FungibleID(1), NonFungibleID(2, 7)},
			Values:       []*big.Int{big.NewInt(3), big.NewInt(1)},
			CallbackData: []byte{0xca, 0xfe},
		},
		Composite{
			Weights: []*big.Int{big.NewInt(2), big.NewInt(5)},
			Children: []Descriptor{
				Fungible{Token: tokenA},
				Composite{
					Weights:  []*big.Int{big.NewInt(1)},
					Children: []Descriptor{NonFungible{Token: tokenB, TokenID: big.NewInt(9)}},
				},
			},
		},
	}

	for _, d := range descriptors {
		t.Run(d.Kind().String(), func(t *testing.T) {
			encoded, err := Encode(d)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, d.Kind(), decoded.Kind())
			assert.True(t, Equal(d, decoded), "decoded %s, want %s", decoded, d)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid := MustEncode(NonFungible{Token: tokenA, TokenID: big.NewInt(1)})
	nestedBad := MustEncode(Composite{
		Weights:  []*big.Int{big.NewInt(1)},
		Children: []Descriptor{Fungible{Token: tokenA}},
	})
	// corrupt the nested proxy id inside the bytes[] payload
	nestedBad[len(nestedBad)-64] ^= 0xff

	cases := map[string][]byte{
		"empty":           nil,
		"short":           {0xf4, 0x72},
		"unknown proxy":   append([]byte{0xde, 0xad, 0xbe, 0xef}, valid[4:]...),
		"truncated body":  valid[:20],
		"erc20 no body":   ERC20ProxyID[:],
		"nested proxy id": nestedBad,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))
			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr))
		})
	}
}

func TestEncodeRejectsMismatchedLengths(t *testing.T) {
	_, err := Encode(SemiFungible{Token: tokenA, IDs: []*big.Int{big.NewInt(1)}})
	assert.Error(t, err)

	_, err = Encode(Composite{Weights: []*big.Int{big.NewInt(1)}})
	assert.Error(t, err)

	_, err = Encode(nil)
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Fungible{Token: tokenA}, Fungible{Token: tokenA}))
	assert.False(t, Equal(Fungible{Token: tokenA}, Fungible{Token: tokenB}))
	assert.False(t, Equal(
		NonFungible{Token: tokenA, TokenID: big.NewInt(1)},
		NonFungible{Token: tokenA, TokenID: big.NewInt(2)},
	))
	assert.False(t, Equal(Fungible{Token: tokenA}, nil))
}

func TestERC1155IDs(t *testing.T) {
	assert.False(t, IsNonFungibleID(FungibleID(3)))
	nf := NonFungibleID(3, 1)
	assert.True(t, IsNonFungibleID(nf))
	assert.NotEqual(t, 0, NonFungibleID(3, 1).Cmp(NonFungibleID(3, 2)))
	assert.False(t, IsNonFungibleID(nil))
}
