package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolFee(t *testing.T) {
	assert.Equal(t, "3000000000", ProtocolFee(big.NewInt(150_000), big.NewInt(20_000)).String())
	assert.Equal(t, "0", ProtocolFee(big.NewInt(150_000), nil).String())
	assert.Equal(t, "0", ProtocolFee(nil, big.NewInt(20_000)).String())
}

func TestExchangeABIReadsProtocolFeeMultiplier(t *testing.T) {
	exchange := GetExchangeABI()

	data, err := exchange.Pack("protocolFeeMultiplier")
	require.NoError(t, err)
	assert.Len(t, data, 4)

	word := make([]byte, 32)
	big.NewInt(150_000).FillBytes(word)
	out, err := exchange.Unpack("protocolFeeMultiplier", word)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "150000", ProtocolFee(out[0].(*big.Int), big.NewInt(1)).String())
}
