package scenario

import (
	"context"
	"testing"

	"github.com/kaifufi/exchange-fillsim-go/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDecimals(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	l := ledger.NewMemory()
	f.Deploy(l)
	require.NoError(t, f.CheckDecimals(ctx, l))

	l.DeployERC20(f.Tokens[RoleTakerAsset].ERC20EighteenDecimals, 6)
	err := f.CheckDecimals(ctx, l)
	assert.ErrorIs(t, err, ErrDecimalsMismatch)
	assert.Contains(t, err.Error(), "takerAsset")

	// a token that was never deployed cannot be read
	err = f.CheckDecimals(ctx, ledger.NewMemory())
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrUnknownToken)
}

func TestSeedTokenIDs(t *testing.T) {
	f := newTestFixture()
	f.SeedTokenIDs(1000)
	assert.Equal(t, uint64(1001), f.NextTokenID())
	// seeding never moves the index backwards
	f.SeedTokenIDs(10)
	assert.Equal(t, uint64(1002), f.NextTokenID())
}
