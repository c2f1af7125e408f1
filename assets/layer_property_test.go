package assets

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
	"github.com/kaifufi/exchange-fillsim-go/ledger"
	"pgregory.net/rapid"
)

// Setting a bundle balance never reports more bundles than were asked for.
func TestProperty_CompositeRoundTripNeverOvershoots(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		l, m := newTestLayer()
		n := rapid.IntRange(1, 4).Draw(t, "children")
		bundle := assetdata.Composite{}
		for i := 0; i < n; i++ {
			token := common.BigToAddress(big.NewInt(int64(0x1000 + i)))
			m.DeployERC20(token, 18)
			weight := rapid.Int64Range(0, 1000).Draw(t, "weight")
			bundle.Weights = append(bundle.Weights, big.NewInt(weight))
			bundle.Children = append(bundle.Children, assetdata.Fungible{Token: token})
		}
		desired := big.NewInt(rapid.Int64Range(0, 1_000_000_000).Draw(t, "desired"))

		if err := l.SetBalance(ctx, alice, bundle, desired); err != nil {
			t.Fatalf("set balance: %v", err)
		}
		got, err := l.GetBalance(ctx, alice, bundle)
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		if got.Cmp(desired) > 0 {
			t.Fatalf("bundle balance %s exceeds desired %s", got, desired)
		}
	})
}

// Setting a balance to what is already held leaves the ledger untouched. This
// holds for single-part assets only; bundles and multi-id descriptors split the
// total they are set to.
func TestProperty_SetBalanceToCurrentIsNoOp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		l, m := newTestLayer()
		candidates := []assetdata.Descriptor{
			assetdata.Fungible{Token: tokenA},
			assetdata.NonFungible{Token: collectible, TokenID: big.NewInt(1)},
			assetdata.SemiFungible{
				Token:  multiToken,
				IDs:    []*big.Int{assetdata.FungibleID(1)},
				Values: []*big.Int{big.NewInt(1)},
			},
		}
		asset := candidates[rapid.IntRange(0, len(candidates)-1).Draw(t, "asset")]
		initial := big.NewInt(rapid.Int64Range(0, 1_000_000).Draw(t, "initial"))
		if err := l.SetBalance(ctx, alice, asset, initial); err != nil {
			t.Fatalf("set balance: %v", err)
		}

		current, err := l.GetBalance(ctx, alice, asset)
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		before := m.Snapshot()
		if err := l.SetBalance(ctx, alice, asset, current); err != nil {
			t.Fatalf("set balance to current: %v", err)
		}
		if diff := ledger.Diff(before, m.Snapshot()); len(diff) > 0 {
			t.Fatalf("ledger changed:\n%s", ledger.FormatDiff(diff))
		}
	})
}
