package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCartesianProductOrdering(t *testing.T) {
	product := CartesianProduct([][]int{{1, 2}, {3, 4}, {5}})
	assert.Equal(t, [][]int{
		{1, 3, 5},
		{1, 4, 5},
		{2, 3, 5},
		{2, 4, 5},
	}, product)
}

func TestCartesianProductEdgeCases(t *testing.T) {
	assert.Equal(t, [][]int{{}}, CartesianProduct[int](nil))
	assert.Empty(t, CartesianProduct([][]int{{1, 2}, {}}))
	assert.Equal(t, [][]string{{"a"}, {"b"}}, CartesianProduct([][]string{{"a", "b"}}))
}

func TestProperty_CartesianProductSize(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sizes := rapid.SliceOfN(rapid.IntRange(0, 4), 0, 5).Draw(t, "sizes")
		domains := make([][]int, len(sizes))
		want := 1
		for i, n := range sizes {
			domains[i] = make([]int, n)
			for j := range domains[i] {
				domains[i][j] = j
			}
			want *= n
		}

		product := CartesianProduct(domains)
		if len(product) != want {
			t.Fatalf("product of %v has %d tuples, want %d", sizes, len(product), want)
		}
		for _, tuple := range product {
			if len(tuple) != len(domains) {
				t.Fatalf("tuple %v has %d values, want %d", tuple, len(tuple), len(domains))
			}
		}
	})
}

func TestGenerateKeepsDefaultsForEmptyDimensions(t *testing.T) {
	scenarios := Generate("fills", Dimensions{
		FillAmount: []FillAmountScenario{FillZero, FillExactlyTakerAssetAmount},
	})
	require.Len(t, scenarios, 2)

	want := DefaultScenario()
	want.Name = "fills/0"
	want.FillAmount = FillZero
	assert.Equal(t, want, scenarios[0])
	assert.Equal(t, "fills/1", scenarios[1].Name)
	assert.Equal(t, FillExactlyTakerAssetAmount, scenarios[1].FillAmount)
}

func TestGenerateCrossesDimensions(t *testing.T) {
	scenarios := Generate("restrictions", Dimensions{
		Taker:  []TakerScenario{TakerCorrectlySpecified, TakerUnspecified},
		Sender: []SenderScenario{SenderUnspecified, SenderIncorrectlySpecified},
	})
	require.Len(t, scenarios, 4)

	var seen []string
	for _, s := range scenarios {
		seen = append(seen, s.Order.Taker.String()+"/"+s.Order.Sender.String())
	}
	assert.Equal(t, []string{
		"CorrectlySpecified/Unspecified",
		"CorrectlySpecified/IncorrectlySpecified",
		"Unspecified/Unspecified",
		"Unspecified/IncorrectlySpecified",
	}, seen)
}

func TestGenerateAllScenarios(t *testing.T) {
	total := 0
	names := make(map[string]bool)
	for _, suite := range DefaultSuites() {
		assert.False(t, names[suite.Name], "duplicate suite %s", suite.Name)
		names[suite.Name] = true
		total += len(Generate(suite.Name, suite.Dimensions))
	}

	all := GenerateAllScenarios()
	assert.Len(t, all, total)

	unique := make(map[string]bool, len(all))
	for _, s := range all {
		unique[s.Name] = true
	}
	assert.Len(t, unique, len(all))

	_, ok := FindSuite("maker_state")
	assert.True(t, ok)
	_, ok = FindSuite("nope")
	assert.False(t, ok)
}

func TestEnumNames(t *testing.T) {
	assert.Equal(t, "MultiAssetERC20", AssetMultiAssetERC20.String())
	assert.Equal(t, "TakerToken", AssetTakerToken.String())
	assert.Equal(t, "Unlimited", AllowanceUnlimited.String())
	assert.Equal(t, "42", AmountScenario(42).String())
	assert.Contains(t, DefaultScenario().String(), "fill=ExactlyTakerAssetAmount")
}
