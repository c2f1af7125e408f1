// Package scenario generates combinatorial fill scenarios, turns them into
// concrete orders and trader state, and runs them against a reference
// simulator and an execution target.
package scenario

import (
	"fmt"
	"strings"
)

// TakerScenario selects the order's taker restriction
type TakerScenario int

const (
	TakerCorrectlySpecified TakerScenario = iota
	TakerIncorrectlySpecified
	TakerUnspecified
)

// SenderScenario selects the order's sender restriction
type SenderScenario int

const (
	SenderUnspecified SenderScenario = iota
	SenderCorrectlySpecified
	SenderIncorrectlySpecified
)

// FeeRecipientScenario selects who receives the order's fees
type FeeRecipientScenario int

const (
	FeeRecipientBurnAddress FeeRecipientScenario = iota
	FeeRecipientEthUserAddress
	FeeRecipientMakerAddress
	FeeRecipientTakerAddress
)

// AmountScenario selects an asset amount or fee of the order
type AmountScenario int

const (
	AmountZero AmountScenario = iota
	AmountLarge
	AmountSmall
)

// ExpirationScenario selects the order's expiration relative to now
type ExpirationScenario int

const (
	ExpirationInPast ExpirationScenario = iota
	ExpirationInFuture
)

// AssetDataScenario selects the kind of asset a leg of the order trades.
// AssetMakerToken and AssetTakerToken are only valid for fee legs and reuse
// the asset of that side of the trade.
type AssetDataScenario int

const (
	AssetERC20ZeroDecimals AssetDataScenario = iota
	AssetERC20FiveDecimals
	AssetERC20EighteenDecimals
	AssetERC721
	AssetERC1155Fungible
	AssetERC1155NonFungible
	AssetMultiAssetERC20
	AssetMakerToken
	AssetTakerToken
)

// FillAmountScenario selects the requested fill amount relative to the order
type FillAmountScenario int

const (
	FillZero FillAmountScenario = iota
	FillGreaterThanTakerAssetAmount
	FillLessThanTakerAssetAmount
	FillExactlyTakerAssetAmount
)

// BalanceScenario selects a trader balance relative to what the fill moves
type BalanceScenario int

const (
	BalanceZero BalanceScenario = iota
	BalanceTooLow
	BalanceExact
	BalanceHigher
)

// AllowanceScenario selects a proxy allowance relative to what the fill moves
type AllowanceScenario int

const (
	AllowanceZero AllowanceScenario = iota
	AllowanceTooLow
	AllowanceExact
	AllowanceHigher
	AllowanceUnlimited
)

func enumName(names []string, v int) string {
	if v >= 0 && v < len(names) {
		return names[v]
	}
	return fmt.Sprintf("%d", v)
}

func (s TakerScenario) String() string {
	return enumName([]string{"CorrectlySpecified", "IncorrectlySpecified", "Unspecified"}, int(s))
}

func (s SenderScenario) String() string {
	return enumName([]string{"Unspecified", "CorrectlySpecified", "IncorrectlySpecified"}, int(s))
}

func (s FeeRecipientScenario) String() string {
	return enumName([]string{"BurnAddress", "EthUserAddress", "MakerAddress", "TakerAddress"}, int(s))
}

func (s AmountScenario) String() string {
	return enumName([]string{"Zero", "Large", "Small"}, int(s))
}

func (s ExpirationScenario) String() string {
	return enumName([]string{"InPast", "InFuture"}, int(s))
}

func (s AssetDataScenario) String() string {
	return enumName([]string{
		"ERC20ZeroDecimals", "ERC20FiveDecimals", "ERC20EighteenDecimals", "ERC721",
		"ERC1155Fungible", "ERC1155NonFungible", "MultiAssetERC20", "MakerToken", "TakerToken",
	}, int(s))
}

func (s FillAmountScenario) String() string {
	return enumName([]string{"Zero", "GreaterThanTakerAssetAmount", "LessThanTakerAssetAmount", "ExactlyTakerAssetAmount"}, int(s))
}

func (s BalanceScenario) String() string {
	return enumName([]string{"Zero", "TooLow", "Exact", "Higher"}, int(s))
}

func (s AllowanceScenario) String() string {
	return enumName([]string{"Zero", "TooLow", "Exact", "Higher", "Unlimited"}, int(s))
}

// TradeAssets lists the asset kinds a maker or taker asset can take
var TradeAssets = []AssetDataScenario{
	AssetERC20ZeroDecimals, AssetERC20FiveDecimals, AssetERC20EighteenDecimals,
	AssetERC721, AssetERC1155Fungible, AssetERC1155NonFungible, AssetMultiAssetERC20,
}

// FeeAssets lists the asset kinds a fee can be paid in
var FeeAssets = append(append([]AssetDataScenario{}, TradeAssets...), AssetMakerToken, AssetTakerToken)

// OrderScenario selects every field of an order
type OrderScenario struct {
	Taker             TakerScenario
	Sender            SenderScenario
	FeeRecipient      FeeRecipientScenario
	MakerAssetAmount  AmountScenario
	TakerAssetAmount  AmountScenario
	MakerFee          AmountScenario
	TakerFee          AmountScenario
	Expiration        ExpirationScenario
	MakerAssetData    AssetDataScenario
	TakerAssetData    AssetDataScenario
	MakerFeeAssetData AssetDataScenario
	TakerFeeAssetData AssetDataScenario
}

// TraderStateScenario selects one trader's balances and allowances
type TraderStateScenario struct {
	AssetBalance   BalanceScenario
	AssetAllowance AllowanceScenario
	FeeBalance     BalanceScenario
	FeeAllowance   AllowanceScenario
}

// Scenario is one fill to run: an order, a requested fill amount and the
// state of both traders beforehand
type Scenario struct {
	Name        string
	Order       OrderScenario
	FillAmount  FillAmountScenario
	Maker       TraderStateScenario
	Taker       TraderStateScenario
	Expectation Expectation
}

func (s Scenario) String() string {
	o := s.Order
	fields := []string{
		"taker=" + o.Taker.String(),
		"sender=" + o.Sender.String(),
		"feeRecipient=" + o.FeeRecipient.String(),
		"makerAssetAmount=" + o.MakerAssetAmount.String(),
		"takerAssetAmount=" + o.TakerAssetAmount.String(),
		"makerFee=" + o.MakerFee.String(),
		"takerFee=" + o.TakerFee.String(),
		"expiration=" + o.Expiration.String(),
		"makerAsset=" + o.MakerAssetData.String(),
		"takerAsset=" + o.TakerAssetData.String(),
		"makerFeeAsset=" + o.MakerFeeAssetData.String(),
		"takerFeeAsset=" + o.TakerFeeAssetData.String(),
		"fill=" + s.FillAmount.String(),
		fmt.Sprintf("maker=%s/%s/%s/%s", s.Maker.AssetBalance, s.Maker.AssetAllowance, s.Maker.FeeBalance, s.Maker.FeeAllowance),
		fmt.Sprintf("taker=%s/%s/%s/%s", s.Taker.AssetBalance, s.Taker.AssetAllowance, s.Taker.FeeBalance, s.Taker.FeeAllowance),
	}
	return s.Name + " {" + strings.Join(fields, " ") + "}"
}

// DefaultScenario is a fully funded, exactly filled order between two
// unrestricted traders of 18 decimal tokens
func DefaultScenario() Scenario {
	funded := TraderStateScenario{
		AssetBalance:   BalanceHigher,
		AssetAllowance: AllowanceUnlimited,
		FeeBalance:     BalanceHigher,
		FeeAllowance:   AllowanceUnlimited,
	}
	return Scenario{
		Order: OrderScenario{
			Taker:             TakerUnspecified,
			Sender:            SenderUnspecified,
			FeeRecipient:      FeeRecipientEthUserAddress,
			MakerAssetAmount:  AmountLarge,
			TakerAssetAmount:  AmountLarge,
			MakerFee:          AmountLarge,
			TakerFee:          AmountLarge,
			Expiration:        ExpirationInFuture,
			MakerAssetData:    AssetERC20EighteenDecimals,
			TakerAssetData:    AssetERC20EighteenDecimals,
			MakerFeeAssetData: AssetERC20EighteenDecimals,
			TakerFeeAssetData: AssetERC20EighteenDecimals,
		},
		FillAmount:  FillExactlyTakerAssetAmount,
		Maker:       funded,
		Taker:       funded,
		Expectation: Any(),
	}
}

// CartesianProduct returns every tuple taking one value from each domain. The
// first domain varies slowest. A product over no domains is one empty tuple.
func CartesianProduct[T any](domains [][]T) [][]T {
	if len(domains) == 0 {
		return [][]T{{}}
	}
	tail := CartesianProduct(domains[1:])
	product := make([][]T, 0, len(domains[0])*len(tail))
	for _, head := range domains[0] {
		for _, rest := range tail {
			tuple := make([]T, 0, len(rest)+1)
			tuple = append(tuple, head)
			product = append(product, append(tuple, rest...))
		}
	}
	return product
}

// Dimensions lists the values each scenario dimension ranges over. An empty
// dimension keeps the value of DefaultScenario.
type Dimensions struct {
	Taker             []TakerScenario
	Sender            []SenderScenario
	FeeRecipient      []FeeRecipientScenario
	MakerAssetAmount  []AmountScenario
	TakerAssetAmount  []AmountScenario
	MakerFee          []AmountScenario
	TakerFee          []AmountScenario
	Expiration        []ExpirationScenario
	MakerAssetData    []AssetDataScenario
	TakerAssetData    []AssetDataScenario
	MakerFeeAssetData []AssetDataScenario
	TakerFeeAssetData []AssetDataScenario
	FillAmount        []FillAmountScenario

	MakerAssetBalance   []BalanceScenario
	MakerAssetAllowance []AllowanceScenario
	MakerFeeBalance     []BalanceScenario
	MakerFeeAllowance   []AllowanceScenario
	TakerAssetBalance   []BalanceScenario
	TakerAssetAllowance []AllowanceScenario
	TakerFeeBalance     []BalanceScenario
	TakerFeeAllowance   []AllowanceScenario
}

func domain[T ~int](values []T, fallback T) []int {
	if len(values) == 0 {
		return []int{int(fallback)}
	}
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}

// Generate expands dims into scenarios named name/0, name/1, ...
func Generate(name string, dims Dimensions) []Scenario {
	base := DefaultScenario()
	o := base.Order
	tuples := CartesianProduct([][]int{
		domain(dims.Taker, o.Taker),
		domain(dims.Sender, o.Sender),
		domain(dims.FeeRecipient, o.FeeRecipient),
		domain(dims.MakerAssetAmount, o.MakerAssetAmount),
		domain(dims.TakerAssetAmount, o.TakerAssetAmount),
		domain(dims.MakerFee, o.MakerFee),
		domain(dims.TakerFee, o.TakerFee),
		domain(dims.Expiration, o.Expiration),
		domain(dims.MakerAssetData, o.MakerAssetData),
		domain(dims.TakerAssetData, o.TakerAssetData),
		domain(dims.MakerFeeAssetData, o.MakerFeeAssetData),
		domain(dims.TakerFeeAssetData, o.TakerFeeAssetData),
		domain(dims.FillAmount, base.FillAmount),
		domain(dims.MakerAssetBalance, base.Maker.AssetBalance),
		domain(dims.MakerAssetAllowance, base.Maker.AssetAllowance),
		domain(dims.MakerFeeBalance, base.Maker.FeeBalance),
		domain(dims.MakerFeeAllowance, base.Maker.FeeAllowance),
		domain(dims.TakerAssetBalance, base.Taker.AssetBalance),
		domain(dims.TakerAssetAllowance, base.Taker.AssetAllowance),
		domain(dims.TakerFeeBalance, base.Taker.FeeBalance),
		domain(dims.TakerFeeAllowance, base.Taker.FeeAllowance),
	})

	scenarios := make([]Scenario, len(tuples))
	for i, t := range tuples {
		scenarios[i] = Scenario{
			Name: fmt.Sprintf("%s/%d", name, i),
			Order: OrderScenario{
				Taker:             TakerScenario(t[0]),
				Sender:            SenderScenario(t[1]),
				FeeRecipient:      FeeRecipientScenario(t[2]),
				MakerAssetAmount:  AmountScenario(t[3]),
				TakerAssetAmount:  AmountScenario(t[4]),
				MakerFee:          AmountScenario(t[5]),
				TakerFee:          AmountScenario(t[6]),
				Expiration:        ExpirationScenario(t[7]),
				MakerAssetData:    AssetDataScenario(t[8]),
				TakerAssetData:    AssetDataScenario(t[9]),
				MakerFeeAssetData: AssetDataScenario(t[10]),
				TakerFeeAssetData: AssetDataScenario(t[11]),
			},
			FillAmount: FillAmountScenario(t[12]),
			Maker: TraderStateScenario{
				AssetBalance:   BalanceScenario(t[13]),
				AssetAllowance: AllowanceScenario(t[14]),
				FeeBalance:     BalanceScenario(t[15]),
				FeeAllowance:   AllowanceScenario(t[16]),
			},
			Taker: TraderStateScenario{
				AssetBalance:   BalanceScenario(t[17]),
				AssetAllowance: AllowanceScenario(t[18]),
				FeeBalance:     BalanceScenario(t[19]),
				FeeAllowance:   AllowanceScenario(t[20]),
			},
			Expectation: base.Expectation,
		}
	}
	return scenarios
}

// Suite is a named set of dimensions
type Suite struct {
	Name       string
	Dimensions Dimensions
}

var (
	allBalances   = []BalanceScenario{BalanceZero, BalanceTooLow, BalanceExact, BalanceHigher}
	allAllowances = []AllowanceScenario{AllowanceZero, AllowanceTooLow, AllowanceExact, AllowanceHigher, AllowanceUnlimited}
	allAmounts    = []AmountScenario{AmountZero, AmountLarge, AmountSmall}
	allFills      = []FillAmountScenario{FillZero, FillGreaterThanTakerAssetAmount, FillLessThanTakerAssetAmount, FillExactlyTakerAssetAmount}
)

// DefaultSuites are the combinatorial suites run by default. Each varies a
// few dimensions and keeps the rest at their defaults.
func DefaultSuites() []Suite {
	return []Suite{
		{Name: "restrictions", Dimensions: Dimensions{
			Taker:        []TakerScenario{TakerCorrectlySpecified, TakerIncorrectlySpecified, TakerUnspecified},
			Sender:       []SenderScenario{SenderUnspecified, SenderCorrectlySpecified, SenderIncorrectlySpecified},
			FeeRecipient: []FeeRecipientScenario{FeeRecipientBurnAddress, FeeRecipientEthUserAddress, FeeRecipientMakerAddress, FeeRecipientTakerAddress},
		}},
		{Name: "amounts", Dimensions: Dimensions{
			MakerAssetAmount: allAmounts,
			TakerAssetAmount: allAmounts,
			MakerFee:         allAmounts,
			TakerFee:         allAmounts,
			FillAmount:       allFills,
		}},
		{Name: "expiration", Dimensions: Dimensions{
			Expiration: []ExpirationScenario{ExpirationInPast, ExpirationInFuture},
			FillAmount: allFills,
		}},
		{Name: "asset_data", Dimensions: Dimensions{
			MakerAssetData: TradeAssets,
			TakerAssetData: TradeAssets,
			FillAmount:     []FillAmountScenario{FillLessThanTakerAssetAmount, FillExactlyTakerAssetAmount},
		}},
		{Name: "fee_asset_data", Dimensions: Dimensions{
			MakerFeeAssetData: FeeAssets,
			TakerFeeAssetData: FeeAssets,
			FeeRecipient:      []FeeRecipientScenario{FeeRecipientEthUserAddress, FeeRecipientMakerAddress},
		}},
		{Name: "fee_in_counterparty_asset", Dimensions: Dimensions{
			MakerAssetData:    []AssetDataScenario{AssetERC20EighteenDecimals, AssetERC721, AssetERC1155NonFungible},
			TakerAssetData:    []AssetDataScenario{AssetERC20EighteenDecimals, AssetERC721, AssetERC1155Fungible},
			MakerFeeAssetData: []AssetDataScenario{AssetTakerToken},
			TakerFeeAssetData: []AssetDataScenario{AssetMakerToken},
			MakerFeeBalance:   allBalances,
			TakerFeeBalance:   allBalances,
		}},
		{Name: "maker_state", Dimensions: Dimensions{
			MakerAssetBalance:   allBalances,
			MakerAssetAllowance: allAllowances,
			MakerFeeBalance:     allBalances,
			MakerFeeAllowance:   allAllowances,
		}},
		{Name: "taker_state", Dimensions: Dimensions{
			TakerAssetBalance:   allBalances,
			TakerAssetAllowance: allAllowances,
			TakerFeeBalance:     allBalances,
			TakerFeeAllowance:   allAllowances,
		}},
		{Name: "non_fungible_state", Dimensions: Dimensions{
			MakerAssetData:      []AssetDataScenario{AssetERC721, AssetERC1155NonFungible},
			TakerAssetData:      []AssetDataScenario{AssetERC721, AssetERC1155Fungible, AssetMultiAssetERC20},
			MakerAssetBalance:   allBalances,
			MakerAssetAllowance: allAllowances,
			TakerAssetAllowance: allAllowances,
		}},
	}
}

// GenerateAllScenarios expands every default suite
func GenerateAllScenarios() []Scenario {
	var all []Scenario
	for _, suite := range DefaultSuites() {
		all = append(all, Generate(suite.Name, suite.Dimensions)...)
	}
	return all
}

// FindSuite returns the default suite called name
func FindSuite(name string) (Suite, bool) {
	for _, suite := range DefaultSuites() {
		if suite.Name == name {
			return suite, true
		}
	}
	return Suite{}, false
}
