package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
	"github.com/kaifufi/exchange-fillsim-go/assets"
	"github.com/kaifufi/exchange-fillsim-go/chain"
	"github.com/kaifufi/exchange-fillsim-go/fill"
	"github.com/kaifufi/exchange-fillsim-go/simulator"
)

// Target executes fills. The reference simulator is one; a deployed exchange
// reached through an RPC node is another.
type Target interface {
	FillOrder(ctx context.Context, signed *chain.SignedOrder, taker common.Address, takerAssetFillAmount *big.Int) (*fill.Results, error)
	GetFilledAmount(ctx context.Context, orderHash common.Hash) (*big.Int, error)
	Assets() *assets.Layer
}

// TargetFactory creates the target a scenario runs against
type TargetFactory func(ctx context.Context, fixture *Fixture) (Target, error)

// MemoryTarget creates a fresh in-memory simulator per scenario
func MemoryTarget(ctx context.Context, fixture *Fixture) (Target, error) {
	return fixture.NewSimulator(), nil
}

// ExpectationKind is how an outcome is judged
type ExpectationKind int

const (
	// ExpectAny compares the target against the reference simulator
	ExpectAny ExpectationKind = iota
	ExpectSuccess
	ExpectFailure
)

// Expectation is the outcome a scenario should have
type Expectation struct {
	Kind  ExpectationKind
	Error simulator.ErrorKind
}

// Any expects the target to agree with the reference simulator
func Any() Expectation { return Expectation{Kind: ExpectAny} }

// Success expects the fill to succeed
func Success() Expectation { return Expectation{Kind: ExpectSuccess} }

// Failure expects the fill to fail with kind
func Failure(kind simulator.ErrorKind) Expectation {
	return Expectation{Kind: ExpectFailure, Error: kind}
}

func (e Expectation) String() string {
	switch e.Kind {
	case ExpectSuccess:
		return "Success"
	case ExpectFailure:
		return "Failure(" + e.Error.String() + ")"
	default:
		return "Any"
	}
}

// Result is what one execution of a scenario produced
type Result struct {
	Kind simulator.ErrorKind
	Err  error
	// SetupFailed is set when trader state could not be applied and no fill
	// was attempted
	SetupFailed bool
	Fill        *fill.Results
	Filled      *big.Int
	// Balances maps "leg user" to the user's balance of that leg's asset
	Balances map[string]*big.Int
}

// Outcome is the judged result of one scenario
type Outcome struct {
	Scenario  Scenario
	OrderHash common.Hash
	Reference *Result
	Actual    *Result
	// Skipped is set for degenerate scenarios and for scenarios the target
	// cannot set up, such as minting unique ERC1155 units on chain
	Skipped    bool
	Mismatches []string
}

// Passed reports whether the scenario ran and met its expectation
func (o *Outcome) Passed() bool {
	return !o.Skipped && len(o.Mismatches) == 0
}

// Runner runs scenarios against a reference simulator and a target
type Runner struct {
	fixture *Fixture
	targets TargetFactory
	orders  *OrderFactory
	mutator TraderStateMutator
	logger  *slog.Logger
}

// NewRunner creates a Runner. A nil logger logs to slog.Default().
func NewRunner(fixture *Fixture, targets TargetFactory, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		fixture: fixture,
		targets: targets,
		orders:  NewOrderFactory(fixture),
		logger:  logger.With("component", "scenario"),
	}
}

// RunScenario builds the scenario's order, applies its trader state to a
// fresh reference simulator and a fresh target, fills on both and judges the
// outcome
func (r *Runner) RunScenario(ctx context.Context, s Scenario) (*Outcome, error) {
	built, err := r.orders.Build(s.Order)
	if err != nil {
		return nil, err
	}
	requested := FillAmount(s.FillAmount, built.Order().TakerAssetAmount)
	outcome := &Outcome{Scenario: s, OrderHash: built.Hash}

	reference := r.fixture.NewSimulator(simulator.WithLogger(r.logger))
	outcome.Reference, err = r.execute(ctx, reference, s, built, requested)
	if errors.Is(err, ErrDegenerateScenario) {
		outcome.Skipped = true
		return outcome, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reference run of %s: %w", s.Name, err)
	}

	target, err := r.targets(ctx, r.fixture)
	if err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}
	outcome.Actual, err = r.execute(ctx, target, s, built, requested)
	if errors.Is(err, chain.ErrUnsupported) {
		r.logger.Debug("scenario not supported by target", "scenario", s.Name, "error", err)
		outcome.Skipped = true
		return outcome, nil
	}
	if err != nil {
		return nil, fmt.Errorf("target run of %s: %w", s.Name, err)
	}

	outcome.Mismatches = judge(s.Expectation, outcome.Reference, outcome.Actual)
	return outcome, nil
}

func (r *Runner) execute(ctx context.Context, target Target, s Scenario, built *BuiltOrder, requested *big.Int) (*Result, error) {
	layer := target.Assets()
	for _, unit := range built.UniqueUnits {
		if err := layer.Ledger().ERC1155Mint(ctx, unit.Token, r.fixture.Holder(), unit.ID, big.NewInt(1)); err != nil {
			return nil, fmt.Errorf("failed to mint unique unit %#x: %w", unit.ID, err)
		}
	}

	if err := r.applyState(ctx, layer, s, built, requested); err != nil {
		kind := simulator.KindOf(err)
		if errors.Is(err, ErrDegenerateScenario) || kind == simulator.KindUnknown {
			return nil, err
		}
		return &Result{Kind: kind, Err: err, SetupFailed: true}, nil
	}

	result := &Result{}
	result.Fill, result.Err = target.FillOrder(ctx, built.Signed, r.fixture.Taker(), requested)
	result.Kind = simulator.KindOf(result.Err)

	filled, err := target.GetFilledAmount(ctx, built.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get filled amount: %w", err)
	}
	result.Filled = filled

	if result.Balances, err = r.balances(ctx, layer, built); err != nil {
		return nil, err
	}
	return result, nil
}

// applyState sets both traders' balances and allowances. A fee paid in the
// asset the trader gives away is covered by the asset's own state.
func (r *Runner) applyState(ctx context.Context, layer *assets.Layer, s Scenario, built *BuiltOrder, requested *big.Int) error {
	makerNeeds, takerNeeds := Needs(built, requested)
	maker, taker := r.fixture.Maker(), r.fixture.Taker()
	steps := []struct {
		user      common.Address
		asset     assetdata.Descriptor
		need      Need
		balance   BalanceScenario
		allowance AllowanceScenario
		skip      bool
	}{
		{maker, built.MakerAsset, makerNeeds.Asset, s.Maker.AssetBalance, s.Maker.AssetAllowance, false},
		{maker, built.MakerFeeAsset, makerNeeds.Fee, s.Maker.FeeBalance, s.Maker.FeeAllowance, makerNeeds.FeeMerged},
		{taker, built.TakerAsset, takerNeeds.Asset, s.Taker.AssetBalance, s.Taker.AssetAllowance, false},
		{taker, built.TakerFeeAsset, takerNeeds.Fee, s.Taker.FeeBalance, s.Taker.FeeAllowance, takerNeeds.FeeMerged},
	}
	for _, step := range steps {
		if step.skip {
			continue
		}
		if err := r.mutator.Apply(ctx, layer, step.user, step.asset, step.need, step.balance, step.allowance); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) balances(ctx context.Context, layer *assets.Layer, built *BuiltOrder) (map[string]*big.Int, error) {
	order := built.Order()
	users := map[string]common.Address{
		"maker":        order.MakerAddress,
		"taker":        r.fixture.Taker(),
		"feeRecipient": order.FeeRecipientAddress,
	}
	legs := map[string]assetdata.Descriptor{
		RoleMakerAsset.String(): built.MakerAsset,
		RoleTakerAsset.String(): built.TakerAsset,
		RoleMakerFee.String():   built.MakerFeeAsset,
		RoleTakerFee.String():   built.TakerFeeAsset,
	}
	out := make(map[string]*big.Int, len(users)*len(legs))
	for legName, asset := range legs {
		for userName, user := range users {
			balance, err := layer.GetBalance(ctx, user, asset)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s balance of %s: %w", userName, legName, err)
			}
			out[legName+" "+userName] = balance
		}
	}
	return out, nil
}

func judge(e Expectation, reference, actual *Result) []string {
	switch e.Kind {
	case ExpectSuccess:
		if actual.Kind != simulator.KindNone {
			return []string{fmt.Sprintf("expected success, got %s: %v", actual.Kind, actual.Err)}
		}
		return nil
	case ExpectFailure:
		if actual.Kind != e.Error {
			return []string{fmt.Sprintf("expected %s, got %s: %v", e.Error, actual.Kind, actual.Err)}
		}
		return nil
	default:
		return Compare(reference, actual)
	}
}

// Compare lists every difference between a reference result and a target
// result
func Compare(reference, actual *Result) []string {
	var diffs []string
	if reference.Kind != actual.Kind {
		diffs = append(diffs, fmt.Sprintf("error kind: reference %s, target %s (%v)", reference.Kind, actual.Kind, actual.Err))
	}
	if reference.SetupFailed != actual.SetupFailed {
		diffs = append(diffs, fmt.Sprintf("setup failed: reference %t, target %t", reference.SetupFailed, actual.SetupFailed))
	}
	if !reference.Fill.Equal(actual.Fill) {
		diffs = append(diffs, fmt.Sprintf("fill results: reference %v, target %v", reference.Fill, actual.Fill))
	}
	if !equalAmounts(reference.Filled, actual.Filled) {
		diffs = append(diffs, fmt.Sprintf("filled amount: reference %v, target %v", reference.Filled, actual.Filled))
	}

	keys := make([]string, 0, len(reference.Balances))
	for k := range reference.Balances {
		keys = append(keys, k)
	}
	for k := range actual.Balances {
		if _, ok := reference.Balances[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !equalAmounts(reference.Balances[k], actual.Balances[k]) {
			diffs = append(diffs, fmt.Sprintf("balance %s: reference %v, target %v", k, reference.Balances[k], actual.Balances[k]))
		}
	}
	return diffs
}

func equalAmounts(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

// SuiteReport counts the outcomes of a suite
type SuiteReport struct {
	Name       string
	Total      int
	Passed     int
	Mismatched int
	Skipped    int
	// Filled totals what the target's successful fills moved
	Filled   *fill.Results
	Failures []*Outcome
}

// RunSuite runs scenarios in order and stops early only if ctx is done or a
// scenario cannot be run at all
func (r *Runner) RunSuite(ctx context.Context, name string, scenarios []Scenario) (*SuiteReport, error) {
	report := &SuiteReport{Name: name, Filled: fill.NewResults()}
	logger := r.logger.With("suite", name)
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := r.RunScenario(ctx, s)
		if err != nil {
			return report, err
		}
		report.Total++
		if outcome.Actual != nil && outcome.Actual.Fill != nil {
			report.Filled.Add(outcome.Actual.Fill)
		}
		switch {
		case outcome.Skipped:
			report.Skipped++
		case outcome.Passed():
			report.Passed++
		default:
			report.Mismatched++
			report.Failures = append(report.Failures, outcome)
			logger.Warn("scenario mismatch",
				"scenario", s.String(),
				"order_hash", outcome.OrderHash.Hex(),
				"mismatches", outcome.Mismatches,
			)
		}
	}
	logger.Info("suite finished",
		"total", report.Total,
		"passed", report.Passed,
		"mismatched", report.Mismatched,
		"skipped", report.Skipped,
		"maker_asset_filled", report.Filled.MakerAssetFilledAmount.String(),
		"taker_asset_filled", report.Filled.TakerAssetFilledAmount.String(),
	)
	return report, nil
}
