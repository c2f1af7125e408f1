package fillsim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/kaifufi/exchange-fillsim-go/assets"
	"github.com/kaifufi/exchange-fillsim-go/chain"
	"github.com/kaifufi/exchange-fillsim-go/scenario"
)

// Harness runs scenario suites against the configured target and compares
// every fill with the reference simulator
type Harness struct {
	cfg     *Config
	fixture *scenario.Fixture
	targets scenario.TargetFactory
	caller  *chain.ContractCaller
	// base is handed to runners, which add their own component
	base   *slog.Logger
	logger *slog.Logger
}

// NewHarness creates a Harness for cfg. A nil logger uses the global logger.
func NewHarness(cfg *Config, logger *slog.Logger) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = GetLogger()
	}

	fixture := newFixture(cfg)
	h := &Harness{
		cfg:     cfg,
		fixture: fixture,
		targets: scenario.MemoryTarget,
		base:    logger,
		logger:  logger.With("component", "harness"),
	}

	if cfg.Target == TargetChain {
		caller, err := chain.NewContractCaller(
			cfg.RPCURL,
			cfg.DeployerKey,
			fixture.Exchange,
			fixture.BurnAddress,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create contract caller: %w", err)
		}
		h.caller = caller
		h.targets = newChainTargetFactory(caller)
		// token ids minted by earlier runs stay on chain
		fixture.SeedTokenIDs(uint64(time.Now().Unix()) << 16)
	}
	return h, nil
}

// newFixture places the fixture on the configured exchange, proxies and
// token deployments. cfg must be validated.
func newFixture(cfg *Config) *scenario.Fixture {
	f := scenario.NewFixture(int64(cfg.ChainID), common.HexToAddress(cfg.Contracts.Exchange))
	f.Proxies = assets.Proxies{
		ERC20:      common.HexToAddress(cfg.Contracts.ERC20Proxy),
		ERC721:     common.HexToAddress(cfg.Contracts.ERC721Proxy),
		ERC1155:    common.HexToAddress(cfg.Contracts.ERC1155Proxy),
		MultiAsset: common.HexToAddress(cfg.Contracts.MultiAssetProxy),
	}
	for i, set := range cfg.Tokens {
		if i >= len(f.Tokens) {
			break
		}
		f.Tokens[i] = scenario.RoleTokens{
			ERC20ZeroDecimals:     common.HexToAddress(set.ERC20ZeroDecimals),
			ERC20FiveDecimals:     common.HexToAddress(set.ERC20FiveDecimals),
			ERC20EighteenDecimals: common.HexToAddress(set.ERC20EighteenDecimals),
			ERC721:                common.HexToAddress(set.ERC721),
			ERC1155:               common.HexToAddress(set.ERC1155),
		}
	}
	return f
}

// Close closes the harness and cleans up resources
func (h *Harness) Close() {
	if h.caller != nil {
		h.caller.Close()
	}
}

// Fixture returns the accounts and deployments scenarios run with
func (h *Harness) Fixture() *scenario.Fixture {
	return h.fixture
}

// Preflight checks the target before any scenario runs: its ERC20 tokens
// must have the decimals the fixture computes amounts with, and on the chain
// target every account sending transactions must be able to pay for gas.
func (h *Harness) Preflight(ctx context.Context) error {
	target, err := h.targets(ctx, h.fixture)
	if err != nil {
		return fmt.Errorf("failed to create target: %w", err)
	}
	if reader, ok := target.Assets().Ledger().(scenario.DecimalsReader); ok {
		if err := h.fixture.CheckDecimals(ctx, reader); err != nil {
			return err
		}
	}
	if h.caller == nil {
		return nil
	}
	if h.cfg.MinGasBalance != "" {
		required, err := ParseUnits(h.cfg.MinGasBalance, MaxDecimals)
		if err != nil {
			return err
		}
		accounts := []common.Address{h.caller.GetSignerAddress(), h.fixture.Maker(), h.fixture.Taker(), h.fixture.Holder()}
		for _, account := range accounts {
			balance, err := h.caller.BalanceAt(ctx, account)
			if err != nil {
				return err
			}
			h.logger.Debug("gas balance", "account", account.Hex(), "ether", FormatUnits(balance, MaxDecimals))
			if balance.Cmp(required) < 0 {
				return &InsufficientGasError{Account: account, Balance: balance, Required: required}
			}
		}
	}
	if err := h.caller.CheckGasBalance(ctx, h.fixture.Taker(), chain.DefaultGasLimit); err != nil {
		return fmt.Errorf("%w: %w", ErrInsufficientGasBalance, err)
	}
	return nil
}

// Suites returns the configured suites in order
func (h *Harness) Suites() ([]scenario.Suite, error) {
	if len(h.cfg.Run.Suites) == 0 {
		return scenario.DefaultSuites(), nil
	}
	suites := make([]scenario.Suite, 0, len(h.cfg.Run.Suites))
	for _, name := range h.cfg.Run.Suites {
		suite, ok := scenario.FindSuite(name)
		if !ok {
			return nil, &InvalidParamError{Message: fmt.Sprintf("unknown suite: %q", name)}
		}
		suites = append(suites, suite)
	}
	return suites, nil
}

// Scenarios generates the scenarios of suite, capped at the configured limit
func (h *Harness) Scenarios(suite scenario.Suite) []scenario.Scenario {
	scenarios := scenario.Generate(suite.Name, suite.Dimensions)
	if limit := h.cfg.Run.Limit; limit > 0 && len(scenarios) > limit {
		scenarios = scenarios[:limit]
	}
	return scenarios
}

// GenerateAllScenarios returns every scenario of the configured suites
func (h *Harness) GenerateAllScenarios() ([]scenario.Scenario, error) {
	suites, err := h.Suites()
	if err != nil {
		return nil, err
	}
	var all []scenario.Scenario
	for _, suite := range suites {
		all = append(all, h.Scenarios(suite)...)
	}
	return all, nil
}

// RunScenario runs a single scenario
func (h *Harness) RunScenario(ctx context.Context, s scenario.Scenario) (*scenario.Outcome, error) {
	return scenario.NewRunner(h.fixture, h.targets, h.base).RunScenario(ctx, s)
}

// RunSuites runs the configured suites in order. The summary holds whatever
// completed when an error stops the run.
func (h *Harness) RunSuites(ctx context.Context) (*RunSummary, error) {
	suites, err := h.Suites()
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Target:    h.cfg.Target,
		ChainID:   h.cfg.ChainID,
		StartedAt: time.Now(),
	}
	logger := h.logger.With("run_id", summary.RunID)
	runner := scenario.NewRunner(h.fixture, h.targets, h.base.With("run_id", summary.RunID))
	logger.Info("run started", "target", summary.Target, "suites", len(suites))

	for _, suite := range suites {
		report, err := runner.RunSuite(ctx, suite.Name, h.Scenarios(suite))
		summary.add(report)
		if err != nil {
			summary.Duration = time.Since(summary.StartedAt)
			return summary, fmt.Errorf("suite %s: %w", suite.Name, err)
		}
	}
	summary.Duration = time.Since(summary.StartedAt)

	logger.Info("run finished",
		"total", summary.Total,
		"passed", summary.Passed,
		"mismatched", summary.Mismatched,
		"skipped", summary.Skipped,
		"duration", summary.Duration.String(),
	)
	return summary, nil
}
