package fillsim

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/kaifufi/exchange-fillsim-go/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newMemoryHarness(t *testing.T, mutate func(*Config)) *Harness {
	cfg := defaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	h, err := NewHarness(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func TestRunSuitesOnMemoryTarget(t *testing.T) {
	h := newMemoryHarness(t, func(c *Config) {
		c.Run.Suites = []string{"expiration", "restrictions"}
	})
	require.NoError(t, h.Preflight(context.Background()))

	summary, err := h.RunSuites(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.OK(), "%+v", summary.Suites)
	_, err = uuid.Parse(summary.RunID)
	assert.NoError(t, err)
	assert.Equal(t, TargetMemory, summary.Target)
	assert.Equal(t, ChainIDDevnet, summary.ChainID)

	require.Len(t, summary.Suites, 2)
	assert.Equal(t, "expiration", summary.Suites[0].Name)
	assert.Equal(t, 8, summary.Suites[0].Total)
	require.NotNil(t, summary.Suites[0].Filled)
	assert.Positive(t, summary.Suites[0].Filled.MakerAssetFilledAmount.Sign())
	assert.Equal(t, summary.Suites[0].Total+summary.Suites[1].Total, summary.Total)
	assert.Equal(t, summary.Total, summary.Passed+summary.Skipped)
}

func TestScenarioLimit(t *testing.T) {
	h := newMemoryHarness(t, func(c *Config) {
		c.Run.Suites = []string{"amounts", "expiration"}
		c.Run.Limit = 3
	})
	all, err := h.GenerateAllScenarios()
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "amounts/2", all[2].Name)
	assert.Equal(t, "expiration/0", all[3].Name)
}

func TestUnknownSuite(t *testing.T) {
	h := newMemoryHarness(t, func(c *Config) { c.Run.Suites = []string{"nope"} })
	_, err := h.RunSuites(context.Background())
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestAllSuitesByDefault(t *testing.T) {
	h := newMemoryHarness(t, nil)
	suites, err := h.Suites()
	require.NoError(t, err)
	assert.Len(t, suites, len(scenario.DefaultSuites()))
}

func TestRunSingleScenario(t *testing.T) {
	h := newMemoryHarness(t, nil)
	s := scenario.DefaultScenario()
	s.Order.Taker = scenario.TakerIncorrectlySpecified

	outcome, err := h.RunScenario(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, outcome.Passed(), outcome.Mismatches)
	assert.Equal(t, "InvalidTaker", outcome.Actual.Kind.String())
}

func TestFixtureUsesConfiguredDeployments(t *testing.T) {
	cfg := chainConfig()
	require.NoError(t, cfg.Validate())
	f := newFixture(cfg)

	assert.Equal(t, common.HexToAddress(DefaultContractAddresses[ChainIDDevnet].Exchange), f.Exchange)
	assert.Equal(t, common.HexToAddress(DefaultContractAddresses[ChainIDDevnet].ERC1155Proxy), f.Proxies.ERC1155)
	assert.Equal(t, int64(ChainIDDevnet), f.ChainID)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000a04"), f.Tokens[scenario.RoleTakerFee].ERC721)
}

func TestNewHarnessRejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Target = TargetChain
	_, err := NewHarness(cfg, quietLogger())
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestPreflightChecksTokenDecimals(t *testing.T) {
	h := newMemoryHarness(t, nil)
	require.NoError(t, h.Preflight(context.Background()))

	h.targets = func(ctx context.Context, f *scenario.Fixture) (scenario.Target, error) {
		sim := f.NewSimulator()
		sim.Ledger().DeployERC20(f.Tokens[scenario.RoleMakerFee].ERC20FiveDecimals, 6)
		return sim, nil
	}
	err := h.Preflight(context.Background())
	assert.ErrorIs(t, err, scenario.ErrDecimalsMismatch)
	assert.Contains(t, err.Error(), "makerFee")
}
