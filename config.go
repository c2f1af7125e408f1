package fillsim

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// ChainID represents a blockchain chain ID
type ChainID int64

const (
	ChainIDMainnet ChainID = 1    // Ethereum mainnet
	ChainIDDevnet  ChainID = 1337 // ganache snapshot with the exchange deployed
)

// SupportedChainIDs lists all supported chain IDs
var SupportedChainIDs = []ChainID{ChainIDMainnet, ChainIDDevnet}

// ContractAddresses holds the exchange and asset proxy addresses of a chain
type ContractAddresses struct {
	Exchange        string `yaml:"exchange" envconfig:"EXCHANGE_ADDRESS"`
	ERC20Proxy      string `yaml:"erc20Proxy" envconfig:"ERC20_PROXY_ADDRESS"`
	ERC721Proxy     string `yaml:"erc721Proxy" envconfig:"ERC721_PROXY_ADDRESS"`
	ERC1155Proxy    string `yaml:"erc1155Proxy" envconfig:"ERC1155_PROXY_ADDRESS"`
	MultiAssetProxy string `yaml:"multiAssetProxy" envconfig:"MULTI_ASSET_PROXY_ADDRESS"`
}

// DefaultContractAddresses maps chain IDs to their contract addresses
var DefaultContractAddresses = map[ChainID]ContractAddresses{
	ChainIDMainnet: {
		Exchange:        "0x61935cbdd02287b511119ddb11aeb42f1593b7ef",
		ERC20Proxy:      "0x95e6f48254609a6ee006f7d493c8e5fb97094cef",
		ERC721Proxy:     "0xefc70a1b18c432bdc64b596838b4d138f6bc6cad",
		ERC1155Proxy:    "0x7eefbd48fd63d441ec7435d024ec7c5131019add",
		MultiAssetProxy: "0xef701d5389ae74503d633396c4d654eabedc9d78",
	},
	ChainIDDevnet: {
		Exchange:        "0x48bacb9266a570d521063ef5dd96e61686dbe788",
		ERC20Proxy:      "0x1dc4c1cefef38a777b15aa20260a54e584b16c48",
		ERC721Proxy:     "0x1d7022f5b17d2f8b695918fb48fa1089c9f85401",
		ERC1155Proxy:    "0x6a4a62e5a7ed13c361b176a5f62c2ee620ac0df8",
		MultiAssetProxy: "0xcfc18cec799fbd1793b5c43e773c98d4d61cc2db",
	},
}

const (
	TargetMemory = "memory"
	TargetChain  = "chain"
)

type Config struct {
	Logging       LoggingConfig     `yaml:"logging"`
	ChainID       ChainID           `yaml:"chainId" envconfig:"CHAIN_ID"`
	Target        string            `yaml:"target" envconfig:"TARGET"`
	RPCURL        string            `yaml:"rpcUrl" envconfig:"RPC_URL"`
	DeployerKey   string            `yaml:"deployerKey" envconfig:"DEPLOYER_KEY"`
	MinGasBalance string            `yaml:"minGasBalance" envconfig:"MIN_GAS_BALANCE"`
	Contracts     ContractAddresses `yaml:"contracts"`
	// Tokens are the dummy token deployments of each order leg, in the
	// order maker asset, taker asset, maker fee, taker fee
	Tokens []TokenSetConfig `yaml:"tokens"`
	Run    RunConfig        `yaml:"run"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOGGING_LEVEL"`
}

type TokenSetConfig struct {
	ERC20ZeroDecimals     string `yaml:"erc20ZeroDecimals"`
	ERC20FiveDecimals     string `yaml:"erc20FiveDecimals"`
	ERC20EighteenDecimals string `yaml:"erc20EighteenDecimals"`
	ERC721                string `yaml:"erc721"`
	ERC1155               string `yaml:"erc1155"`
}

type RunConfig struct {
	// Suites selects suites by name. Empty runs every suite.
	Suites []string `yaml:"suites" envconfig:"SUITES"`
	// Limit caps the scenarios run per suite. Zero runs them all.
	Limit int `yaml:"limit" envconfig:"SCENARIO_LIMIT"`
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		ChainID:       ChainIDDevnet,
		Target:        TargetMemory,
		RPCURL:        "http://localhost:8545",
		MinGasBalance: "0.05",
	}
}

// Singleton config instance with default values
var globalConfig = defaultConfig()

func Load(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %s", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %s", err)
		}
	}
	// We use "dummy" as the app name here to (mostly) prevent picking up env
	// vars that we hadn't explicitly specified in annotations above
	err := envconfig.Process("dummy", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %s", err)
	}
	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

// GetConfig returns the global config instance
func GetConfig() *Config {
	return globalConfig
}

// Validate checks the target settings and fills in default contract
// addresses for the chain
func (cfg *Config) Validate() error {
	if !isSupportedChainID(cfg.ChainID) {
		return &InvalidParamError{
			Message: fmt.Sprintf("chain_id must be one of %v", SupportedChainIDs),
		}
	}

	defaults := DefaultContractAddresses[cfg.ChainID]
	for _, field := range []struct {
		value    *string
		fallback string
	}{
		{&cfg.Contracts.Exchange, defaults.Exchange},
		{&cfg.Contracts.ERC20Proxy, defaults.ERC20Proxy},
		{&cfg.Contracts.ERC721Proxy, defaults.ERC721Proxy},
		{&cfg.Contracts.ERC1155Proxy, defaults.ERC1155Proxy},
		{&cfg.Contracts.MultiAssetProxy, defaults.MultiAssetProxy},
	} {
		if *field.value == "" {
			*field.value = field.fallback
		}
		if !common.IsHexAddress(*field.value) {
			return &InvalidParamError{Message: fmt.Sprintf("invalid contract address: %q", *field.value)}
		}
	}

	if cfg.Run.Limit < 0 {
		return &InvalidParamError{Message: fmt.Sprintf("scenario limit must not be negative, got: %d", cfg.Run.Limit)}
	}

	switch cfg.Target {
	case TargetMemory:
		return nil
	case TargetChain:
	default:
		return &InvalidParamError{
			Message: fmt.Sprintf("target must be %q or %q, got: %q", TargetMemory, TargetChain, cfg.Target),
		}
	}

	if cfg.RPCURL == "" {
		return &InvalidParamError{Message: "rpc_url is required for the chain target"}
	}
	if cfg.DeployerKey == "" {
		return &InvalidParamError{Message: "deployer_key is required for the chain target"}
	}
	if len(cfg.Tokens) != 4 {
		return &InvalidParamError{
			Message: fmt.Sprintf("the chain target needs token deployments for 4 order legs, got: %d", len(cfg.Tokens)),
		}
	}
	for i, set := range cfg.Tokens {
		for _, addr := range set.addresses() {
			if !common.IsHexAddress(addr) {
				return &InvalidParamError{Message: fmt.Sprintf("invalid token address for leg %d: %q", i, addr)}
			}
		}
	}
	if cfg.MinGasBalance != "" {
		if _, err := ParseUnits(cfg.MinGasBalance, MaxDecimals); err != nil {
			return err
		}
	}
	return nil
}

func (t TokenSetConfig) addresses() []string {
	return []string{t.ERC20ZeroDecimals, t.ERC20FiveDecimals, t.ERC20EighteenDecimals, t.ERC721, t.ERC1155}
}

func isSupportedChainID(id ChainID) bool {
	for _, supportedID := range SupportedChainIDs {
		if id == supportedID {
			return true
		}
	}
	return false
}
