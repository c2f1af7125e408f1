package scenario

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kaifufi/exchange-fillsim-go/assets"
	"github.com/kaifufi/exchange-fillsim-go/chain"
	"github.com/kaifufi/exchange-fillsim-go/ledger"
	"github.com/kaifufi/exchange-fillsim-go/simulator"
)

// Role is the leg of an order a token is used for. Each leg trades its own
// tokens so that no two legs share a balance by accident.
type Role int

const (
	RoleMakerAsset Role = iota
	RoleTakerAsset
	RoleMakerFee
	RoleTakerFee
	roleCount
)

func (r Role) String() string {
	return enumName([]string{"makerAsset", "takerAsset", "makerFee", "takerFee"}, int(r))
}

// RoleTokens are the token contracts of one order leg
type RoleTokens struct {
	ERC20ZeroDecimals     common.Address
	ERC20FiveDecimals     common.Address
	ERC20EighteenDecimals common.Address
	ERC721                common.Address
	ERC1155               common.Address
}

// Fixture is the world a scenario run takes place in: accounts, token
// deployments, proxies and the exchange domain
type Fixture struct {
	ChainID     int64
	Exchange    common.Address
	Proxies     assets.Proxies
	BurnAddress common.Address

	MakerKey   *ecdsa.PrivateKey
	TakerKey   *ecdsa.PrivateKey
	EthUserKey *ecdsa.PrivateKey
	// StrangerKey signs nothing; its address is the wrong taker or sender
	StrangerKey *ecdsa.PrivateKey
	// HolderKey owns unique ERC1155 units until a trader needs them
	HolderKey *ecdsa.PrivateKey

	Tokens [roleCount]RoleTokens
	// MultiAssetWeights weigh the two ERC20 children of a multi-asset leg
	MultiAssetWeights [2]*big.Int

	Now func() time.Time

	mu      sync.Mutex
	nextID  uint64
	builder *chain.OrderBuilder
}

// DeterministicKey derives a private key from a seed phrase
func DeterministicKey(seed string) *ecdsa.PrivateKey {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte("fillsim/" + seed)))
	if err != nil {
		panic(fmt.Sprintf("derive key %q: %v", seed, err))
	}
	return key
}

func fixtureAddress(prefix byte, n int) common.Address {
	var a common.Address
	a[0] = prefix
	a[common.AddressLength-1] = byte(n)
	return a
}

// NewFixture creates a fixture with deterministic accounts and token
// addresses, suitable for in-memory runs
func NewFixture(chainID int64, exchange common.Address) *Fixture {
	f := &Fixture{
		ChainID:  chainID,
		Exchange: exchange,
		Proxies: assets.Proxies{
			ERC20:      fixtureAddress(0xf0, 20),
			ERC721:     fixtureAddress(0xf0, 72),
			ERC1155:    fixtureAddress(0xf0, 115),
			MultiAsset: fixtureAddress(0xf0, 99),
		},
		BurnAddress:       common.HexToAddress("0x000000000000000000000000000000000000dEaD"),
		MakerKey:          DeterministicKey("maker"),
		TakerKey:          DeterministicKey("taker"),
		EthUserKey:        DeterministicKey("eth-user"),
		StrangerKey:       DeterministicKey("stranger"),
		HolderKey:         DeterministicKey("holder"),
		MultiAssetWeights: [2]*big.Int{big.NewInt(1), big.NewInt(2)},
		Now:               time.Now,
	}
	for r := Role(0); r < roleCount; r++ {
		base := int(r) * 5
		f.Tokens[r] = RoleTokens{
			ERC20ZeroDecimals:     fixtureAddress(0x20, base),
			ERC20FiveDecimals:     fixtureAddress(0x20, base+1),
			ERC20EighteenDecimals: fixtureAddress(0x20, base+2),
			ERC721:                fixtureAddress(0x72, base+3),
			ERC1155:               fixtureAddress(0x11, base+4),
		}
	}
	return f
}

// Maker returns the maker's address
func (f *Fixture) Maker() common.Address { return crypto.PubkeyToAddress(f.MakerKey.PublicKey) }

// Taker returns the taker's address
func (f *Fixture) Taker() common.Address { return crypto.PubkeyToAddress(f.TakerKey.PublicKey) }

// EthUser returns an uninvolved account that can receive fees
func (f *Fixture) EthUser() common.Address { return crypto.PubkeyToAddress(f.EthUserKey.PublicKey) }

// Stranger returns the account used for mismatched restrictions
func (f *Fixture) Stranger() common.Address { return crypto.PubkeyToAddress(f.StrangerKey.PublicKey) }

// Holder returns the account unique ERC1155 units are minted to
func (f *Fixture) Holder() common.Address { return crypto.PubkeyToAddress(f.HolderKey.PublicKey) }

// Keys returns every key of the fixture
func (f *Fixture) Keys() []*ecdsa.PrivateKey {
	return []*ecdsa.PrivateKey{f.MakerKey, f.TakerKey, f.EthUserKey, f.StrangerKey, f.HolderKey}
}

// Domain returns the exchange domain orders are hashed under
func (f *Fixture) Domain() *chain.EIP712Domain {
	return chain.NewEIP712Domain(big.NewInt(f.ChainID), f.Exchange)
}

// OrderBuilder returns the builder orders of this fixture are signed with
func (f *Fixture) OrderBuilder() *chain.OrderBuilder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.builder == nil {
		f.builder = chain.NewOrderBuilder(f.Exchange, f.ChainID)
	}
	return f.builder
}

// NextTokenID allocates a token index no other order leg has used
func (f *Fixture) NextTokenID() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

// SeedTokenIDs makes token indexes continue after base. Runs against a
// persistent chain seed it so ids from earlier runs are not minted twice.
func (f *Fixture) SeedTokenIDs(base uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if base > f.nextID {
		f.nextID = base
	}
}

// ERC20 decimals of the fixture tokens
const (
	zeroDecimals     = 0
	fiveDecimals     = 5
	eighteenDecimals = 18
)

// ErrDecimalsMismatch is returned when a deployed ERC20 token does not have
// the decimals its leg's amounts are computed with
var ErrDecimalsMismatch = errors.New("token decimals mismatch")

// DecimalsReader reads the decimals of an ERC20 token
type DecimalsReader interface {
	GetTokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// CheckDecimals verifies every fixture ERC20 token against r
func (f *Fixture) CheckDecimals(ctx context.Context, r DecimalsReader) error {
	for role, tokens := range f.Tokens {
		for _, want := range []struct {
			token    common.Address
			decimals uint8
		}{
			{tokens.ERC20ZeroDecimals, zeroDecimals},
			{tokens.ERC20FiveDecimals, fiveDecimals},
			{tokens.ERC20EighteenDecimals, eighteenDecimals},
		} {
			got, err := r.GetTokenDecimals(ctx, want.token)
			if err != nil {
				return fmt.Errorf("failed to read decimals of %s token %s: %w", Role(role), want.token.Hex(), err)
			}
			if got != want.decimals {
				return fmt.Errorf("%w: %s token %s has %d decimals, want %d",
					ErrDecimalsMismatch, Role(role), want.token.Hex(), got, want.decimals)
			}
		}
	}
	return nil
}

// Deploy registers every fixture token on l
func (f *Fixture) Deploy(l *ledger.Memory) {
	for _, tokens := range f.Tokens {
		l.DeployERC20(tokens.ERC20ZeroDecimals, zeroDecimals)
		l.DeployERC20(tokens.ERC20FiveDecimals, fiveDecimals)
		l.DeployERC20(tokens.ERC20EighteenDecimals, eighteenDecimals)
		l.DeployERC721(tokens.ERC721)
		l.DeployERC1155(tokens.ERC1155)
	}
}

// NewSimulator creates a simulator over a fresh ledger holding the fixture's
// deployments
func (f *Fixture) NewSimulator(opts ...simulator.Option) *simulator.Simulator {
	l := ledger.NewMemory()
	f.Deploy(l)
	opts = append([]simulator.Option{simulator.WithClock(f.Now)}, opts...)
	return simulator.New(l, f.Domain(), f.Proxies, f.BurnAddress, opts...)
}
