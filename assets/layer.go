// Package assets reads and writes balances and proxy allowances uniformly
// across fungible, non-fungible, semi-fungible and composite assets, and moves
// assets the way the exchange's asset proxies do.
package assets

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
)

var (
	// ErrInvalidAllowance is returned when a non-fungible allowance is set to
	// something other than 0, 1 or unlimited
	ErrInvalidAllowance = errors.New("invalid allowance")

	// ErrCannotMintUniqueUnit is returned when a balance would require creating
	// a unique unit that has never been minted
	ErrCannotMintUniqueUnit = errors.New("cannot mint unique unit")

	ErrInvalidAmount        = errors.New("invalid asset amount")
	ErrTransfersUnsupported = errors.New("ledger does not support proxy transfers")
)

// InvalidAllowanceError carries the rejected allowance value
type InvalidAllowanceError struct {
	Asset assetdata.Descriptor
	Value *big.Int
}

func (e *InvalidAllowanceError) Error() string {
	return fmt.Sprintf("invalid allowance %s for %s: must be 0, 1 or unlimited", e.Value, e.Asset)
}

func (e *InvalidAllowanceError) Is(target error) bool {
	return target == ErrInvalidAllowance
}

// Unlimited returns the allowance sentinel meaning "approved for everything"
func Unlimited() *big.Int {
	return new(big.Int).Set(math.MaxBig256)
}

// IsUnlimited reports whether v is the unlimited sentinel
func IsUnlimited(v *big.Int) bool {
	return v != nil && v.Cmp(math.MaxBig256) == 0
}

// Proxies are the addresses users grant allowances to, one per asset standard
type Proxies struct {
	ERC20      common.Address
	ERC721     common.Address
	ERC1155    common.Address
	MultiAsset common.Address
}

// ERC20Ledger is the state of ERC20 tokens
type ERC20Ledger interface {
	ERC20BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	ERC20SetBalance(ctx context.Context, token, owner common.Address, amount *big.Int) error
	ERC20Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	ERC20Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error
}

// ERC721Ledger is the state of ERC721 tokens
type ERC721Ledger interface {
	ERC721OwnerOf(ctx context.Context, token common.Address, id *big.Int) (common.Address, error)
	ERC721Mint(ctx context.Context, token, to common.Address, id *big.Int) error
	ERC721Transfer(ctx context.Context, token, from, to common.Address, id *big.Int) error
	ERC721Approve(ctx context.Context, token, owner, spender common.Address, id *big.Int) error
	ERC721GetApproved(ctx context.Context, token common.Address, id *big.Int) (common.Address, error)
	ERC721SetApprovalForAll(ctx context.Context, token, owner, operator common.Address, approved bool) error
	ERC721IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error)
}

// ERC1155Ledger is the state of ERC1155 tokens
type ERC1155Ledger interface {
	ERC1155BalanceOf(ctx context.Context, token, owner common.Address, id *big.Int) (*big.Int, error)
	ERC1155OwnerOf(ctx context.Context, token common.Address, id *big.Int) (common.Address, error)
	ERC1155Mint(ctx context.Context, token, to common.Address, id *big.Int, amount *big.Int) error
	ERC1155Burn(ctx context.Context, token, from common.Address, id *big.Int, amount *big.Int) error
	ERC1155Transfer(ctx context.Context, token, from, to common.Address, id *big.Int, amount *big.Int) error
	ERC1155SetApprovalForAll(ctx context.Context, token, owner, operator common.Address, approved bool) error
	ERC1155IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error)
}

// TokenLedger is everything the layer needs to read and set trader state
type TokenLedger interface {
	ERC20Ledger
	ERC721Ledger
	ERC1155Ledger
}

// ProxyLedger moves assets on behalf of a spender, enforcing allowances
type ProxyLedger interface {
	ERC20TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *big.Int) error
	ERC721TransferFrom(ctx context.Context, token, spender, from, to common.Address, id *big.Int) error
	ERC1155TransferFrom(ctx context.Context, token, spender, from, to common.Address, id *big.Int, amount *big.Int) error
}

// Handler is implemented once per asset kind
type Handler interface {
	GetBalance(ctx context.Context, user common.Address) (*big.Int, error)
	SetBalance(ctx context.Context, user common.Address, desired *big.Int) error
	GetAllowance(ctx context.Context, user common.Address) (*big.Int, error)
	SetAllowance(ctx context.Context, user common.Address, desired *big.Int) error
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Layer dispatches asset operations to the handler of each descriptor's kind
type Layer struct {
	ledger      TokenLedger
	proxies     Proxies
	burnAddress common.Address
}

// NewLayer creates a Layer over ledger. Unique units burned by SetBalance are
// sent to burnAddress.
func NewLayer(ledger TokenLedger, proxies Proxies, burnAddress common.Address) *Layer {
	return &Layer{
		ledger:      ledger,
		proxies:     proxies,
		burnAddress: burnAddress,
	}
}

// Proxies returns the proxy addresses allowances are granted to
func (l *Layer) Proxies() Proxies {
	return l.proxies
}

// Ledger returns the token state the layer reads and writes
func (l *Layer) Ledger() TokenLedger {
	return l.ledger
}

// Handler returns the handler for d
func (l *Layer) Handler(d assetdata.Descriptor) (Handler, error) {
	switch v := d.(type) {
	case assetdata.Fungible:
		return &fungibleAsset{layer: l, asset: v}, nil
	case assetdata.NonFungible:
		if v.TokenID == nil {
			return nil, fmt.Errorf("%s has no token id", v)
		}
		return &nonFungibleAsset{layer: l, asset: v}, nil
	case assetdata.SemiFungible:
		if len(v.IDs) != len(v.Values) {
			return nil, fmt.Errorf("%s has %d ids and %d values", v, len(v.IDs), len(v.Values))
		}
		return &semiFungibleAsset{layer: l, asset: v}, nil
	case assetdata.Composite:
		if len(v.Weights) != len(v.Children) {
			return nil, fmt.Errorf("%s has %d weights and %d children", v, len(v.Weights), len(v.Children))
		}
		return &compositeAsset{layer: l, asset: v}, nil
	default:
		return nil, fmt.Errorf("unsupported asset descriptor %T", d)
	}
}

// GetBalance returns how much of asset user can currently deliver
func (l *Layer) GetBalance(ctx context.Context, user common.Address, asset assetdata.Descriptor) (*big.Int, error) {
	h, err := l.Handler(asset)
	if err != nil {
		return nil, err
	}
	return h.GetBalance(ctx, user)
}

// SetBalance mints, burns or moves units until user holds desired of asset
func (l *Layer) SetBalance(ctx context.Context, user common.Address, asset assetdata.Descriptor, desired *big.Int) error {
	if err := checkDesired(desired); err != nil {
		return err
	}
	h, err := l.Handler(asset)
	if err != nil {
		return err
	}
	return h.SetBalance(ctx, user, desired)
}

// GetAllowance returns how much of asset the proxies may move for user
func (l *Layer) GetAllowance(ctx context.Context, user common.Address, asset assetdata.Descriptor) (*big.Int, error) {
	h, err := l.Handler(asset)
	if err != nil {
		return nil, err
	}
	return h.GetAllowance(ctx, user)
}

// SetAllowance grants the proxies desired of asset on behalf of user
func (l *Layer) SetAllowance(ctx context.Context, user common.Address, asset assetdata.Descriptor, desired *big.Int) error {
	if err := checkDesired(desired); err != nil {
		return err
	}
	h, err := l.Handler(asset)
	if err != nil {
		return err
	}
	return h.SetAllowance(ctx, user, desired)
}

// Transfer moves amount of asset from one user to another through the proxies
func (l *Layer) Transfer(ctx context.Context, from, to common.Address, asset assetdata.Descriptor, amount *big.Int) error {
	if err := checkDesired(amount); err != nil {
		return err
	}
	h, err := l.Handler(asset)
	if err != nil {
		return err
	}
	return h.Transfer(ctx, from, to, amount)
}

func (l *Layer) proxyLedger() (ProxyLedger, error) {
	pl, ok := l.ledger.(ProxyLedger)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrTransfersUnsupported, l.ledger)
	}
	return pl, nil
}

func checkDesired(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, v)
	}
	return nil
}
