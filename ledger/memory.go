// Package ledger models the token contracts an exchange settles against:
// ERC20, ERC721 and ERC1155 balances, allowances and approvals, held in memory.
package ledger

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
	ErrUnknownToken          = errors.New("unknown token")
	ErrWrongTokenKind        = errors.New("wrong token standard")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotOwner              = errors.New("not token owner")
	ErrAlreadyMinted         = errors.New("token already minted")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// TokenKind is the standard a deployed token implements
type TokenKind int

const (
	TokenKindERC20 TokenKind = iota + 1
	TokenKindERC721
	TokenKindERC1155
)

func (k TokenKind) String() string {
	switch k {
	case TokenKindERC20:
		return "ERC20"
	case TokenKindERC721:
		return "ERC721"
	case TokenKindERC1155:
		return "ERC1155"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Memory is an in-memory ledger. It is not safe for concurrent use; a
// simulation run owns its ledger exclusively.
type Memory struct {
	tokens   map[common.Address]TokenKind
	decimals map[common.Address]uint8

	// token/id/owner -> amount (id is empty for ERC20)
	balances *table[*big.Int]
	// token/owner/spender -> amount
	allowances *table[*big.Int]
	// token/id -> owner, for ERC721 tokens and non-fungible ERC1155 ids
	owners *table[common.Address]
	// token/id -> approved spender
	approvals *table[common.Address]
	// token/owner/operator
	operators *table[bool]
}

// NewMemory creates an empty ledger with no deployed tokens
func NewMemory() *Memory {
	return &Memory{
		tokens:     make(map[common.Address]TokenKind),
		decimals:   make(map[common.Address]uint8),
		balances:   newTable[*big.Int](),
		allowances: newTable[*big.Int](),
		owners:     newTable[common.Address](),
		approvals:  newTable[common.Address](),
		operators:  newTable[bool](),
	}
}

// Clone returns an independent copy of the ledger. Table storage is shared
// copy-on-write, so cloning is cheap regardless of ledger size.
func (m *Memory) Clone() *Memory {
	tokens := make(map[common.Address]TokenKind, len(m.tokens))
	for k, v := range m.tokens {
		tokens[k] = v
	}
	decimals := make(map[common.Address]uint8, len(m.decimals))
	for k, v := range m.decimals {
		decimals[k] = v
	}
	return &Memory{
		tokens:     tokens,
		decimals:   decimals,
		balances:   m.balances.clone(),
		allowances: m.allowances.clone(),
		owners:     m.owners.clone(),
		approvals:  m.approvals.clone(),
		operators:  m.operators.clone(),
	}
}

// Commit replaces the state of m with that of a clone taken from it. The
// clone must not be used afterwards.
func (m *Memory) Commit(clone *Memory) {
	*m = *clone
}

// DeployERC20 registers an ERC20 token
func (m *Memory) DeployERC20(token common.Address, decimals uint8) {
	m.tokens[token] = TokenKindERC20
	m.decimals[token] = decimals
}

// DeployERC721 registers an ERC721 token
func (m *Memory) DeployERC721(token common.Address) {
	m.tokens[token] = TokenKindERC721
}

// DeployERC1155 registers an ERC1155 token
func (m *Memory) DeployERC1155(token common.Address) {
	m.tokens[token] = TokenKindERC1155
}

// GetTokenDecimals returns the decimals an ERC20 token was deployed with
func (m *Memory) GetTokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	if err := m.requireKind(token, TokenKindERC20); err != nil {
		return 0, err
	}
	return m.decimals[token], nil
}

func (m *Memory) requireKind(token common.Address, kind TokenKind) error {
	deployed, ok := m.tokens[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	if deployed != kind {
		return fmt.Errorf("%w: %s is %s, not %s", ErrWrongTokenKind, token.Hex(), deployed, kind)
	}
	return nil
}

func idKey(id *big.Int) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%064x", id)
}

func (m *Memory) balance(token common.Address, id *big.Int, owner common.Address) *big.Int {
	if amount, ok := m.balances.get(key(token.Hex(), idKey(id), owner.Hex())); ok {
		return new(big.Int).Set(amount)
	}
	return new(big.Int)
}

// setBalance never mutates a stored *big.Int: stored values are shared with clones
func (m *Memory) setBalance(token common.Address, id *big.Int, owner common.Address, amount *big.Int) {
	k := key(token.Hex(), idKey(id), owner.Hex())
	if amount.Sign() == 0 {
		m.balances.delete(k)
		return
	}
	m.balances.set(k, new(big.Int).Set(amount))
}

func (m *Memory) move(token common.Address, id *big.Int, from, to common.Address, amount *big.Int) error {
	fromBalance := m.balance(token, id, from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBalance, token.Hex(), amount)
	}
	m.setBalance(token, id, from, fromBalance.Sub(fromBalance, amount))
	toBalance := m.balance(token, id, to)
	m.setBalance(token, id, to, toBalance.Add(toBalance, amount))
	return nil
}

func (m *Memory) owner(token common.Address, id *big.Int) common.Address {
	owner, _ := m.owners.get(key(token.Hex(), idKey(id)))
	return owner
}

func (m *Memory) setOwner(token common.Address, id *big.Int, owner common.Address) {
	k := key(token.Hex(), idKey(id))
	m.approvals.delete(k)
	if owner == (common.Address{}) {
		m.owners.delete(k)
		return
	}
	m.owners.set(k, owner)
}

func (m *Memory) isOperator(token, owner, operator common.Address) bool {
	approved, _ := m.operators.get(key(token.Hex(), owner.Hex(), operator.Hex()))
	return approved
}

func (m *Memory) setOperator(token, owner, operator common.Address, approved bool) {
	k := key(token.Hex(), owner.Hex(), operator.Hex())
	if !approved {
		m.operators.delete(k)
		return
	}
	m.operators.set(k, true)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

// ERC20BalanceOf returns the token balance of owner
func (m *Memory) ERC20BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	if err := m.requireKind(token, TokenKindERC20); err != nil {
		return nil, err
	}
	return m.balance(token, nil, owner), nil
}

// ERC20SetBalance mints or burns so that owner holds exactly amount
func (m *Memory) ERC20SetBalance(ctx context.Context, token, owner common.Address, amount *big.Int) error {
	if err := m.requireKind(token, TokenKindERC20); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	m.setBalance(token, nil, owner, amount)
	return nil
}

// ERC20Allowance returns how much spender may move on behalf of owner
func (m *Memory) ERC20Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if err := m.requireKind(token, TokenKindERC20); err != nil {
		return nil, err
	}
	if amount, ok := m.allowances.get(key(token.Hex(), owner.Hex(), spender.Hex())); ok {
		return new(big.Int).Set(amount), nil
	}
	return new(big.Int), nil
}

// ERC20Approve sets the allowance of spender over owner's tokens
func (m *Memory) ERC20Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error {
	if err := m.requireKind(token, TokenKindERC20); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	k := key(token.Hex(), owner.Hex(), spender.Hex())
	if amount.Sign() == 0 {
		m.allowances.delete(k)
		return nil
	}
	m.allowances.set(k, new(big.Int).Set(amount))
	return nil
}

// ERC20TransferFrom moves amount from one holder to another on behalf of
// spender. An allowance of max uint256 is treated as unlimited and never
// decremented.
func (m *Memory) ERC20TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *big.Int) error {
	if err := m.requireKind(token, TokenKindERC20); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if spender != from {
		allowance, _ := m.ERC20Allowance(ctx, token, from, spender)
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s allows %s to move %s of %s, needs %s", ErrInsufficientAllowance, from.Hex(), spender.Hex(), allowance, token.Hex(), amount)
		}
		if err := m.move(token, nil, from, to, amount); err != nil {
			return err
		}
		if allowance.Cmp(math.MaxBig256) != 0 {
			return m.ERC20Approve(ctx, token, from, spender, allowance.Sub(allowance, amount))
		}
		return nil
	}
	return m.move(token, nil, from, to, amount)
}

// ERC721OwnerOf returns the owner of a token, or the zero address if it has
// not been minted
func (m *Memory) ERC721OwnerOf(ctx context.Context, token common.Address, id *big.Int) (common.Address, error) {
	if err := m.requireKind(token, TokenKindERC721); err != nil {
		return common.Address{}, err
	}
	return m.owner(token, id), nil
}

// ERC721Mint creates token id owned by to
func (m *Memory) ERC721Mint(ctx context.Context, token, to common.Address, id *big.Int) error {
	if err := m.requireKind(token, TokenKindERC721); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("cannot mint %s #%s to the zero address", token.Hex(), id)
	}
	if owner := m.owner(token, id); owner != (common.Address{}) {
		return fmt.Errorf("%w: %s #%s is owned by %s", ErrAlreadyMinted, token.Hex(), id, owner.Hex())
	}
	m.setOwner(token, id, to)
	return nil
}

// ERC721Approve lets spender move a single token. Only the owner may approve.
func (m *Memory) ERC721Approve(ctx context.Context, token, owner, spender common.Address, id *big.Int) error {
	if err := m.requireKind(token, TokenKindERC721); err != nil {
		return err
	}
	if current := m.owner(token, id); current != owner || current == (common.Address{}) {
		return fmt.Errorf("%w: %s does not own %s #%s", ErrNotOwner, owner.Hex(), token.Hex(), id)
	}
	k := key(token.Hex(), idKey(id))
	if spender == (common.Address{}) {
		m.approvals.delete(k)
		return nil
	}
	m.approvals.set(k, spender)
	return nil
}

// ERC721GetApproved returns the single-token approval of id
func (m *Memory) ERC721GetApproved(ctx context.Context, token common.Address, id *big.Int) (common.Address, error) {
	if err := m.requireKind(token, TokenKindERC721); err != nil {
		return common.Address{}, err
	}
	approved, _ := m.approvals.get(key(token.Hex(), idKey(id)))
	return approved, nil
}

// ERC721SetApprovalForAll grants or revokes operator over every token of owner
func (m *Memory) ERC721SetApprovalForAll(ctx context.Context, token, owner, operator common.Address, approved bool) error {
	if err := m.requireKind(token, TokenKindERC721); err != nil {
		return err
	}
	m.setOperator(token, owner, operator, approved)
	return nil
}

// ERC721IsApprovedForAll reports whether operator may move every token of owner
func (m *Memory) ERC721IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	if err := m.requireKind(token, TokenKindERC721); err != nil {
		return false, err
	}
	return m.isOperator(token, owner, operator), nil
}

// ERC721TransferFrom moves token id from its owner on behalf of spender
func (m *Memory) ERC721TransferFrom(ctx context.Context, token, spender, from, to common.Address, id *big.Int) error {
	if err := m.requireKind(token, TokenKindERC721); err != nil {
		return err
	}
	owner := m.owner(token, id)
	if owner == (common.Address{}) || owner != from {
		return fmt.Errorf("%w: %s does not own %s #%s", ErrNotOwner, from.Hex(), token.Hex(), id)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("cannot transfer %s #%s to the zero address", token.Hex(), id)
	}
	approved, _ := m.approvals.get(key(token.Hex(), idKey(id)))
	if spender != from && approved != spender && !m.isOperator(token, from, spender) {
		return fmt.Errorf("%w: %s is not approved for %s #%s", ErrInsufficientAllowance, spender.Hex(), token.Hex(), id)
	}
	m.setOwner(token, id, to)
	return nil
}

// ERC721Transfer moves a token as its owner
func (m *Memory) ERC721Transfer(ctx context.Context, token, from, to common.Address, id *big.Int) error {
	return m.ERC721TransferFrom(ctx, token, from, from, to, id)
}

// ERC1155BalanceOf returns how many units of id owner holds
func (m *Memory) ERC1155BalanceOf(ctx context.Context, token, owner common.Address, id *big.Int) (*big.Int, error) {
	if err := m.requireKind(token, TokenKindERC1155); err != nil {
		return nil, err
	}
	if assetdata.IsNonFungibleID(id) {
		if current := m.owner(token, id); current == owner && owner != (common.Address{}) {
			return big.NewInt(1), nil
		}
		return new(big.Int), nil
	}
	return m.balance(token, id, owner), nil
}

// ERC1155OwnerOf returns the owner of a non-fungible id, or the zero address
func (m *Memory) ERC1155OwnerOf(ctx context.Context, token common.Address, id *big.Int) (common.Address, error) {
	if err := m.requireKind(token, TokenKindERC1155); err != nil {
		return common.Address{}, err
	}
	if !assetdata.IsNonFungibleID(id) {
		return common.Address{}, fmt.Errorf("%w: id %s of %s is fungible", ErrWrongTokenKind, id, token.Hex())
	}
	return m.owner(token, id), nil
}

// ERC1155Mint creates amount units of id for to. Non-fungible ids can be minted
// exactly once, with an amount of one.
func (m *Memory) ERC1155Mint(ctx context.Context, token, to common.Address, id *big.Int, amount *big.Int) error {
	if err := m.requireKind(token, TokenKindERC1155); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("cannot mint %s id %s to the zero address", token.Hex(), id)
	}
	if assetdata.IsNonFungibleID(id) {
		if amount.Cmp(big.NewInt(1)) != 0 {
			return fmt.Errorf("%w: non-fungible id %s minted with amount %s", ErrInvalidAmount, id, amount)
		}
		if owner := m.owner(token, id); owner != (common.Address{}) {
			return fmt.Errorf("%w: %s id %s is owned by %s", ErrAlreadyMinted, token.Hex(), id, owner.Hex())
		}
		m.setOwner(token, id, to)
		return nil
	}
	balance := m.balance(token, id, to)
	m.setBalance(token, id, to, balance.Add(balance, amount))
	return nil
}

// ERC1155Burn destroys amount units of id held by from
func (m *Memory) ERC1155Burn(ctx context.Context, token, from common.Address, id *big.Int, amount *big.Int) error {
	if err := m.requireKind(token, TokenKindERC1155); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if assetdata.IsNonFungibleID(id) {
		if amount.Sign() == 0 {
			return nil
		}
		if owner := m.owner(token, id); owner != from || owner == (common.Address{}) {
			return fmt.Errorf("%w: %s does not own %s id %s", ErrNotOwner, from.Hex(), token.Hex(), id)
		}
		m.setOwner(token, id, common.Address{})
		return nil
	}
	balance := m.balance(token, id, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s id %s, burning %s", ErrInsufficientBalance, from.Hex(), balance, token.Hex(), id, amount)
	}
	m.setBalance(token, id, from, balance.Sub(balance, amount))
	return nil
}

// ERC1155TransferFrom moves amount units of id on behalf of spender, which must
// be the holder or one of its operators
func (m *Memory) ERC1155TransferFrom(ctx context.Context, token, spender, from, to common.Address, id *big.Int, amount *big.Int) error {
	if err := m.requireKind(token, TokenKindERC1155); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if spender != from && !m.isOperator(token, from, spender) {
		return fmt.Errorf("%w: %s is not an operator of %s on %s", ErrInsufficientAllowance, spender.Hex(), from.Hex(), token.Hex())
	}
	if assetdata.IsNonFungibleID(id) {
		if amount.Cmp(big.NewInt(1)) != 0 {
			return fmt.Errorf("%w: non-fungible id %s moved with amount %s", ErrInvalidAmount, id, amount)
		}
		if owner := m.owner(token, id); owner != from || owner == (common.Address{}) {
			return fmt.Errorf("%w: %s does not own %s id %s", ErrNotOwner, from.Hex(), token.Hex(), id)
		}
		m.setOwner(token, id, to)
		return nil
	}
	return m.move(token, id, from, to, amount)
}

// ERC1155Transfer moves units as their holder
func (m *Memory) ERC1155Transfer(ctx context.Context, token, from, to common.Address, id *big.Int, amount *big.Int) error {
	return m.ERC1155TransferFrom(ctx, token, from, from, to, id, amount)
}

// ERC1155SetApprovalForAll grants or revokes operator over every id of owner
func (m *Memory) ERC1155SetApprovalForAll(ctx context.Context, token, owner, operator common.Address, approved bool) error {
	if err := m.requireKind(token, TokenKindERC1155); err != nil {
		return err
	}
	m.setOperator(token, owner, operator, approved)
	return nil
}

// ERC1155IsApprovedForAll reports whether operator may move every id of owner
func (m *Memory) ERC1155IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	if err := m.requireKind(token, TokenKindERC1155); err != nil {
		return false, err
	}
	return m.isOperator(token, owner, operator), nil
}
