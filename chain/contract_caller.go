package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
)

var (
	ErrUnknownAccount = errors.New("no key for account")
	ErrUnsupported    = errors.New("not supported on chain")
)

// DefaultGasLimit is the gas limit of every transaction the caller sends
const DefaultGasLimit = uint64(1_500_000)

const (
	defaultReceiptTimeout = 120 * time.Second
	receiptPollInterval   = 2 * time.Second
)

// FillResults is the fillResults tuple returned by fillOrder
type FillResults struct {
	MakerAssetFilledAmount *big.Int
	TakerAssetFilledAmount *big.Int
	MakerFeePaid           *big.Int
	TakerFeePaid           *big.Int
	ProtocolFeePaid        *big.Int
}

// ContractCaller executes fills against a deployed exchange and reads and
// sets token state through dummy token contracts
type ContractCaller struct {
	client         *ethclient.Client
	deployer       *ecdsa.PrivateKey
	exchangeAddr   common.Address
	burnAddr       common.Address
	gasLimit       uint64
	receiptTimeout time.Duration

	exchangeABI abi.ABI
	erc20ABI    abi.ABI
	erc721ABI   abi.ABI
	erc1155ABI  abi.ABI

	mu                 sync.Mutex
	keys               map[common.Address]*ecdsa.PrivateKey
	tokenDecimalsCache map[common.Address]uint8
}

// NewContractCaller creates a new ContractCaller instance. The deployer key
// pays for minting and balance setting on the dummy tokens.
func NewContractCaller(
	rpcURL string,
	deployerKeyHex string,
	exchangeAddr common.Address,
	burnAddr common.Address,
) (*ContractCaller, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	deployer, err := crypto.HexToECDSA(trimHexPrefix(deployerKeyHex))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	cc := &ContractCaller{
		client:             client,
		deployer:           deployer,
		exchangeAddr:       exchangeAddr,
		burnAddr:           burnAddr,
		gasLimit:           DefaultGasLimit,
		receiptTimeout:     defaultReceiptTimeout,
		exchangeABI:        GetExchangeABI(),
		erc20ABI:           GetDummyERC20ABI(),
		erc721ABI:          GetDummyERC721ABI(),
		erc1155ABI:         GetERC1155MintableABI(),
		keys:               make(map[common.Address]*ecdsa.PrivateKey),
		tokenDecimalsCache: make(map[common.Address]uint8),
	}
	cc.AddAccount(deployer)
	return cc, nil
}

// AddAccount registers a key so state changes owned by its address can be sent
func (cc *ContractCaller) AddAccount(key *ecdsa.PrivateKey) common.Address {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	cc.mu.Lock()
	cc.keys[addr] = key
	cc.mu.Unlock()
	return addr
}

// GetSignerAddress returns the address of the deployer
func (cc *ContractCaller) GetSignerAddress() common.Address {
	return crypto.PubkeyToAddress(cc.deployer.PublicKey)
}

// ExchangeAddress returns the exchange the caller fills against
func (cc *ContractCaller) ExchangeAddress() common.Address {
	return cc.exchangeAddr
}

// BalanceAt returns the ether balance of account in wei
func (cc *ContractCaller) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := cc.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// CheckGasBalance checks if account has enough ether for estimatedGas
func (cc *ContractCaller) CheckGasBalance(ctx context.Context, account common.Address, estimatedGas uint64) error {
	balance, err := cc.BalanceAt(ctx, account)
	if err != nil {
		return err
	}

	gasPrice, err := cc.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	// Add 20% safety margin
	estimatedGasWithMargin := new(big.Int).Mul(new(big.Int).SetUint64(estimatedGas), big.NewInt(120))
	estimatedGasWithMargin.Div(estimatedGasWithMargin, big.NewInt(100))

	requiredEth := new(big.Int).Mul(estimatedGasWithMargin, gasPrice)
	if balance.Cmp(requiredEth) < 0 {
		return fmt.Errorf("insufficient gas balance: %s has %s wei, but needs approximately %s wei for gas",
			account.Hex(),
			balance.String(),
			requiredEth.String(),
		)
	}
	return nil
}

// GetTokenDecimals gets ERC20 decimals with caching
func (cc *ContractCaller) GetTokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	cc.mu.Lock()
	decimals, ok := cc.tokenDecimalsCache[token]
	cc.mu.Unlock()
	if ok {
		return decimals, nil
	}

	out, err := cc.call(ctx, common.Address{}, token, cc.erc20ABI, "decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to get decimals of %s: %w", token.Hex(), err)
	}
	decimals = out[0].(uint8)

	cc.mu.Lock()
	cc.tokenDecimalsCache[token] = decimals
	cc.mu.Unlock()
	return decimals, nil
}

// ProtocolFee returns the ether a fill must carry: the exchange charges
// multiplier times the transaction's gas price
func ProtocolFee(multiplier, gasPrice *big.Int) *big.Int {
	if multiplier == nil || gasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(multiplier, gasPrice)
}

// ProtocolFeeMultiplier reads the exchange's protocol fee multiplier
func (cc *ContractCaller) ProtocolFeeMultiplier(ctx context.Context) (*big.Int, error) {
	out, err := cc.call(ctx, common.Address{}, cc.exchangeAddr, cc.exchangeABI, "protocolFeeMultiplier")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// FillOrder fills signed on behalf of taker, paying the protocol fee in ether.
// The fill is simulated with eth_call first so reverts come back decoded as
// *RevertError.
func (cc *ContractCaller) FillOrder(ctx context.Context, signed *SignedOrder, taker common.Address, takerAssetFillAmount *big.Int) (*FillResults, error) {
	data, err := cc.exchangeABI.Pack("fillOrder", *signed.Order, takerAssetFillAmount, signed.Signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack fillOrder: %w", err)
	}

	gasPrice, err := cc.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	multiplier, err := cc.ProtocolFeeMultiplier(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get protocol fee multiplier: %w", err)
	}
	value := ProtocolFee(multiplier, gasPrice)

	out, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		From:     taker,
		To:       &cc.exchangeAddr,
		Gas:      cc.gasLimit,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	}, nil)
	if err != nil {
		if revert, ok := revertFromError(err); ok {
			return nil, revert
		}
		return nil, fmt.Errorf("failed to call fillOrder: %w", err)
	}

	var results FillResults
	if err := cc.exchangeABI.UnpackIntoInterface(&results, "fillOrder", out); err != nil {
		return nil, fmt.Errorf("failed to unpack fill results: %w", err)
	}

	if _, err := cc.transactWithValue(ctx, taker, cc.exchangeAddr, value, gasPrice, data); err != nil {
		return nil, fmt.Errorf("failed to fill order: %w", err)
	}
	return &results, nil
}

// GetFilledAmount returns the taker asset amount already filled for an order
func (cc *ContractCaller) GetFilledAmount(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	out, err := cc.call(ctx, common.Address{}, cc.exchangeAddr, cc.exchangeABI, "filled", orderHash)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ERC20BalanceOf returns the ERC20 balance for an account
func (cc *ContractCaller) ERC20BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := cc.call(ctx, common.Address{}, token, cc.erc20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ERC20SetBalance sets a dummy token balance directly
func (cc *ContractCaller) ERC20SetBalance(ctx context.Context, token, owner common.Address, amount *big.Int) error {
	return cc.send(ctx, cc.GetSignerAddress(), token, cc.erc20ABI, "setBalance", owner, amount)
}

// ERC20Allowance returns the ERC20 allowance for owner to spender
func (cc *ContractCaller) ERC20Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := cc.call(ctx, common.Address{}, token, cc.erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ERC20Approve approves spender on behalf of owner
func (cc *ContractCaller) ERC20Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error {
	return cc.send(ctx, owner, token, cc.erc20ABI, "approve", spender, amount)
}

// ERC721OwnerOf returns the owner of a token, or the zero address if it has
// not been minted
func (cc *ContractCaller) ERC721OwnerOf(ctx context.Context, token common.Address, id *big.Int) (common.Address, error) {
	out, err := cc.call(ctx, common.Address{}, token, cc.erc721ABI, "ownerOf", id)
	if err != nil {
		// dummy tokens revert for unminted ids
		if errors.Is(err, ErrReverted) {
			return common.Address{}, nil
		}
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (cc *ContractCaller) ERC721Mint(ctx context.Context, token, to common.Address, id *big.Int) error {
	return cc.send(ctx, cc.GetSignerAddress(), token, cc.erc721ABI, "mint", to, id)
}

func (cc *ContractCaller) ERC721Transfer(ctx context.Context, token, from, to common.Address, id *big.Int) error {
	return cc.send(ctx, from, token, cc.erc721ABI, "transferFrom", from, to, id)
}

func (cc *ContractCaller) ERC721Approve(ctx context.Context, token, owner, spender common.Address, id *big.Int) error {
	return cc.send(ctx, owner, token, cc.erc721ABI, "approve", spender, id)
}

func (cc *ContractCaller) ERC721GetApproved(ctx context.Context, token common.Address, id *big.Int) (common.Address, error) {
	out, err := cc.call(ctx, common.Address{}, token, cc.erc721ABI, "getApproved", id)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (cc *ContractCaller) ERC721SetApprovalForAll(ctx context.Context, token, owner, operator common.Address, approved bool) error {
	return cc.send(ctx, owner, token, cc.erc721ABI, "setApprovalForAll", operator, approved)
}

func (cc *ContractCaller) ERC721IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	return cc.isApprovedForAll(ctx, cc.erc721ABI, token, owner, operator)
}

func (cc *ContractCaller) ERC1155BalanceOf(ctx context.Context, token, owner common.Address, id *big.Int) (*big.Int, error) {
	out, err := cc.call(ctx, common.Address{}, token, cc.erc1155ABI, "balanceOf", owner, id)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (cc *ContractCaller) ERC1155OwnerOf(ctx context.Context, token common.Address, id *big.Int) (common.Address, error) {
	out, err := cc.call(ctx, common.Address{}, token, cc.erc1155ABI, "ownerOf", id)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// ERC1155Mint mints fungible units. Unique units cannot be minted at a chosen
// id and must be created up front.
func (cc *ContractCaller) ERC1155Mint(ctx context.Context, token, to common.Address, id *big.Int, amount *big.Int) error {
	if assetdata.IsNonFungibleID(id) {
		return fmt.Errorf("%w: minting unique id %#x", ErrUnsupported, id)
	}
	return cc.send(ctx, cc.GetSignerAddress(), token, cc.erc1155ABI, "mintFungible", id, []common.Address{to}, []*big.Int{amount})
}

// ERC1155Burn moves units to the burn address; the mintable token has no burn
func (cc *ContractCaller) ERC1155Burn(ctx context.Context, token, from common.Address, id *big.Int, amount *big.Int) error {
	return cc.ERC1155Transfer(ctx, token, from, cc.burnAddr, id, amount)
}

func (cc *ContractCaller) ERC1155Transfer(ctx context.Context, token, from, to common.Address, id *big.Int, amount *big.Int) error {
	return cc.send(ctx, from, token, cc.erc1155ABI, "safeTransferFrom", from, to, id, amount, []byte{})
}

func (cc *ContractCaller) ERC1155SetApprovalForAll(ctx context.Context, token, owner, operator common.Address, approved bool) error {
	return cc.send(ctx, owner, token, cc.erc1155ABI, "setApprovalForAll", operator, approved)
}

func (cc *ContractCaller) ERC1155IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	return cc.isApprovedForAll(ctx, cc.erc1155ABI, token, owner, operator)
}

func (cc *ContractCaller) isApprovedForAll(ctx context.Context, contract abi.ABI, token, owner, operator common.Address) (bool, error) {
	out, err := cc.call(ctx, common.Address{}, token, contract, "isApprovedForAll", owner, operator)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// call runs a read-only method and returns its unpacked outputs
func (cc *ContractCaller) call(ctx context.Context, from, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		if revert, ok := revertFromError(err); ok {
			return nil, revert
		}
		return nil, err
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return out, nil
}

// send packs a state-changing call and waits for it to succeed
func (cc *ContractCaller) send(ctx context.Context, from, to common.Address, contract abi.ABI, method string, args ...interface{}) error {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", method, err)
	}
	if _, err := cc.transact(ctx, from, to, data); err != nil {
		return fmt.Errorf("%s on %s: %w", method, to.Hex(), err)
	}
	return nil
}

// transact signs and sends a transaction from an account with a known key
func (cc *ContractCaller) transact(ctx context.Context, from, to common.Address, data []byte) (*types.Receipt, error) {
	return cc.transactWithValue(ctx, from, to, new(big.Int), nil, data)
}

// transactWithValue sends value wei along with data. A nil gasPrice uses the
// node's suggestion.
func (cc *ContractCaller) transactWithValue(ctx context.Context, from, to common.Address, value, gasPrice *big.Int, data []byte) (*types.Receipt, error) {
	cc.mu.Lock()
	key, ok := cc.keys[from]
	cc.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, from.Hex())
	}

	chainID, err := cc.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	nonce, err := cc.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	if gasPrice == nil {
		gasPrice, err = cc.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	tx := types.NewTransaction(nonce, to, value, cc.gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := cc.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := cc.waitForReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction failed: tx hash %s", signedTx.Hash().Hex())
	}
	return receipt, nil
}

// waitForReceipt waits for a transaction receipt with timeout
func (cc *ContractCaller) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, cc.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := cc.client.TransactionReceipt(timeoutCtx, txHash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-timeoutCtx.Done():
			return nil, fmt.Errorf("timeout waiting for transaction receipt: %s", txHash.Hex())
		case <-ticker.C:
		}
	}
}

// Close closes the Ethereum client connection
func (cc *ContractCaller) Close() {
	if cc.client != nil {
		cc.client.Close()
	}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
