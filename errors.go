package fillsim

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidParam represents an invalid parameter error
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrInsufficientGasBalance represents insufficient gas balance error
	ErrInsufficientGasBalance = errors.New("insufficient gas balance")
)

// InvalidParamError represents an invalid parameter error with context
type InvalidParamError struct {
	Message string
}

func (e *InvalidParamError) Error() string {
	return e.Message
}

func (e *InvalidParamError) Is(target error) bool {
	return target == ErrInvalidParam
}

// InsufficientGasError is returned when an account that sends transactions
// holds less ether than the configured minimum
type InsufficientGasError struct {
	Account  common.Address
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientGasError) Error() string {
	return fmt.Sprintf("insufficient gas balance: %s has %s ether, needs at least %s",
		e.Account.Hex(),
		FormatUnits(e.Balance, MaxDecimals),
		FormatUnits(e.Required, MaxDecimals),
	)
}

func (e *InsufficientGasError) Is(target error) bool {
	return target == ErrInsufficientGasBalance
}
