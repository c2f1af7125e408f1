package fillsim

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimals is the precision of ether
const MaxDecimals = 18

var maxUint256 = new(big.Int).Lsh(big.NewInt(1), 256)

// ParseUnits converts a human-readable amount such as "0.05" to base units.
// Digits beyond decimals are truncated.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, &InvalidParamError{Message: fmt.Sprintf("decimals must be between 0 and %d, got: %d", MaxDecimals, decimals)}
	}

	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid amount %q: %s", amount, err)}
	}
	if d.IsNegative() {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount must not be negative, got: %s", amount)}
	}

	result := d.Shift(int32(decimals)).BigInt()
	if result.Cmp(maxUint256) >= 0 {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount too large for uint256: %s", result.String())}
	}
	return result, nil
}

// FormatUnits renders base units as a human-readable amount
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
