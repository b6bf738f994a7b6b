package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Parse reads a non-negative base-10 integer amount. Empty input is zero.
func Parse(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", value)
	}
	return parsed, nil
}

// String renders an amount in smallest units; nil renders as "0".
func String(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

// Format renders an amount in whole tokens given the token decimals.
func Format(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// Ratio returns num/den as a decimal with the given number of places. A zero
// denominator yields zero.
func Ratio(num, den *big.Int, places int32) decimal.Decimal {
	if num == nil || den == nil || den.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), places)
}
