package token

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the precision of every chain's native currency.
const NativeDecimals = 18

// ToBaseUnits converts a human amount such as "1.5" to integer base units.
// Digits beyond the token's precision are truncated.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", amount)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FromBaseUnits converts integer base units to a decimal amount.
func FromBaseUnits(v *big.Int, decimals uint8) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -int32(decimals))
}

// Format renders base units with the token's precision, trailing zeros trimmed.
func Format(v *big.Int, decimals uint8) string {
	return FromBaseUnits(v, decimals).String()
}

// Gwei renders a wei amount in gwei.
func Gwei(wei *big.Int) string {
	return FromBaseUnits(wei, 9).String()
}
