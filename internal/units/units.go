// Package units converts between human-entered decimal amounts and the
// 24-decimal minor-unit integers the engine works in. The conversion must be
// bit-exact in both directions; no rounding drift across a round trip.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"giveaway/internal/models"
)

// Decimals is the number of decimal places in the minor-unit representation.
const Decimals = 24

var one = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// One returns the number of minor units in one whole token.
func One() *big.Int {
	return new(big.Int).Set(one)
}

// Whole returns n whole tokens in minor units.
func Whole(n int64) models.Balance {
	return models.NewBalance(new(big.Int).Mul(big.NewInt(n), one))
}

// ToMinor converts a human decimal amount ("0.3") to minor units.
// Amounts with more than Decimals fractional digits are rejected rather than
// rounded.
func ToMinor(amount string) (models.Balance, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return models.Balance{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.Sign() < 0 {
		return models.Balance{}, fmt.Errorf("negative amount %q", amount)
	}
	shifted := d.Shift(Decimals)
	if !shifted.IsInteger() {
		return models.Balance{}, fmt.Errorf("amount %q has more than %d decimal places", amount, Decimals)
	}
	return models.NewBalance(shifted.BigInt()), nil
}

// FromMinor converts minor units back to a human decimal string with no
// trailing zeros.
func FromMinor(b models.Balance) string {
	return decimal.NewFromBigInt(b.BigInt(), -Decimals).String()
}
