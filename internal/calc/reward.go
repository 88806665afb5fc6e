package calc

import (
	"errors"
	"math/big"
)

// ErrInvalidDenominator marks a zero reward denominator. This is a
// configuration bug, not a ledger condition.
var ErrInvalidDenominator = errors.New("reward denominator must be > 0")

// MiningReward computes floor(totalMiningPower * multiplier / denominator)
// exactly. The product is taken at full width before division so the result
// matches the contract's integer arithmetic bit for bit.
func MiningReward(totalMiningPower, multiplier, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, ErrInvalidDenominator
	}
	product := new(big.Int).Mul(
		new(big.Int).SetUint64(totalMiningPower),
		new(big.Int).SetUint64(multiplier),
	)
	return product.Div(product, new(big.Int).SetUint64(denominator)).Uint64(), nil
}
