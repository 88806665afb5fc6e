package gateway

import "math/big"

// ParseBig parses a base-10 integer string. Empty means zero; the node
// omits prices for zero-cost reads.
func ParseBig(s string) (*big.Int, bool) {
	if s == "" {
		return big.NewInt(0), true
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
