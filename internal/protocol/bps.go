package protocol

import "math/big"

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10_000

var bpsDenom = big.NewInt(BpsDenominator)

// MulDiv returns a*b/c rounded down. c must be non-zero.
func MulDiv(a, b, c *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}

// ApplyBps returns value*bps/10000 rounded down.
func ApplyBps(value *big.Int, bps uint64) *big.Int {
	if value == nil || bps == 0 {
		return new(big.Int)
	}
	return MulDiv(value, new(big.Int).SetUint64(bps), bpsDenom)
}

// ValidBps reports whether bps lies within [0, 10000].
func ValidBps(bps uint64) bool {
	return bps <= BpsDenominator
}

// Positive reports whether v is non-nil and strictly greater than zero.
func Positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// OrZero returns v, or a fresh zero when v is nil.
func OrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Min returns a copy of the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
