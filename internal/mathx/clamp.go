package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Integer](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Scale returns v*num/den, saturating at 255. num must stay below 2^56.
func Scale(v uint8, num, den uint64) uint8 {
	if den == 0 {
		return 0
	}
	r := uint64(v) * num / den
	if r > 255 {
		return 255
	}
	return uint8(r)
}
