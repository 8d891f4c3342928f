// Package safeconv provides integer conversions for source positions.
package safeconv

import "math"

// MaxUint32 is the maximum value for uint32 type.
const MaxUint32 = uint32(math.MaxUint32)

// MustIntToUint converts int to uint, panics if negative.
// Use only when negative values are logically impossible.
func MustIntToUint(v int) uint {
	if v < 0 {
		panic("safeconv: negative int to uint conversion")
	}

	return uint(v)
}

// ClampUintToUint32 converts uint to uint32, saturating at MaxUint32.
// Editor protocols carry positions as uint32; a longer line is pinned to
// its last representable column rather than wrapped.
func ClampUintToUint32(v uint) uint32 {
	if v > uint(MaxUint32) {
		return MaxUint32
	}

	return uint32(v)
}
