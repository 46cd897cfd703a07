/*
Package bitint provides the power-of-two helpers used to size FFT frames.

Both functions are O(1), allocation free and safe to call from the audio
hot path.

Usage:

	// Reject a configured FFT size the transform cannot use.
	if !bitint.IsPowerOfTwo(cfg.FFTSize) { ... }

	// Suggest the nearest usable size in the error message.
	hint := bitint.NextPowerOfTwo(cfg.FFTSize) // 1000 -> 1024

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map onto themselves:

	size = 8: bits.Len(7) = 3, 1<<3 = 8
	size = 9: bits.Len(8) = 4, 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Non-positive
// sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has a single bit set, so clearing the lowest set bit (n & (n-1)) leaves 0.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
