// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used to size transform
and buffer lengths. Every function is allocation free and constant time so
it can be called from the render loop.

Usage:

	// Validate a configured transform length
	ok := bitint.IsPowerOfTwo(8192)

	// Suggest a valid length in an error message
	n := bitint.NextPowerOfTwo(3000) // 4096

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved:

	size = 8, size-1 = 7 (0111), bits.Len(7) = 3, 1<<3 = 8
	size = 9, size-1 = 8 (1000), bits.Len(8) = 4, 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Values <= 0
// return 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the base two logarithm of a power of two. The result is
// undefined for any other input.
func Log2(n int) int {
	return bits.TrailingZeros(uint(n))
}
