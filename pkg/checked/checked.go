// Package checked implements uint64 arithmetic that fails instead of wrapping.
package checked

import (
	"errors"
	"math/bits"
)

var (
	ErrOverflow  = errors.New("math overflow")
	ErrUnderflow = errors.New("math underflow")
)

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// Inc returns a+1 or ErrOverflow.
func Inc(a uint64) (uint64, error) {
	return Add(a, 1)
}

// AddInt64 returns a+b or an error if the result leaves the int64 range.
func AddInt64(a, b int64) (int64, error) {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return 0, ErrOverflow
	case b < 0 && sum > a:
		return 0, ErrUnderflow
	}
	return sum, nil
}
