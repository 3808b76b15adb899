// Package clamp limits numeric values to a range.
package clamp

import "golang.org/x/exp/constraints"

// Value limits v to [lo, hi].
func Value[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Symmetric limits v to [-limit, limit].
func Symmetric[T constraints.Signed | constraints.Float](v, limit T) T {
	return Value(v, -limit, limit)
}
