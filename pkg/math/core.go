// pkg/math/core.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"

	"golang.org/x/exp/constraints"
)

// Degrees converts an angle expressed in radians to degrees
func Degrees(r float64) float64 {
	return r * 180 / gomath.Pi
}

func Sqrt(a float64) float64 {
	return gomath.Sqrt(a)
}

func Atan2(y, x float64) float64 {
	return gomath.Atan2(y, x)
}

func Abs[V constraints.Integer | constraints.Float](x V) V {
	if x < 0 {
		return -x
	}
	return x
}

func Clamp[T constraints.Ordered](x T, low T, high T) T {
	if x < low {
		return low
	} else if x > high {
		return high
	}
	return x
}

// Lerp linearly interpolates between a and b; x=0 gives a and x=1 gives
// b.
func Lerp[F constraints.Float](x, a, b F) F {
	return (1-x)*a + x*b
}
