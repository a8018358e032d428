// pkg/math/vec.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"fmt"
	"log/slog"
)

// Point2 is a position on the simulation grid.
type Point2 [2]float64

func (p Point2) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", p[0], p[1])
}

func (p Point2) LogValue() slog.Value {
	return slog.GroupValue(slog.Float64("x", p[0]), slog.Float64("y", p[1]))
}

func Sub2(a, b Point2) Point2 {
	return Point2{a[0] - b[0], a[1] - b[1]}
}

// Lerp2 linearly interpolates x of the way between a and b.
func Lerp2(x float64, a, b Point2) Point2 {
	return Point2{Lerp(x, a[0], b[0]), Lerp(x, a[1], b[1])}
}

func Length2(v Point2) float64 {
	return Sqrt(v[0]*v[0] + v[1]*v[1])
}

// Distance2 returns the euclidean distance between two points.
func Distance2(a, b Point2) float64 {
	return Length2(Sub2(a, b))
}

// Heading returns the direction of travel from a to b in degrees,
// measured counterclockwise from the +x axis, in (-180, 180].
func Heading(a, b Point2) float64 {
	d := Sub2(b, a)
	return Degrees(Atan2(d[1], d[0]))
}
