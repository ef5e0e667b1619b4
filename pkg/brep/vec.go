package brep

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tolerance is the geometric tolerance for point equality and planarity.
const Tolerance = 1e-6

// referenceInset is how far ReferencePoint steps into a face.
const referenceInset = 1e-3

// SamePoint reports whether a and b coincide within Tolerance.
func SamePoint(a, b v3.Vec) bool {
	return a.Sub(b).Length() <= Tolerance
}

// Normalize returns v scaled to unit length. ok is false for a zero-length
// vector, which is returned unchanged.
func Normalize(v v3.Vec) (unit v3.Vec, ok bool) {
	l := v.Length()
	if l < Tolerance {
		return v, false
	}
	return v.MulScalar(1 / l), true
}

// Parallel reports whether a and b are parallel in either sense.
func Parallel(a, b v3.Vec) bool {
	ua, ok1 := Normalize(a)
	ub, ok2 := Normalize(b)
	if !ok1 || !ok2 {
		return false
	}
	return ua.Cross(ub).Length() <= Tolerance
}

// SameDirection reports whether a and b are parallel with the same sense.
func SameDirection(a, b v3.Vec) bool {
	return Parallel(a, b) && a.Dot(b) > 0
}

// Equal reports whether two vectors are equal within Tolerance.
func Equal(a, b v3.Vec) bool { return SamePoint(a, b) }

// Angle returns the angle between a and b in radians, in [0, π].
func Angle(a, b v3.Vec) float64 {
	la, lb := a.Length(), b.Length()
	if la == 0 || lb == 0 {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}
