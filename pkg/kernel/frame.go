package kernel

import (
	"errors"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// frameTolerance is the length below which an axis is treated as zero.
const frameTolerance = 1e-9

// ErrDegenerateFrame is returned when frame axes are zero-length or parallel.
var ErrDegenerateFrame = errors.New("kernel: degenerate frame axes")

// Frame is a right-handed orthonormal coordinate frame. It maps points
// from a local space (primitive or component definition space) into its
// parent space: p' = Origin + X*p.X + Y*p.Y + Z*p.Z.
type Frame struct {
	Origin v3.Vec `json:"origin"`
	X      v3.Vec `json:"x"`
	Y      v3.Vec `json:"y"`
	Z      v3.Vec `json:"z"`
}

// Identity returns the identity frame.
func Identity() Frame {
	return Frame{
		X: v3.Vec{X: 1},
		Y: v3.Vec{Y: 1},
		Z: v3.Vec{Z: 1},
	}
}

// FrameFromAxes builds a frame whose X axis is x and whose Y axis is the
// component of y perpendicular to x. Z completes the right-handed set.
func FrameFromAxes(origin, x, y v3.Vec) (Frame, error) {
	if x.Length() < frameTolerance {
		return Frame{}, ErrDegenerateFrame
	}
	xn := x.MulScalar(1 / x.Length())
	yp := y.Sub(xn.MulScalar(y.Dot(xn)))
	if yp.Length() < frameTolerance {
		return Frame{}, ErrDegenerateFrame
	}
	yn := yp.MulScalar(1 / yp.Length())
	return Frame{Origin: origin, X: xn, Y: yn, Z: xn.Cross(yn)}, nil
}

// FrameAlong builds a frame at origin whose Z axis points along axis.
// The X axis is an arbitrary perpendicular.
func FrameAlong(origin, axis v3.Vec) (Frame, error) {
	if axis.Length() < frameTolerance {
		return Frame{}, ErrDegenerateFrame
	}
	z := axis.MulScalar(1 / axis.Length())
	ref := v3.Vec{X: 1}
	if math.Abs(z.X) > 0.9 {
		ref = v3.Vec{Y: 1}
	}
	x := ref.Sub(z.MulScalar(ref.Dot(z)))
	x = x.MulScalar(1 / x.Length())
	return Frame{Origin: origin, X: x, Y: z.Cross(x), Z: z}, nil
}

// FromEuler builds a frame from a translation and Euler angles in degrees.
// Rotation order is X, then Y, then Z (R = Rz * Ry * Rx).
func FromEuler(translation, rotation v3.Vec) Frame {
	rx := rotation.X * math.Pi / 180.0
	ry := rotation.Y * math.Pi / 180.0
	rz := rotation.Z * math.Pi / 180.0

	rot := func(p v3.Vec) v3.Vec {
		// X
		p = v3.Vec{X: p.X, Y: p.Y*math.Cos(rx) - p.Z*math.Sin(rx), Z: p.Y*math.Sin(rx) + p.Z*math.Cos(rx)}
		// Y
		p = v3.Vec{X: p.X*math.Cos(ry) + p.Z*math.Sin(ry), Y: p.Y, Z: -p.X*math.Sin(ry) + p.Z*math.Cos(ry)}
		// Z
		return v3.Vec{X: p.X*math.Cos(rz) - p.Y*math.Sin(rz), Y: p.X*math.Sin(rz) + p.Y*math.Cos(rz), Z: p.Z}
	}

	return Frame{
		Origin: translation,
		X:      rot(v3.Vec{X: 1}),
		Y:      rot(v3.Vec{Y: 1}),
		Z:      rot(v3.Vec{Z: 1}),
	}
}

// Apply maps a local point into the parent space.
func (f Frame) Apply(p v3.Vec) v3.Vec {
	return f.Origin.Add(f.ApplyDir(p))
}

// ApplyDir maps a local direction into the parent space.
func (f Frame) ApplyDir(d v3.Vec) v3.Vec {
	return f.X.MulScalar(d.X).Add(f.Y.MulScalar(d.Y)).Add(f.Z.MulScalar(d.Z))
}

// Inverse maps a parent-space point back into the local space.
func (f Frame) Inverse(p v3.Vec) v3.Vec {
	return f.InverseDir(p.Sub(f.Origin))
}

// InverseDir maps a parent-space direction back into the local space.
func (f Frame) InverseDir(d v3.Vec) v3.Vec {
	return v3.Vec{X: d.Dot(f.X), Y: d.Dot(f.Y), Z: d.Dot(f.Z)}
}

// Compose returns the frame that first applies child and then f.
func (f Frame) Compose(child Frame) Frame {
	return Frame{
		Origin: f.Apply(child.Origin),
		X:      f.ApplyDir(child.X),
		Y:      f.ApplyDir(child.Y),
		Z:      f.ApplyDir(child.Z),
	}
}

// IsIdentity reports whether f is the identity frame within tolerance.
func (f Frame) IsIdentity() bool {
	id := Identity()
	near := func(a, b v3.Vec) bool { return a.Sub(b).Length() < frameTolerance }
	return near(f.Origin, id.Origin) && near(f.X, id.X) && near(f.Y, id.Y) && near(f.Z, id.Z)
}

// RotateAbout rotates v about the unit axis by angle radians
// (right-handed, Rodrigues' formula).
func RotateAbout(v, axis v3.Vec, angle float64) v3.Vec {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return v.MulScalar(c).
		Add(axis.Cross(v).MulScalar(s)).
		Add(axis.MulScalar(axis.Dot(v) * (1 - c)))
}
