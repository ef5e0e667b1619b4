// Package kernel defines the abstract geometry kernel interface.
// Implementations (sdfx, manifold) provide solid construction and
// boolean operations behind this interface. Relief tool bodies and the
// final cut are expressed only in terms of these calls, so the backend
// can be swapped without touching the corner or selection logic.
package kernel

import v3 "github.com/deadsy/sdfx/vec/v3"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
//
// Primitives are built centred on the origin in their local frame and
// placed with Orient. A Kernel is not required to be safe for concurrent
// use; callers drive it from a single goroutine.
type Kernel interface {
	// Box creates a box centred on the origin.
	Box(x, y, z float64) Solid
	// Cylinder creates a cylinder along Z, centred on the origin.
	Cylinder(height, radius float64, segments int) Solid
	// Prism extrudes a closed XY outline from z=0 to z=height.
	Prism(outline []v3.Vec, height float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid

	// Orient maps a solid from its local frame into f.
	Orient(s Solid, f Frame) Solid

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}

// DefaultSegments is the circular resolution used for cylinders by
// kernels that tessellate eagerly.
const DefaultSegments = 32
