//go:build manifold

// Package manifold binds the Manifold library
// (https://github.com/elalish/manifold) as an alternative kernel for
// subtracting dogbone tool bodies. Manifold booleans are exact on meshes,
// so relief cuts keep crisp walls where the SDF kernel would round them.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/chazu/dogbone/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*ManifoldKernel)(nil)
var _ kernel.Solid = (*manifoldSolid)(nil)

// manifoldSolid wraps a C ManifoldManifold pointer and implements kernel.Solid.
type manifoldSolid struct {
	ptr *C.ManifoldManifold
}

// BoundingBox returns the axis-aligned bounding box of the solid.
func (s *manifoldSolid) BoundingBox() (min, max [3]float64) {
	alloc := C.manifold_alloc_box()
	bbox := C.manifold_bounding_box(alloc, s.ptr)
	defer C.manifold_delete_box(bbox)

	min[0] = float64(C.manifold_box_min_x(bbox))
	min[1] = float64(C.manifold_box_min_y(bbox))
	min[2] = float64(C.manifold_box_min_z(bbox))
	max[0] = float64(C.manifold_box_max_x(bbox))
	max[1] = float64(C.manifold_box_max_y(bbox))
	max[2] = float64(C.manifold_box_max_z(bbox))
	return min, max
}

// newSolid wraps a C ManifoldManifold pointer with Go-side finalizer
// for automatic memory management.
func newSolid(ptr *C.ManifoldManifold) *manifoldSolid {
	s := &manifoldSolid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *manifoldSolid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
type ManifoldKernel struct{}

// New creates a ManifoldKernel.
func New() (kernel.Kernel, error) {
	return &ManifoldKernel{}, nil
}

// Box creates an axis-aligned box with the given dimensions.
// The box is centred on the origin.
func (k *ManifoldKernel) Box(x, y, z float64) kernel.Solid {
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cube(alloc,
		C.double(x), C.double(y), C.double(z),
		C.int(1), // center=true
	)
	return newSolid(ptr)
}

// Cylinder creates a cylinder along Z, centred on the origin.
func (k *ManifoldKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cylinder(alloc,
		C.double(height),
		C.double(radius), // radius_low
		C.double(radius), // radius_high (same = not tapered)
		C.int(segments),
		C.int(1), // center=true
	)
	return newSolid(ptr)
}

// Union returns the boolean union of two solids.
func (k *ManifoldKernel) Union(a, b kernel.Solid) kernel.Solid {
	sa := a.(*manifoldSolid)
	sb := b.(*manifoldSolid)
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_union(alloc, sa.ptr, sb.ptr)
	return newSolid(ptr)
}

// Difference returns the boolean difference (a minus b).
func (k *ManifoldKernel) Difference(a, b kernel.Solid) kernel.Solid {
	sa := a.(*manifoldSolid)
	sb := b.(*manifoldSolid)
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_difference(alloc, sa.ptr, sb.ptr)
	return newSolid(ptr)
}

// Prism extrudes a closed XY outline from z=0 to z=height.
func (k *ManifoldKernel) Prism(outline []v3.Vec, height float64) (kernel.Solid, error) {
	if len(outline) < 3 {
		return nil, fmt.Errorf("manifold: prism outline needs at least 3 points, got %d", len(outline))
	}

	n := len(outline)
	pts := (*[1 << 28]C.ManifoldVec2)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.ManifoldVec2{}))))[:n:n]
	defer C.free(unsafe.Pointer(&pts[0]))
	for i, p := range outline {
		pts[i] = C.ManifoldVec2{x: C.double(p.X), y: C.double(p.Y)}
	}

	simple := C.manifold_simple_polygon(C.manifold_alloc_simple_polygon(), &pts[0], C.size_t(n))
	defer C.manifold_delete_simple_polygon(simple)
	polys := C.manifold_polygons(C.manifold_alloc_polygons(), &simple, 1)
	defer C.manifold_delete_polygons(polys)

	ptr := C.manifold_extrude(C.manifold_alloc_manifold(), polys,
		C.double(height),
		C.int(0),      // slices
		C.double(0),   // twist degrees
		C.double(1.0), // scale x
		C.double(1.0), // scale y
	)
	return newSolid(ptr), nil
}

// Orient maps a solid from its local frame into f using the 3x4 affine
// matrix whose columns are the frame axes followed by its origin.
func (k *ManifoldKernel) Orient(s kernel.Solid, f kernel.Frame) kernel.Solid {
	ms := s.(*manifoldSolid)
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_transform(alloc, ms.ptr,
		C.double(f.X.X), C.double(f.X.Y), C.double(f.X.Z),
		C.double(f.Y.X), C.double(f.Y.Y), C.double(f.Y.Z),
		C.double(f.Z.X), C.double(f.Z.Y), C.double(f.Z.Z),
		C.double(f.Origin.X), C.double(f.Origin.Y), C.double(f.Origin.Z),
	)
	return newSolid(ptr)
}

// ToMesh reads the solid's MeshGL. Positions are the first three vertex
// properties; normals follow when Manifold carries them, otherwise they are
// averaged from the triangles.
func (k *ManifoldKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	ms := s.(*manifoldSolid)

	gl := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), ms.ptr)
	defer C.manifold_delete_meshgl(gl)

	nv := int(C.manifold_meshgl_num_vert(gl))
	nt := int(C.manifold_meshgl_num_tri(gl))
	if nv == 0 || nt == 0 {
		return &kernel.Mesh{}, nil
	}
	stride := int(C.manifold_meshgl_num_prop(gl))
	if stride < 3 {
		return nil, fmt.Errorf("manifold: meshgl has %d properties per vertex, want at least 3", stride)
	}

	props := make([]float32, nv*stride)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&props[0])), gl)
	m := &kernel.Mesh{
		Vertices: make([]float32, 0, nv*3),
		Indices:  make([]uint32, nt*3),
	}
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&m.Indices[0])), gl)

	withNormals := stride >= 6
	if withNormals {
		m.Normals = make([]float32, 0, nv*3)
	}
	for v := 0; v < nv; v++ {
		p := props[v*stride : (v+1)*stride]
		m.Vertices = append(m.Vertices, p[0], p[1], p[2])
		if withNormals {
			m.Normals = append(m.Normals, p[3], p[4], p[5])
		}
	}
	if !withNormals {
		m.Normals = kernel.VertexNormals(m.Vertices, m.Indices)
	}
	return m, nil
}
