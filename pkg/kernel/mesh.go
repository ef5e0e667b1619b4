package kernel

import v3 "github.com/deadsy/sdfx/vec/v3"

// MeshRole tells a viewer what a mesh represents.
type MeshRole string

const (
	RoleBody MeshRole = "body" // target body, cut or uncut
	RoleTool MeshRole = "tool" // relief tool body preview
)

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // occurrence path the mesh belongs to
	Role     MeshRole  `json:"role"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Bounds returns the axis-aligned bounds of the mesh vertices.
// An empty mesh returns zero bounds.
func (m *Mesh) Bounds() (min, max [3]float32) {
	if m.IsEmpty() {
		return min, max
	}
	copy(min[:], m.Vertices[0:3])
	copy(max[:], m.Vertices[0:3])
	for i := 3; i+2 < len(m.Vertices); i += 3 {
		for j := 0; j < 3; j++ {
			v := m.Vertices[i+j]
			if v < min[j] {
				min[j] = v
			}
			if v > max[j] {
				max[j] = v
			}
		}
	}
	return min, max
}

// VertexNormals averages the area-weighted normals of the triangles that
// share each vertex. Vertices no triangle touches keep a zero normal.
func VertexNormals(vertices []float32, indices []uint32) []float32 {
	at := func(i uint32) v3.Vec {
		return v3.Vec{X: float64(vertices[i*3]), Y: float64(vertices[i*3+1]), Z: float64(vertices[i*3+2])}
	}
	sum := make([]v3.Vec, len(vertices)/3)
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		n := at(b).Sub(at(a)).Cross(at(c).Sub(at(a)))
		sum[a] = sum[a].Add(n)
		sum[b] = sum[b].Add(n)
		sum[c] = sum[c].Add(n)
	}
	out := make([]float32, 0, len(vertices))
	for _, n := range sum {
		if l := n.Length(); l > 1e-12 {
			n = n.DivScalar(l)
		}
		out = append(out, float32(n.X), float32(n.Y), float32(n.Z))
	}
	return out
}
