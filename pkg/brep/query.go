package brep

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrNotParallel is returned when two faces expected to be parallel
	// planes are not.
	ErrNotParallel = errors.New("brep: faces are not parallel planes")

	// ErrCornerEdges is returned when a corner vertex is not shared by
	// exactly two boundary edges of a face.
	ErrCornerEdges = errors.New("brep: corner vertex needs exactly two boundary edges")
)

// Translation returns the vector carrying the plane of from onto the plane
// of to, measured along the normal of from.
func Translation(from, to *Face) (v3.Vec, error) {
	if !from.IsPlanar() || !to.IsPlanar() || !Parallel(from.Normal, to.Normal) {
		return v3.Vec{}, fmt.Errorf("%w: face %d and face %d", ErrNotParallel, from.ID, to.ID)
	}
	n := from.Normal
	return n.MulScalar(to.Origin().Sub(from.Origin()).Dot(n)), nil
}

// TopFace returns the planar face of f's body that faces the same way as f
// and lies furthest along its normal. A face on the outermost such plane
// returns itself.
func TopFace(f *Face) *Face {
	top, best := f, 0.0
	for _, g := range f.body.Faces {
		if g == f || !g.IsPlanar() || !SameDirection(g.Normal, f.Normal) {
			continue
		}
		if d := f.Distance(g.Origin()); d > best+Tolerance {
			top, best = g, d
		}
	}
	return top
}

// CornerEdges returns the two boundary edges of f meeting at v.
func CornerEdges(f *Face, v *Vertex) ([]*Edge, error) {
	var edges []*Edge
	for _, e := range v.edges {
		if f.HasEdge(e) {
			edges = append(edges, e)
		}
	}
	if len(edges) != 2 {
		return nil, fmt.Errorf("%w: vertex %d on face %d has %d", ErrCornerEdges, v.ID, f.ID, len(edges))
	}
	return edges, nil
}
