package brep

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrNotClosed is returned by Build when an edge is not shared by exactly
// two oppositely wound co-edges.
var ErrNotClosed = errors.New("brep: body is not closed")

// Builder assembles a Body face by face. Vertices are merged
// geometrically, and edges are shared between the faces that use the same
// vertex pair.
type Builder struct {
	body  *Body
	edges map[[2]int]*Edge
	err   error
}

// NewBuilder starts an empty body with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		body:  &Body{Name: name},
		edges: make(map[[2]int]*Edge),
	}
}

// Vertex returns the vertex at p, creating it when no existing vertex lies
// within Tolerance.
func (b *Builder) Vertex(p v3.Vec) *Vertex {
	if v := b.body.VertexAt(p); v != nil {
		return v
	}
	v := &Vertex{ID: len(b.body.Vertices), Point: p}
	b.body.Vertices = append(b.body.Vertices, v)
	return v
}

// Face adds a planar face bounded by an outer loop and optional holes.
// The outer loop must wind counter-clockwise about the outward normal and
// holes clockwise.
func (b *Builder) Face(outer []v3.Vec, holes ...[]v3.Vec) *Face {
	return b.Surface(SurfacePlane, outer, holes...)
}

// Surface adds a face of the given surface kind. The polygon loops
// approximate its boundary.
func (b *Builder) Surface(kind SurfaceKind, outer []v3.Vec, holes ...[]v3.Vec) *Face {
	if b.err != nil {
		return nil
	}
	f := &Face{ID: len(b.body.Faces), Surface: kind, body: b.body}

	n, ok := Normalize(newell(outer))
	if !ok {
		b.err = fmt.Errorf("brep: face %d has a degenerate outer loop", f.ID)
		return nil
	}
	f.Normal = n

	for i, pts := range append([][]v3.Vec{outer}, holes...) {
		if len(pts) < 3 {
			b.err = fmt.Errorf("brep: face %d loop %d needs at least 3 points, got %d", f.ID, i, len(pts))
			return nil
		}
		l := &Loop{Face: f, Outer: i == 0}
		for j := range pts {
			from := b.Vertex(pts[j])
			to := b.Vertex(pts[(j+1)%len(pts)])
			if from == to {
				b.err = fmt.Errorf("brep: face %d loop %d has a zero-length edge at %v", f.ID, i, pts[j])
				return nil
			}
			l.CoEdges = append(l.CoEdges, b.coEdge(l, from, to))
		}
		f.Loops = append(f.Loops, l)
	}

	b.body.Faces = append(b.body.Faces, f)
	return f
}

// SetCurve retags the edge between a and c.
func (b *Builder) SetCurve(a, c v3.Vec, kind CurveKind) error {
	e := b.body.EdgeBetween(a, c)
	if e == nil {
		return fmt.Errorf("brep: no edge between %v and %v", a, c)
	}
	e.Curve = kind
	return nil
}

func (b *Builder) coEdge(l *Loop, from, to *Vertex) *CoEdge {
	key := [2]int{from.ID, to.ID}
	if key[0] > key[1] {
		key[0], key[1] = key[1], key[0]
	}
	e, ok := b.edges[key]
	if !ok {
		e = &Edge{ID: len(b.body.Edges), Start: from, End: to, Curve: CurveLine}
		b.edges[key] = e
		b.body.Edges = append(b.body.Edges, e)
		from.edges = append(from.edges, e)
		to.edges = append(to.edges, e)
	}
	c := &CoEdge{Edge: e, Reversed: e.Start != from, Loop: l}
	e.coEdges = append(e.coEdges, c)
	return c
}

// Build validates closure and returns the body. The builder must not be
// used afterwards.
func (b *Builder) Build() (*Body, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, e := range b.body.Edges {
		if len(e.coEdges) != 2 {
			return nil, fmt.Errorf("%w: edge %d has %d co-edges", ErrNotClosed, e.ID, len(e.coEdges))
		}
		if e.coEdges[0].Reversed == e.coEdges[1].Reversed {
			return nil, fmt.Errorf("%w: edge %d is used twice in the same direction", ErrNotClosed, e.ID)
		}
	}
	return b.body, nil
}

// newell returns the area-weighted normal of a polygon.
func newell(pts []v3.Vec) v3.Vec {
	var n v3.Vec
	for i := range pts {
		a, c := pts[i], pts[(i+1)%len(pts)]
		n.X += (a.Y - c.Y) * (a.Z + c.Z)
		n.Y += (a.Z - c.Z) * (a.X + c.X)
		n.Z += (a.X - c.X) * (a.Y + c.Y)
	}
	return n
}
