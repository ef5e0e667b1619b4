// Package brep is the boundary representation dogbone reasons about:
// vertices, straight or arc edges, co-edges with winding, loops and planar
// or cylindrical faces assembled into a closed body.
//
// The representation is polyhedral and read-only once built. Identity that
// must survive a rebuild is geometric: vertices compare with SamePoint and
// faces and edges are addressed through Key values derived from their
// reference geometry.
package brep

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// CurveKind tags the geometry carried by an edge.
type CurveKind int

const (
	CurveLine CurveKind = iota
	CurveArc
)

func (c CurveKind) String() string {
	switch c {
	case CurveLine:
		return "line"
	case CurveArc:
		return "arc"
	default:
		return fmt.Sprintf("CurveKind(%d)", int(c))
	}
}

// SurfaceKind tags the geometry carried by a face.
type SurfaceKind int

const (
	SurfacePlane SurfaceKind = iota
	SurfaceCylinder
)

func (s SurfaceKind) String() string {
	switch s {
	case SurfacePlane:
		return "plane"
	case SurfaceCylinder:
		return "cylinder"
	default:
		return fmt.Sprintf("SurfaceKind(%d)", int(s))
	}
}

// Vertex is a point shared by the edges that meet there.
type Vertex struct {
	ID    int
	Point v3.Vec

	edges []*Edge
}

// Edges returns the edges incident to v in creation order.
func (v *Vertex) Edges() []*Edge { return v.edges }

// Edge joins two vertices. A closed body has exactly two co-edges per edge,
// one on each adjacent face, running in opposite directions.
type Edge struct {
	ID         int
	Start, End *Vertex
	Curve      CurveKind

	coEdges []*CoEdge
}

// CoEdges returns the uses of e by face loops, in the order the faces
// were added to the body.
func (e *Edge) CoEdges() []*CoEdge { return e.coEdges }

// Faces returns the faces adjacent to e.
func (e *Edge) Faces() []*Face {
	faces := make([]*Face, 0, len(e.coEdges))
	for _, c := range e.coEdges {
		faces = append(faces, c.Loop.Face)
	}
	return faces
}

// CoEdgeOn returns the co-edge of e used by face f, or nil.
func (e *Edge) CoEdgeOn(f *Face) *CoEdge {
	for _, c := range e.coEdges {
		if c.Loop.Face == f {
			return c
		}
	}
	return nil
}

// Vector returns End minus Start.
func (e *Edge) Vector() v3.Vec { return e.End.Point.Sub(e.Start.Point) }

// Length returns the straight-line distance between the endpoints.
func (e *Edge) Length() float64 { return e.Vector().Length() }

// Midpoint returns the point halfway between the endpoints.
func (e *Edge) Midpoint() v3.Vec {
	return e.Start.Point.Add(e.End.Point).MulScalar(0.5)
}

// Has reports whether v is one of e's endpoints.
func (e *Edge) Has(v *Vertex) bool { return e.Start == v || e.End == v }

// Other returns the endpoint of e that is not v, or nil if v is not an
// endpoint.
func (e *Edge) Other(v *Vertex) *Vertex {
	switch v {
	case e.Start:
		return e.End
	case e.End:
		return e.Start
	}
	return nil
}

// DirectionFrom returns the unit direction of e leaving v. ok is false when
// v is not an endpoint or the edge is degenerate.
func (e *Edge) DirectionFrom(v *Vertex) (dir v3.Vec, ok bool) {
	other := e.Other(v)
	if other == nil {
		return v3.Vec{}, false
	}
	return Normalize(other.Point.Sub(v.Point))
}

func (e *Edge) String() string {
	return fmt.Sprintf("edge %d (%s) %v -> %v", e.ID, e.Curve, e.Start.Point, e.End.Point)
}

// CoEdge is one use of an edge by a loop.
type CoEdge struct {
	Edge     *Edge
	Reversed bool // runs End -> Start
	Loop     *Loop
}

// Start is where the co-edge begins in loop order.
func (c *CoEdge) Start() *Vertex {
	if c.Reversed {
		return c.Edge.End
	}
	return c.Edge.Start
}

// End is where the co-edge finishes in loop order.
func (c *CoEdge) End() *Vertex {
	if c.Reversed {
		return c.Edge.Start
	}
	return c.Edge.End
}

// Vector returns the co-edge direction scaled by the edge length.
func (c *CoEdge) Vector() v3.Vec { return c.End().Point.Sub(c.Start().Point) }

// Loop is a closed chain of co-edges bounding a face. Outer loops wind
// counter-clockwise seen against the face normal; holes wind clockwise.
type Loop struct {
	Face    *Face
	Outer   bool
	CoEdges []*CoEdge
}

// Face is a bounded surface region of a body.
type Face struct {
	ID      int
	Surface SurfaceKind
	// Normal is the outward unit normal. It is only meaningful for
	// planar faces.
	Normal v3.Vec
	Loops  []*Loop

	body *Body
}

// Body returns the body that owns f.
func (f *Face) Body() *Body { return f.body }

// IsPlanar reports whether f lies on a plane.
func (f *Face) IsPlanar() bool { return f.Surface == SurfacePlane }

// Outer returns the outer loop of f.
func (f *Face) Outer() *Loop {
	if len(f.Loops) == 0 {
		return nil
	}
	return f.Loops[0]
}

// Origin returns a point on f: the start of its outer loop.
func (f *Face) Origin() v3.Vec {
	return f.Loops[0].CoEdges[0].Start().Point
}

// Edges returns the boundary edges of f in loop walk order.
func (f *Face) Edges() []*Edge {
	var edges []*Edge
	for _, l := range f.Loops {
		for _, c := range l.CoEdges {
			edges = append(edges, c.Edge)
		}
	}
	return edges
}

// Vertices returns the boundary vertices of f in loop walk order.
func (f *Face) Vertices() []*Vertex {
	var verts []*Vertex
	for _, l := range f.Loops {
		for _, c := range l.CoEdges {
			verts = append(verts, c.Start())
		}
	}
	return verts
}

// HasEdge reports whether e bounds f.
func (f *Face) HasEdge(e *Edge) bool { return e.CoEdgeOn(f) != nil }

// HasVertex reports whether v lies on the boundary of f.
func (f *Face) HasVertex(v *Vertex) bool {
	for _, e := range v.edges {
		if f.HasEdge(e) {
			return true
		}
	}
	return false
}

// Distance returns the signed distance from p to the plane of f.
func (f *Face) Distance(p v3.Vec) float64 {
	return p.Sub(f.Origin()).Dot(f.Normal)
}

// Contains reports whether p lies on f, boundary included. Non-planar
// faces never contain a point.
func (f *Face) Contains(p v3.Vec) bool {
	if !f.IsPlanar() || math.Abs(f.Distance(p)) > Tolerance {
		return false
	}
	u, w := f.axes()
	origin := f.Origin()
	project := func(q v3.Vec) [2]float64 {
		d := q.Sub(origin)
		return [2]float64{d.Dot(u), d.Dot(w)}
	}
	pt := project(p)
	for i, l := range f.Loops {
		poly := make([][2]float64, len(l.CoEdges))
		for j, c := range l.CoEdges {
			poly[j] = project(c.Start().Point)
		}
		if onBoundary(pt, poly) {
			return true
		}
		inside := pointInPolygon(pt, poly)
		if i == 0 && !inside {
			return false
		}
		if i > 0 && inside {
			return false
		}
	}
	return true
}

// ReferencePoint returns a point strictly inside f, just off the midpoint
// of the first outer edge. It is recomputable from geometry alone, so it
// finds the same face again after the body is rebuilt.
func (f *Face) ReferencePoint() v3.Vec {
	c := f.Loops[0].CoEdges[0]
	mid := c.Edge.Midpoint()
	dir, ok := Normalize(c.Vector())
	if !ok {
		return mid
	}
	inset := math.Min(referenceInset, c.Edge.Length()/4)
	return mid.Add(f.Normal.Cross(dir).MulScalar(inset))
}

// axes returns an orthonormal basis spanning the plane of f.
func (f *Face) axes() (u, w v3.Vec) {
	for _, c := range f.Loops[0].CoEdges {
		if d, ok := Normalize(c.Vector()); ok {
			return d, f.Normal.Cross(d)
		}
	}
	return v3.Vec{X: 1}, v3.Vec{Y: 1}
}

func (f *Face) String() string {
	return fmt.Sprintf("face %d (%s) n=%v", f.ID, f.Surface, f.Normal)
}

// Body is a closed solid boundary.
type Body struct {
	Name     string
	Vertices []*Vertex
	Edges    []*Edge
	Faces    []*Face
}

// FaceAt returns the first face containing p, or nil.
func (b *Body) FaceAt(p v3.Vec) *Face {
	for _, f := range b.Faces {
		if f.Contains(p) {
			return f
		}
	}
	return nil
}

// VertexAt returns the vertex at p, or nil.
func (b *Body) VertexAt(p v3.Vec) *Vertex {
	for _, v := range b.Vertices {
		if SamePoint(v.Point, p) {
			return v
		}
	}
	return nil
}

// EdgeBetween returns the edge joining the vertices at a and c in either
// order, or nil.
func (b *Body) EdgeBetween(a, c v3.Vec) *Edge {
	va := b.VertexAt(a)
	if va == nil {
		return nil
	}
	for _, e := range va.edges {
		if SamePoint(e.Other(va).Point, c) {
			return e
		}
	}
	return nil
}

// Bounds returns the axis-aligned bounds of the body's vertices.
func (b *Body) Bounds() (min, max v3.Vec) {
	if len(b.Vertices) == 0 {
		return
	}
	min, max = b.Vertices[0].Point, b.Vertices[0].Point
	for _, v := range b.Vertices[1:] {
		min = v3.Vec{X: math.Min(min.X, v.Point.X), Y: math.Min(min.Y, v.Point.Y), Z: math.Min(min.Z, v.Point.Z)}
		max = v3.Vec{X: math.Max(max.X, v.Point.X), Y: math.Max(max.Y, v.Point.Y), Z: math.Max(max.Z, v.Point.Z)}
	}
	return min, max
}

func pointInPolygon(p [2]float64, poly [][2]float64) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a[1] > p[1]) != (b[1] > p[1]) {
			x := (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1]) + a[0]
			if p[0] < x {
				inside = !inside
			}
		}
	}
	return inside
}

func onBoundary(p [2]float64, poly [][2]float64) bool {
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[j], poly[i]
		abx, aby := b[0]-a[0], b[1]-a[1]
		apx, apy := p[0]-a[0], p[1]-a[1]
		l2 := abx*abx + aby*aby
		if l2 == 0 {
			continue
		}
		t := (apx*abx + apy*aby) / l2
		if t < 0 || t > 1 {
			continue
		}
		dx, dy := apx-t*abx, apy-t*aby
		if dx*dx+dy*dy <= Tolerance*Tolerance {
			return true
		}
	}
	return false
}
