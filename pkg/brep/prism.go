package brep

import (
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Prism builds a straight extrusion of outline from z=0 to z=height.
func Prism(name string, outline []v2.Vec, height float64) (*Body, error) {
	return PocketedPrism(name, outline, height, 0)
}

// PocketedPrism builds a prism of outline from z=0 to z=height with blind
// pockets sunk from the top face down to z=floor. Polygons may wind either
// way; they are normalised to counter-clockwise.
//
// Faces are added top, pocket floors and walls, outer sides, bottom, so the
// top face is always Faces[0].
func PocketedPrism(name string, outline []v2.Vec, height, floor float64, pockets ...[]v2.Vec) (*Body, error) {
	b := NewBuilder(name)
	outline = ccw(outline)

	at := func(p v2.Vec, z float64) v3.Vec { return v3.Vec{X: p.X, Y: p.Y, Z: z} }
	ring := func(poly []v2.Vec, z float64, reverse bool) []v3.Vec {
		pts := make([]v3.Vec, len(poly))
		for i, p := range poly {
			if reverse {
				pts[len(poly)-1-i] = at(p, z)
			} else {
				pts[i] = at(p, z)
			}
		}
		return pts
	}

	wound := make([][]v2.Vec, len(pockets))
	var holes [][]v3.Vec
	for i, p := range pockets {
		wound[i] = ccw(p)
		holes = append(holes, ring(wound[i], height, true))
	}
	b.Face(ring(outline, height, false), holes...)

	for _, p := range wound {
		b.Face(ring(p, floor, false))
		for i := range p {
			a, c := p[i], p[(i+1)%len(p)]
			b.Face([]v3.Vec{at(a, height), at(c, height), at(c, floor), at(a, floor)})
		}
	}

	for i := range outline {
		a, c := outline[i], outline[(i+1)%len(outline)]
		b.Face([]v3.Vec{at(a, 0), at(c, 0), at(c, height), at(a, height)})
	}
	b.Face(ring(outline, 0, true))

	return b.Build()
}

// Rect returns the counter-clockwise rectangle with corners (x0, y0) and
// (x1, y1).
func Rect(x0, y0, x1, y1 float64) []v2.Vec {
	return []v2.Vec{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func ccw(poly []v2.Vec) []v2.Vec {
	var area float64
	for i := range poly {
		a, c := poly[i], poly[(i+1)%len(poly)]
		area += a.X*c.Y - c.X*a.Y
	}
	if area >= 0 {
		return poly
	}
	out := make([]v2.Vec, len(poly))
	for i, p := range poly {
		out[len(poly)-1-i] = p
	}
	return out
}
