// Package corner finds the drop edges of a planar face: straight edges that
// leave the face's boundary vertices straight down into the part and meet
// their neighbours at a qualifying dihedral angle. Each one marks an
// internal corner a round cutter cannot reach.
package corner

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/dogbone/pkg/brep"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

var (
	// ErrAdjacentFaces is returned when an edge is not shared by exactly
	// two faces.
	ErrAdjacentFaces = errors.New("corner: edge needs exactly two adjacent faces")

	// ErrNonPlanar is returned when a dihedral angle is requested across a
	// non-planar face.
	ErrNonPlanar = errors.New("corner: adjacent face is not planar")

	// ErrOpposedNormals is returned when the adjacent face normals cancel
	// and no corner vector exists.
	ErrOpposedNormals = errors.New("corner: adjacent face normals are opposed")
)

// Candidate is an accepted drop edge.
type Candidate struct {
	Edge   *brep.Edge
	Angle  float64      // dihedral angle in degrees
	Centre *brep.Vertex // endpoint on the classified face
	// Start and End are the edge endpoints, centre first.
	Start, End   v3.Vec
	Direction    v3.Vec // unit vector from Start to End
	CornerVector v3.Vec // unit bisector of the adjacent face normals
}

// Report is the outcome of classifying one face.
type Report struct {
	Candidates []Candidate
	Considered int     // candidate edges examined
	Skipped    int     // edges that failed and were skipped
	Errors     []error // one per skipped edge
}

// Err joins the per-edge failures, or returns nil.
func (r Report) Err() error { return errors.Join(r.Errors...) }

// Classifier finds drop edges and logs the edges it has to skip.
type Classifier struct {
	log *zap.Logger
}

// New returns a Classifier. A nil logger discards output.
func New(log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{log: log.Named("corner")}
}

// FindDropEdges classifies face with a silent Classifier.
func FindDropEdges(face *brep.Face, mode AngleMode) []Candidate {
	return New(nil).FindDropEdges(face, mode)
}

// FindDropEdges returns the qualifying drop edges of face.
func (c *Classifier) FindDropEdges(face *brep.Face, mode AngleMode) []Candidate {
	return c.Classify(face, mode).Candidates
}

// Classify examines every edge incident to a boundary vertex of face that
// is not itself a boundary edge. Candidates come back in boundary walk
// order. A failure on one edge is logged and skips only that edge.
func (c *Classifier) Classify(face *brep.Face, mode AngleMode) Report {
	var r Report
	if face == nil || !face.IsPlanar() {
		return r
	}

	seen := make(map[*brep.Edge]bool)
	for _, v := range face.Vertices() {
		for _, e := range v.Edges() {
			if seen[e] || face.HasEdge(e) {
				continue
			}
			seen[e] = true
			r.Considered++

			cand, ok, err := c.classify(face, v, e, mode)
			if err != nil {
				r.Skipped++
				r.Errors = append(r.Errors, err)
				c.log.Warn("skipping edge",
					zap.Int("face", face.ID),
					zap.Int("edge", e.ID),
					zap.Error(err))
				continue
			}
			if ok {
				r.Candidates = append(r.Candidates, cand)
			}
		}
	}

	c.log.Debug("classified face",
		zap.Int("face", face.ID),
		zap.Int("considered", r.Considered),
		zap.Int("accepted", len(r.Candidates)),
		zap.Int("skipped", r.Skipped))
	return r
}

func (c *Classifier) classify(face *brep.Face, v *brep.Vertex, e *brep.Edge, mode AngleMode) (cand Candidate, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("corner: edge %d: panic: %v", e.ID, p)
			ok = false
		}
	}()

	if e.Length() < brep.Tolerance || len(e.Faces()) != 2 || e.Curve != brep.CurveLine {
		return Candidate{}, false, nil
	}
	dir, valid := e.DirectionFrom(v)
	if !valid || !brep.Parallel(dir, face.Normal) || brep.Equal(dir, face.Normal) {
		return Candidate{}, false, nil
	}
	for _, f := range e.Faces() {
		if !f.IsPlanar() {
			return Candidate{}, false, nil
		}
	}

	angle, err := DihedralAngle(e)
	if err != nil {
		return Candidate{}, false, fmt.Errorf("corner: edge %d: %w", e.ID, err)
	}
	if !mode.Accepts(angle) {
		c.log.Debug("angle rejected", zap.Int("edge", e.ID), zap.Float64("angle", angle))
		return Candidate{}, false, nil
	}
	cv, err := CornerVector(e)
	if err != nil {
		return Candidate{}, false, fmt.Errorf("corner: edge %d: %w", e.ID, err)
	}

	other := e.Other(v)
	return Candidate{
		Edge:         e,
		Angle:        angle,
		Centre:       v,
		Start:        v.Point,
		End:          other.Point,
		Direction:    dir,
		CornerVector: cv,
	}, true, nil
}

// DihedralAngle returns the angle in degrees, in [0, 360), at which the two
// faces of e meet, measured through the space outside the material.
// Interior corners of a pocket come out below 180 and exterior corners of a
// block above it.
//
// The edge direction is taken against the co-edge on the first face; when
// it runs with n1 × n2 the corner is concave.
func DihedralAngle(e *brep.Edge) (float64, error) {
	faces := e.Faces()
	if len(faces) != 2 {
		return 0, fmt.Errorf("%w: has %d", ErrAdjacentFaces, len(faces))
	}
	f1, f2 := faces[0], faces[1]
	if !f1.IsPlanar() || !f2.IsPlanar() {
		return 0, ErrNonPlanar
	}
	co := e.CoEdgeOn(f1)
	if co == nil {
		return 0, fmt.Errorf("corner: edge %d has no co-edge on face %d", e.ID, f1.ID)
	}

	n1, n2 := f1.Normal, f2.Normal
	normalAngle := degrees(brep.Angle(n1, n2))
	edgeDir := co.Vector().MulScalar(-1)
	cross := n1.Cross(n2)

	var angle float64
	if brep.Angle(edgeDir, cross) > math.Pi/2 {
		angle = 180 + normalAngle
	} else {
		angle = 180 - normalAngle
	}
	return math.Mod(angle, 360), nil
}

// CornerVector returns the unit bisector of the normals of the faces of e.
// At a pocket corner it points into the pocket.
func CornerVector(e *brep.Edge) (v3.Vec, error) {
	faces := e.Faces()
	if len(faces) != 2 {
		return v3.Vec{}, fmt.Errorf("%w: has %d", ErrAdjacentFaces, len(faces))
	}
	cv, ok := brep.Normalize(faces[0].Normal.Add(faces[1].Normal))
	if !ok {
		return v3.Vec{}, ErrOpposedNormals
	}
	return cv, nil
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
