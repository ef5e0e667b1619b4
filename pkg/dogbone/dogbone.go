// Package dogbone builds relief tool bodies for drop edges: a cylinder the
// size of the cutter set off from the corner, plus a clearance box for
// corners too sharp for the cutter to reach.
package dogbone

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

const (
	// MinBoxLength floors the clearance box length.
	MinBoxLength = 0.001
	// MinClearance is the half box length below which the box is dropped.
	MinClearance = 0.01
)

var (
	// ErrToolRadius is returned when the effective tool radius is not
	// positive.
	ErrToolRadius = errors.New("dogbone: effective tool radius must be positive")

	// ErrDegenerateEdge is returned when the edge or its corner vector has
	// no length.
	ErrDegenerateEdge = errors.New("dogbone: degenerate edge")
)

// Edge is the read-only view of a selected drop edge that tool bodies are
// built from. All geometry is in the face's body space.
type Edge struct {
	Start, End   v3.Vec // centre first
	CornerVector v3.Vec
	Angle        float64 // dihedral angle in degrees
	Face         *brep.Face
	Centre       *brep.Vertex
}

// CylinderSpec describes the hole cylinder of a tool body.
type CylinderSpec struct {
	Start, End v3.Vec
	Radius     float64
}

// Length is the cylinder's axis length.
func (c CylinderSpec) Length() float64 { return c.End.Sub(c.Start).Length() }

// BoxSpec describes an oriented clearance box.
type BoxSpec struct {
	Centre    v3.Vec
	LengthDir v3.Vec
	WidthDir  v3.Vec
	Length    float64
	Width     float64
	Height    float64
}

// ToolBody is one edge's relief solid and how it was made.
type ToolBody struct {
	Solid    kernel.Solid
	Cylinder CylinderSpec
	Box      *BoxSpec // nil unless a clearance box was unioned in
}

// Synthesizer turns drop edges into tool bodies with a kernel.
type Synthesizer struct {
	k        kernel.Kernel
	segments int
	log      *zap.Logger
}

// NewSynthesizer returns a Synthesizer. A nil logger discards output.
func NewSynthesizer(k kernel.Kernel, log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{k: k, segments: kernel.DefaultSegments, log: log.Named("dogbone")}
}

// Build makes the tool body for e. With top set the hole starts on the
// plane of top instead of the edge's own face, which must then be parallel.
func (s *Synthesizer) Build(e Edge, p Params, top *brep.Face) (*ToolBody, error) {
	r := p.EffectiveRadius()
	if r <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrToolRadius, r)
	}
	centreDistance := p.CentreDistance()

	start, end := e.Start, e.End
	if top != nil && top != e.Face {
		t, err := brep.Translation(e.Face, top)
		if err != nil {
			return nil, fmt.Errorf("dogbone: extend to top: %w", err)
		}
		start = start.Add(t)
	}

	var dir v3.Vec
	var ok bool
	if p.Style == StyleMortise {
		var err error
		if dir, err = mortiseDirection(e, p.LongSide); err != nil {
			return nil, err
		}
	} else if dir, ok = brep.Normalize(e.CornerVector); !ok {
		return nil, fmt.Errorf("%w: zero corner vector", ErrDegenerateEdge)
	}

	offset := dir.MulScalar(centreDistance)
	start, end = start.Add(offset), end.Add(offset)

	axis := end.Sub(start)
	height := axis.Length()
	frame, err := kernel.FrameAlong(start.Add(end).MulScalar(0.5), axis)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateEdge, err)
	}
	tb := &ToolBody{
		Solid:    s.k.Orient(s.k.Cylinder(height, r, s.segments), frame),
		Cylinder: CylinderSpec{Start: start, End: end, Radius: r},
	}
	if e.Angle >= 90 {
		return tb, nil
	}

	box, ok := clearanceBox(start, axis, e.CornerVector, e.Angle, r, centreDistance)
	if !ok {
		s.log.Debug("clearance box skipped", zap.Float64("angle", e.Angle))
		return tb, nil
	}
	bf, err := kernel.FrameFromAxes(box.Centre, box.LengthDir, box.WidthDir)
	if err != nil {
		return nil, fmt.Errorf("%w: clearance box: %v", ErrDegenerateEdge, err)
	}
	tb.Solid = s.k.Union(tb.Solid, s.k.Orient(s.k.Box(box.Length, box.Width, box.Height), bf))
	tb.Box = &box
	return tb, nil
}

// clearanceBox sizes the channel a cutter of radius r needs to reach a hole
// centreDistance out from a corner of the given angle. ok is false when the
// channel would be negligible.
func clearanceBox(start, axis, cornerVector v3.Vec, angle, r, centreDistance float64) (BoxSpec, bool) {
	height := axis.Length()
	edgeDir, ok1 := brep.Normalize(axis)
	lengthDir, ok2 := brep.Normalize(cornerVector)
	if !ok1 || !ok2 {
		return BoxSpec{}, false
	}

	cornerTan := math.Tan(angle / 2 * math.Pi / 180)
	boxLength := math.Max(r/cornerTan-centreDistance, MinBoxLength)
	if lengthDir.MulScalar(boxLength/2).Length() < MinClearance {
		return BoxSpec{}, false
	}

	centre := start.
		Add(edgeDir.MulScalar(height / 2)).
		Add(lengthDir.MulScalar(boxLength / 2))
	return BoxSpec{
		Centre:    centre,
		LengthDir: lengthDir,
		WidthDir:  edgeDir.Cross(lengthDir),
		Length:    boxLength,
		Width:     2 * r,
		Height:    height,
	}, true
}

// mortiseDirection picks the boundary edge at the corner the hole slides
// along: the longer one when longSide is set, otherwise the shorter.
func mortiseDirection(e Edge, longSide bool) (v3.Vec, error) {
	if e.Face == nil || e.Centre == nil {
		return v3.Vec{}, fmt.Errorf("%w: mortise needs the parent face", ErrDegenerateEdge)
	}
	edges, err := brep.CornerEdges(e.Face, e.Centre)
	if err != nil {
		return v3.Vec{}, err
	}
	long, short := edges[0], edges[1]
	if short.Length() > long.Length() {
		long, short = short, long
	}
	pick := short
	if longSide {
		pick = long
	}
	dir, ok := pick.DirectionFrom(e.Centre)
	if !ok {
		return v3.Vec{}, fmt.Errorf("%w: corner edge %d", ErrDegenerateEdge, pick.ID)
	}
	return dir, nil
}

// Aggregate unions bodies in order. It returns nil for no bodies.
func Aggregate(k kernel.Kernel, bodies ...kernel.Solid) kernel.Solid {
	var acc kernel.Solid
	for _, b := range bodies {
		if b == nil {
			continue
		}
		if acc == nil {
			acc = b
			continue
		}
		acc = k.Union(acc, b)
	}
	return acc
}
