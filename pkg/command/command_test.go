package command

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/corner"
	"github.com/chazu/dogbone/pkg/dogbone"
	"github.com/chazu/dogbone/pkg/graph"
	"github.com/chazu/dogbone/pkg/kernel"
	"github.com/chazu/dogbone/pkg/kernel/sdfx"
	"github.com/chazu/dogbone/pkg/selection"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSolid records how a solid was made.
type fakeSolid struct {
	kind  string
	dims  [3]float64
	parts []kernel.Solid
}

func (s *fakeSolid) BoundingBox() (min, max [3]float64) { return }

// fakeKernel counts primitive construction and booleans. With panicAt
// set, the panicAt'th Difference panics.
type fakeKernel struct {
	boxes, cylinders, unions, differences int
	panicAt                               int
}

func (k *fakeKernel) Box(x, y, z float64) kernel.Solid {
	k.boxes++
	return &fakeSolid{kind: "box", dims: [3]float64{x, y, z}}
}

func (k *fakeKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	k.cylinders++
	return &fakeSolid{kind: "cylinder", dims: [3]float64{height, radius}}
}

func (k *fakeKernel) Prism(outline []v3.Vec, height float64) (kernel.Solid, error) {
	return &fakeSolid{kind: "prism", dims: [3]float64{height}}, nil
}

func (k *fakeKernel) Union(a, b kernel.Solid) kernel.Solid {
	k.unions++
	return &fakeSolid{kind: "union", parts: []kernel.Solid{a, b}}
}

func (k *fakeKernel) Difference(a, b kernel.Solid) kernel.Solid {
	k.differences++
	if k.differences == k.panicAt {
		panic("boolean failed")
	}
	return &fakeSolid{kind: "difference", parts: []kernel.Solid{a, b}}
}

func (k *fakeKernel) Orient(s kernel.Solid, f kernel.Frame) kernel.Solid { return s }

func (k *fakeKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) { return &kernel.Mesh{}, nil }

type fixture struct {
	g      *graph.DesignGraph
	block  kernel.Solid
	plate1 graph.NodeID // root at the origin
	plate2 graph.NodeID // root at +200 X
	innerA graph.NodeID // sub-1 (+100 Z) → sub → inner-a
	innerB graph.NodeID // sub-1 (+100 Z) → sub → inner-b (+100 Y)
}

func newFixture(t *testing.T, body *brep.Body, block kernel.Solid) *fixture {
	t.Helper()
	g := graph.New()
	f := &fixture{
		g:      g,
		block:  block,
		plate1: graph.NewNodeID("occurrence/plate-1"),
		plate2: graph.NewNodeID("occurrence/plate-2"),
		innerA: graph.NewNodeID("occurrence/inner-a"),
		innerB: graph.NewNodeID("occurrence/inner-b"),
	}
	plateID := graph.NewNodeID("defpart/plate")
	subID := graph.NewNodeID("assembly/sub")
	sub1ID := graph.NewNodeID("occurrence/sub-1")

	g.AddNode(&graph.Node{ID: plateID, Kind: graph.NodeComponent, Name: "plate",
		Data: &graph.ComponentData{Body: body, Solid: block}})
	occ := func(id graph.NodeID, name string, child graph.NodeID, tr v3.Vec) {
		g.AddNode(&graph.Node{ID: id, Kind: graph.NodeOccurrence, Name: name,
			Children: []graph.NodeID{child},
			Data:     graph.OccurrenceData{Placement: graph.Placement{Translation: tr}}})
	}
	occ(f.plate1, "plate-1", plateID, v3.Vec{})
	occ(f.plate2, "plate-2", plateID, v3.Vec{X: 200})
	occ(f.innerA, "inner-a", plateID, v3.Vec{})
	occ(f.innerB, "inner-b", plateID, v3.Vec{Y: 100})
	g.AddNode(&graph.Node{ID: subID, Kind: graph.NodeGroup, Name: "sub",
		Children: []graph.NodeID{f.innerA, f.innerB}, Data: graph.GroupData{}})
	occ(sub1ID, "sub-1", subID, v3.Vec{Z: 100})
	g.AddRoot(f.plate1)
	g.AddRoot(f.plate2)
	g.AddRoot(sub1ID)
	return f
}

func rectPocket(t *testing.T) *brep.Body {
	t.Helper()
	b, err := brep.PocketedPrism("plate", brep.Rect(0, 0, 100, 60), 20, 10, brep.Rect(20, 20, 50, 40))
	require.NoError(t, err)
	return b
}

// acutePocket has pocket corners of 60, 90, 90 and 120 degrees.
func acutePocket(t *testing.T) *brep.Body {
	t.Helper()
	pocket := []v2.Vec{
		{X: 20, Y: 20},
		{X: 50, Y: 20},
		{X: 50, Y: 40},
		{X: 20 + 20/math.Sqrt(3), Y: 40},
	}
	b, err := brep.PocketedPrism("plate", brep.Rect(0, 0, 100, 60), 20, 10, pocket)
	require.NoError(t, err)
	return b
}

func quarterInch() dogbone.Params {
	return dogbone.Params{ToolDiameter: 6.35, Style: dogbone.StyleNormal}
}

func newCommand(f *fixture, k kernel.Kernel, p Params) *Command {
	return New(f.g, k, NewRegistry(f.g, p, nil), p, nil)
}

func TestRightAnglePocket(t *testing.T) {
	k := &fakeKernel{}
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, k, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})

	ch, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)
	assert.Len(t, ch.AddedFaces, 1)
	assert.Len(t, ch.SelectedEdges, 4)
	require.Len(t, c.Selection().Faces, 1)
	assert.Len(t, c.Selection().Edges, 4, "host shows the discovered edges")
	assert.Equal(t, 1, c.SelectedFaceCount())

	res := c.Execute()
	require.NoError(t, res.Err())
	assert.Zero(t, res.ErrorCount)
	require.Len(t, res.Occurrences, 1)
	o := res.Occurrences[0]
	assert.Equal(t, "plate-1", o.Path)
	assert.True(t, o.Cut)
	require.Len(t, o.Tools, 4)
	assert.Equal(t, 4, res.Edges())

	for _, tb := range o.Tools {
		assert.InDelta(t, 3.175, tb.Cylinder.Radius, 1e-9)
		assert.InDelta(t, 10, tb.Cylinder.Length(), 1e-9)
		assert.Nil(t, tb.Box)
	}
	assert.Equal(t, 4, k.cylinders)
	assert.Zero(t, k.boxes)
	assert.Equal(t, 3, k.unions, "four cylinders, one face, one occurrence")
	assert.Equal(t, 1, k.differences, "one cut per occurrence")

	solid, err := f.g.SolidOf(f.plate1)
	require.NoError(t, err)
	cut := solid.(*fakeSolid)
	assert.Equal(t, "difference", cut.kind)
	assert.Same(t, f.block, cut.parts[0])
	assert.Same(t, o.Tool, cut.parts[1])
}

func TestHoleSitsOneRadiusOffTheCorner(t *testing.T) {
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, &fakeKernel{}, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})
	_, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)

	res := c.Preview()
	require.Len(t, res.Occurrences, 1)
	corners := []v3.Vec{{X: 20, Y: 20}, {X: 50, Y: 20}, {X: 50, Y: 40}, {X: 20, Y: 40}}
	for _, tb := range res.Occurrences[0].Tools {
		start := tb.Cylinder.Start
		assert.InDelta(t, 20, start.Z, 1e-9)
		nearest := math.Inf(1)
		for _, p := range corners {
			nearest = math.Min(nearest, v3.Vec{X: start.X, Y: start.Y}.Sub(p).Length())
		}
		assert.InDelta(t, 3.175, nearest, 1e-9)
		assert.True(t, start.X > 20 && start.X < 50 && start.Y > 20 && start.Y < 40, "hole %v inside pocket", start)
	}
}

func TestAcuteCorner(t *testing.T) {
	k := &fakeKernel{}
	f := newFixture(t, acutePocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, k, Params{
		Tool: quarterInch(),
		Mode: corner.AngleMode{Acute: true, MinAngleLimit: 10, MaxAngleLimit: 170},
	})

	_, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)
	assert.Len(t, c.Selection().Edges, 3, "60, 90 and 90; 120 is obtuse")

	res := c.Execute()
	require.NoError(t, res.Err())
	var boxes []*dogbone.BoxSpec
	for _, tb := range res.Occurrences[0].Tools {
		if tb.Box != nil {
			boxes = append(boxes, tb.Box)
		}
	}
	require.Len(t, boxes, 1)
	want := 3.175/math.Tan(math.Pi/6) - 3.175
	assert.InDelta(t, 2.325, want, 1e-3)
	assert.InDelta(t, want, boxes[0].Length, 1e-9)
	assert.InDelta(t, 6.35, boxes[0].Width, 1e-9)
	assert.InDelta(t, 10, boxes[0].Height, 1e-9)
	assert.Equal(t, 1, k.boxes)
	assert.Equal(t, 3, k.cylinders)
}

func TestPickInInstanceSpace(t *testing.T) {
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, &fakeKernel{}, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})

	_, err := c.PickFace(f.plate2, v3.Vec{X: 5, Y: 5, Z: 20})
	assert.ErrorIs(t, err, graph.ErrNoFace, "plate-2 sits 200 along X")

	_, err = c.PickFace(f.plate2, v3.Vec{X: 205, Y: 5, Z: 20})
	require.NoError(t, err)

	_, err = c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	assert.ErrorIs(t, err, selection.ErrForeignOccurrence)
	assert.Len(t, c.Selection().Faces, 1)
	assert.Equal(t, []graph.NodeID{f.plate2}, c.Registry().SelectedOccurrences())

	_, err = c.PickFace(f.plate2, v3.Vec{X: 220, Y: 5, Z: 10})
	assert.ErrorIs(t, err, graph.ErrNoFace, "no face under the point")

	_, err = c.PickEdge(f.plate2, v3.Vec{X: 220, Y: 20, Z: 20}, v3.Vec{X: 220, Y: 20, Z: 10})
	require.NoError(t, err)
	assert.Len(t, c.Selection().Edges, 3)
}

func TestPickFaceToggles(t *testing.T) {
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, &fakeKernel{}, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})
	top := v3.Vec{X: 5, Y: 5, Z: 20}

	_, err := c.PickFace(f.plate1, top)
	require.NoError(t, err)
	ch, err := c.PickFace(f.plate1, top)
	require.NoError(t, err)
	assert.Len(t, ch.RemovedFaces, 1)
	assert.Len(t, ch.DeselectedEdges, 4)
	assert.Empty(t, c.Selection().Faces)
	assert.Empty(t, c.Selection().Edges)
	assert.Empty(t, c.Registry().Occurrences())

	_, err = c.PickFace(f.plate1, v3.Vec{X: 20, Y: 30, Z: 15})
	require.NoError(t, err, "a wall is planar and nothing is selected yet")
	_, err = c.PickFace(f.plate1, top)
	assert.NoError(t, err, "the wall had no drop edges so it is not primary")
}

func TestPickEdgeToggles(t *testing.T) {
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, &fakeKernel{}, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})
	_, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)

	a, b := v3.Vec{X: 20, Y: 20, Z: 20}, v3.Vec{X: 20, Y: 20, Z: 10}
	ch, err := c.PickEdge(f.plate1, a, b)
	require.NoError(t, err)
	assert.Len(t, ch.DeselectedEdges, 1)
	assert.Len(t, c.Selection().Edges, 3)
	assert.Len(t, c.Preview().Occurrences[0].Tools, 3)

	ch, err = c.PickEdge(f.plate1, b, a)
	require.NoError(t, err)
	assert.Len(t, ch.SelectedEdges, 1)
	assert.Len(t, c.Selection().Edges, 4)

	_, err = c.PickEdge(f.plate1, v3.Vec{Z: 20}, v3.Vec{})
	assert.ErrorIs(t, err, selection.ErrNotSelectable)
	_, err = c.PickEdge(f.plate1, v3.Vec{X: 1, Z: 20}, v3.Vec{})
	assert.ErrorIs(t, err, graph.ErrNoEdge)
}

func TestExecuteContinuesPastEmptyOccurrence(t *testing.T) {
	k := &fakeKernel{}
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, k, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})

	_, err := c.PickFace(f.innerA, v3.Vec{X: 5, Y: 5, Z: 120})
	require.NoError(t, err)
	_, err = c.PickFace(f.innerB, v3.Vec{X: 5, Y: 105, Z: 120})
	require.NoError(t, err)

	for _, p := range [][2]float64{{20, 20}, {50, 20}, {50, 40}, {20, 40}} {
		_, err := c.PickEdge(f.innerA, v3.Vec{X: p[0], Y: p[1], Z: 120}, v3.Vec{X: p[0], Y: p[1], Z: 110})
		require.NoError(t, err)
	}

	res := c.Execute()
	assert.Equal(t, 1, res.ErrorCount)
	assert.ErrorIs(t, res.Err(), ErrNoToolBody)
	require.Len(t, res.Occurrences, 2)
	assert.False(t, res.Occurrences[0].Cut)
	assert.Equal(t, "sub-1/sub/inner-a", res.Occurrences[0].Path)
	assert.True(t, res.Occurrences[1].Cut)
	assert.Equal(t, 1, k.differences)
}

func TestExecuteCountsEdgeFailures(t *testing.T) {
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, &fakeKernel{}, Params{Mode: corner.RightAngleOnly()})
	_, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)

	res := c.Execute()
	assert.Equal(t, 5, res.ErrorCount, "four edges and the empty occurrence")
	assert.ErrorIs(t, res.Err(), dogbone.ErrToolRadius)
	assert.ErrorIs(t, res.Err(), ErrNoToolBody)
	solid, _ := f.g.SolidOf(f.plate1)
	assert.Same(t, f.block, solid, "nothing cut")
}

func TestExecuteCountsSkippedCorners(t *testing.T) {
	k := &fakeKernel{}
	body := rectPocket(t)
	// Wall y=20 opposes wall x=20: no bisector at (20, 20).
	body.Faces[2].Normal = v3.Vec{X: -1}
	f := newFixture(t, body, &fakeSolid{kind: "block"})
	wide := corner.AngleMode{Acute: true, Obtuse: true, MinAngleLimit: -1, MaxAngleLimit: 181}
	c := newCommand(f, k, Params{Tool: quarterInch(), Mode: wide})

	ch, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)
	assert.Len(t, ch.Skipped, 1)

	res := c.Execute()
	assert.Equal(t, 1, res.ErrorCount)
	assert.ErrorIs(t, res.Err(), corner.ErrOpposedNormals)
	require.Len(t, res.Occurrences, 1)
	assert.True(t, res.Occurrences[0].Cut, "the other corners are still cut")
	assert.Len(t, res.Occurrences[0].Tools, 3)
	assert.Equal(t, 1, k.differences)
}

func TestExecuteRecoversPanic(t *testing.T) {
	k := &fakeKernel{panicAt: 1}
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, k, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})
	_, err := c.PickFace(f.innerA, v3.Vec{X: 5, Y: 5, Z: 120})
	require.NoError(t, err)
	_, err = c.PickFace(f.innerB, v3.Vec{X: 5, Y: 105, Z: 120})
	require.NoError(t, err)

	res := c.Execute()
	assert.Equal(t, 1, res.ErrorCount)
	assert.ErrorContains(t, res.Err(), "boolean failed")
	assert.False(t, res.Occurrences[0].Cut)
	assert.True(t, res.Occurrences[1].Cut)
}

func TestSetParamsReclassifies(t *testing.T) {
	f := newFixture(t, acutePocket(t), &fakeSolid{kind: "block"})
	p := Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()}
	c := newCommand(f, &fakeKernel{}, p)
	_, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)
	require.Len(t, c.Selection().Edges, 2)

	p.Tool.ToolDiameter = 3.175
	assert.True(t, c.SetParams(p).IsZero(), "tool changes do not touch the selection")
	assert.InDelta(t, 3.175, c.Params().Tool.ToolDiameter, 0)

	p.Mode = corner.AngleMode{Acute: true, Obtuse: true, MinAngleLimit: 10, MaxAngleLimit: 170}
	ch := c.SetParams(p)
	assert.Len(t, ch.SelectedEdges, 2)
	assert.Len(t, c.Selection().Edges, 4)
}

func TestExtendToTopOnTopFace(t *testing.T) {
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, &fakeKernel{}, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly(), ExtendToTop: true})
	_, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)

	for _, tb := range c.Preview().Occurrences[0].Tools {
		assert.InDelta(t, 20, tb.Cylinder.Start.Z, 1e-9, "already the top face")
	}
}

func TestPreviewDoesNotCut(t *testing.T) {
	k := &fakeKernel{}
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, k, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})
	_, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)

	res := c.Preview()
	assert.Len(t, res.Occurrences[0].Tools, 4)
	assert.False(t, res.Occurrences[0].Cut)
	assert.Zero(t, k.differences)
	assert.Zero(t, f.g.Version)
}

func TestClear(t *testing.T) {
	f := newFixture(t, rectPocket(t), &fakeSolid{kind: "block"})
	c := newCommand(f, &fakeKernel{}, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})
	_, err := c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)

	ch := c.Clear()
	assert.Len(t, ch.RemovedFaces, 1)
	assert.Empty(t, c.Selection().Faces)
	assert.Empty(t, c.Execute().Occurrences)
}

func TestSdfxToolBounds(t *testing.T) {
	k := sdfx.New()
	outline := []v3.Vec{{}, {X: 100}, {X: 100, Y: 60}, {Y: 60}}
	block, err := k.Prism(outline, 20)
	require.NoError(t, err)
	f := newFixture(t, rectPocket(t), block)
	c := newCommand(f, k, Params{Tool: quarterInch(), Mode: corner.RightAngleOnly()})
	_, err = c.PickFace(f.plate1, v3.Vec{X: 5, Y: 5, Z: 20})
	require.NoError(t, err)

	res := c.Execute()
	require.NoError(t, res.Err())
	min, max := res.Occurrences[0].Tool.BoundingBox()
	off := 3.175 / math.Sqrt2
	assert.InDelta(t, 20+off-3.175, min[0], 1e-6)
	assert.InDelta(t, 20+off-3.175, min[1], 1e-6)
	assert.InDelta(t, 10, min[2], 1e-6)
	assert.InDelta(t, 50-off+3.175, max[0], 1e-6)
	assert.InDelta(t, 40-off+3.175, max[1], 1e-6)
	assert.InDelta(t, 20, max[2], 1e-6)

	solid, err := f.g.SolidOf(f.plate1)
	require.NoError(t, err)
	bmin, bmax := solid.BoundingBox()
	assert.InDelta(t, 0, bmin[0], 1e-6)
	assert.InDelta(t, 100, bmax[0], 1e-6)
	assert.InDelta(t, 20, bmax[2], 1e-6)
}

func TestResultErrJoins(t *testing.T) {
	r := Result{Occurrences: []OccurrenceResult{
		{Errors: []error{errors.New("a")}},
		{Errors: []error{errors.New("b"), ErrNoToolBody}},
	}}
	assert.ErrorIs(t, r.Err(), ErrNoToolBody)
	assert.ErrorContains(t, r.Err(), "a")
	assert.NoError(t, Result{}.Err())
}
