// Package command drives a dogbone relief from picks to the final cut. It
// plays the host's part for the selection registry: it keeps the host's
// view of the selection, forwards every change, and echoes the registry's
// own changes back as programmatic.
package command

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/corner"
	"github.com/chazu/dogbone/pkg/dogbone"
	"github.com/chazu/dogbone/pkg/graph"
	"github.com/chazu/dogbone/pkg/kernel"
	"github.com/chazu/dogbone/pkg/selection"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

// ErrNoToolBody is returned for a selected occurrence that produced no
// tool body, so there is nothing to cut.
var ErrNoToolBody = errors.New("command: no body to cut")

// Params are everything a relief run is configured with.
type Params struct {
	Tool        dogbone.Params
	Mode        corner.AngleMode
	ExtendToTop bool // start holes on the highest face parallel to the pick
}

// Command owns one relief session over an assembly.
type Command struct {
	g      *graph.DesignGraph
	k      kernel.Kernel
	reg    *selection.Registry
	synth  *dogbone.Synthesizer
	params Params
	sel    selection.Snapshot // what the host shows as selected
	log    *zap.Logger
}

// New returns a Command over g. reg must classify with p.Mode; use
// NewRegistry to get one. A nil logger discards output.
func New(g *graph.DesignGraph, k kernel.Kernel, reg *selection.Registry, p Params, log *zap.Logger) *Command {
	if log == nil {
		log = zap.NewNop()
	}
	return &Command{
		g:      g,
		k:      k,
		reg:    reg,
		synth:  dogbone.NewSynthesizer(k, log),
		params: p,
		log:    log.Named("command"),
	}
}

// NewRegistry returns a registry over g for p.
func NewRegistry(g *graph.DesignGraph, p Params, log *zap.Logger) *selection.Registry {
	return selection.New(g, p.Mode, log)
}

// Params returns the current parameters.
func (c *Command) Params() Params { return c.params }

// Registry returns the registry the command drives.
func (c *Command) Registry() *selection.Registry { return c.reg }

// Selection returns the host's current view of the selection.
func (c *Command) Selection() selection.Snapshot { return c.sel }

// SetParams replaces the parameters. A new angle mode reclassifies every
// registered face.
func (c *Command) SetParams(p Params) selection.Change {
	old := c.params
	c.params = p
	if old.Mode == p.Mode {
		return selection.Change{}
	}
	ch := c.reg.Reclassify(p.Mode)
	c.sync()
	c.log.Debug("angle mode changed",
		zap.Int("selected_edges", len(ch.SelectedEdges)),
		zap.Int("deselected_edges", len(ch.DeselectedEdges)))
	return ch
}

// PickFace toggles the face of occ under the world-space point p.
func (c *Command) PickFace(occ graph.NodeID, p v3.Vec) (selection.Change, error) {
	face, err := c.g.ResolveFace(occ, p)
	if err != nil {
		return selection.Change{}, fmt.Errorf("command: pick face: %w", err)
	}
	ref := selection.FaceRef{Occurrence: occ, Face: face}
	key := ref.Key()

	var next selection.Snapshot
	for _, f := range c.sel.Faces {
		if f.Key() != key {
			next.Faces = append(next.Faces, f)
		}
	}
	if len(next.Faces) == len(c.sel.Faces) {
		if err := c.reg.CheckFace(ref); err != nil {
			return selection.Change{}, err
		}
		next.Faces = append(next.Faces, ref)
		next.Edges = c.sel.Edges
	} else {
		owned := make(map[brep.Key]bool)
		for _, e := range c.reg.Edges(key) {
			owned[e.Key] = true
		}
		for _, e := range c.sel.Edges {
			if !owned[e.Key()] {
				next.Edges = append(next.Edges, e)
			}
		}
	}
	return c.OnSelectionChanged(next, false)
}

// PickEdge toggles the drop edge of occ between the world-space points a
// and b.
func (c *Command) PickEdge(occ graph.NodeID, a, b v3.Vec) (selection.Change, error) {
	e, err := c.g.ResolveEdge(occ, a, b)
	if err != nil {
		return selection.Change{}, fmt.Errorf("command: pick edge: %w", err)
	}
	ref := selection.EdgeRef{Occurrence: occ, Edge: e}
	if !c.reg.IsEdgeSelectable(ref) {
		return selection.Change{}, fmt.Errorf("%w: edge %d is not a drop edge", selection.ErrNotSelectable, e.ID)
	}
	key := ref.Key()

	next := selection.Snapshot{Faces: c.sel.Faces}
	found := false
	for _, x := range c.sel.Edges {
		if x.Key() == key {
			found = true
			continue
		}
		next.Edges = append(next.Edges, x)
	}
	if !found {
		next.Edges = append(next.Edges, ref)
	}
	return c.OnSelectionChanged(next, false)
}

// OnSelectionChanged is the host's change notification. A user change is
// applied to the registry and the registry's resulting selection is
// echoed back as a programmatic change.
func (c *Command) OnSelectionChanged(snap selection.Snapshot, programmatic bool) (selection.Change, error) {
	ch, err := c.reg.DiffAndApply(snap, programmatic)
	if programmatic {
		c.sel = snap
		return ch, err
	}
	c.sync()
	return ch, err
}

// sync shows the registry's selection in the host.
func (c *Command) sync() {
	echo := c.reg.Selection()
	if _, err := c.OnSelectionChanged(echo, true); err != nil {
		c.log.Warn("echo rejected", zap.Error(err))
	}
}

// Rebuild replaces the part placed by occ with body and solid, then finds
// the selection again on the new body. Faces and edges that no longer
// exist drop out of the selection.
func (c *Command) Rebuild(occ graph.NodeID, body *brep.Body, solid kernel.Solid) (selection.Change, error) {
	if err := c.g.SetBody(occ, body, solid); err != nil {
		return selection.Change{}, fmt.Errorf("command: rebuild: %w", err)
	}
	ch := c.reg.Refresh()
	c.sync()
	c.log.Info("part rebuilt",
		zap.String("occurrence", c.g.Path(occ)),
		zap.Int("removed_faces", len(ch.RemovedFaces)),
		zap.Int("deselected_edges", len(ch.DeselectedEdges)))
	return ch, nil
}

// OccurrenceResult is the outcome of relieving one occurrence.
type OccurrenceResult struct {
	Occurrence graph.NodeID
	Path       string
	Tools      []*dogbone.ToolBody
	Tool       kernel.Solid // union of Tools, component space
	Cut        bool
	Errors     []error
}

// Result summarizes a run.
type Result struct {
	Occurrences []OccurrenceResult
	ErrorCount  int
}

// Err joins every error of the run, or returns nil.
func (r Result) Err() error {
	var errs []error
	for _, o := range r.Occurrences {
		errs = append(errs, o.Errors...)
	}
	return errors.Join(errs...)
}

// Edges returns the number of tool bodies built.
func (r Result) Edges() int {
	n := 0
	for _, o := range r.Occurrences {
		n += len(o.Tools)
	}
	return n
}

// Execute builds the tool bodies of every selected occurrence and cuts
// each occurrence's union from its component solid in one difference.
// A failing occurrence does not stop the others. Edges the classifier
// skipped on a selected occurrence's faces are counted as errors.
func (c *Command) Execute() Result {
	res := c.run(true)
	c.log.Info("relief executed",
		zap.Int("occurrences", len(res.Occurrences)),
		zap.Int("edges", res.Edges()),
		zap.Int("errors", res.ErrorCount))
	return res
}

// Preview builds the tool bodies Execute would cut, without cutting.
func (c *Command) Preview() Result { return c.run(false) }

func (c *Command) run(cut bool) Result {
	var res Result
	for _, occ := range c.reg.SelectedOccurrences() {
		o := c.relieve(occ, cut)
		res.ErrorCount += len(o.Errors)
		res.Occurrences = append(res.Occurrences, o)
	}
	return res
}

func (c *Command) relieve(occ graph.NodeID, cut bool) (o OccurrenceResult) {
	o = OccurrenceResult{Occurrence: occ, Path: c.g.Path(occ)}
	defer func() {
		if p := recover(); p != nil {
			o.Cut = false
			o.Errors = append(o.Errors, fmt.Errorf("command: %s: panic: %v", o.Path, p))
			c.log.Error("occurrence failed", zap.String("occurrence", o.Path), zap.Any("panic", p))
		}
	}()

	// Corners discovery had to skip are errors of this run too.
	for _, f := range c.reg.Faces(occ) {
		for _, err := range f.Skipped {
			o.Errors = append(o.Errors, fmt.Errorf("%s: face %d: %w", o.Path, f.Face.ID, err))
		}
	}

	var faceTools []kernel.Solid
	for _, f := range c.reg.SelectedFaces(occ) {
		var top *brep.Face
		if c.params.ExtendToTop {
			top = brep.TopFace(f.Face)
		}
		var tools []kernel.Solid
		for _, e := range c.reg.SelectedEdges(f.Key) {
			tb, err := c.synth.Build(e.Tool(f), c.params.Tool, top)
			if err != nil {
				o.Errors = append(o.Errors, fmt.Errorf("%s: edge %d: %w", o.Path, e.Edge.ID, err))
				c.log.Warn("tool body failed",
					zap.String("occurrence", o.Path),
					zap.Int("edge", e.Edge.ID),
					zap.Error(err))
				continue
			}
			o.Tools = append(o.Tools, tb)
			tools = append(tools, tb.Solid)
		}
		if s := dogbone.Aggregate(c.k, tools...); s != nil {
			faceTools = append(faceTools, s)
		}
	}

	o.Tool = dogbone.Aggregate(c.k, faceTools...)
	if o.Tool == nil {
		o.Errors = append(o.Errors, fmt.Errorf("%w: %s", ErrNoToolBody, o.Path))
		return o
	}
	if !cut {
		return o
	}

	target, err := c.g.SolidOf(occ)
	if err != nil || target == nil {
		o.Errors = append(o.Errors, fmt.Errorf("%w: %s has no solid", ErrNoToolBody, o.Path))
		return o
	}
	if err := c.g.SetSolid(occ, c.k.Difference(target, o.Tool)); err != nil {
		o.Errors = append(o.Errors, err)
		return o
	}
	o.Cut = true
	c.log.Debug("occurrence cut",
		zap.String("occurrence", o.Path),
		zap.Int("tools", len(o.Tools)),
		zap.Int("shared_by", len(c.occurrencesOf(occ))))
	return o
}

// Clear drops every selection, in the registry and the host.
func (c *Command) Clear() selection.Change {
	ch := c.reg.Clear()
	c.sync()
	return ch
}

// SelectedFaceCount returns how many faces are selected across every
// occurrence.
func (c *Command) SelectedFaceCount() int {
	n := 0
	for _, occ := range c.reg.SelectedOccurrences() {
		n += len(c.reg.SelectedFaces(occ))
	}
	return n
}

// occurrencesOf lists the occurrences placing the component of occ.
func (c *Command) occurrencesOf(occ graph.NodeID) []graph.NodeID {
	comp, err := c.g.ComponentOf(occ)
	if err != nil {
		return nil
	}
	var out []graph.NodeID
	for _, n := range c.g.Occurrences() {
		if slices.Contains(n.Children, comp.ID) {
			out = append(out, n.ID)
		}
	}
	return out
}
