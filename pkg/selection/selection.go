// Package selection keeps track of the faces a user has picked for relief
// and the drop edges discovered on them.
//
// Faces and edges live in tables keyed by stable identity. An edge refers
// to its face by key, never by pointer, and every mutation goes through
// the Registry.
package selection

import (
	"errors"

	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/dogbone"
	"github.com/chazu/dogbone/pkg/graph"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrForeignOccurrence is returned when a face belongs to a different
	// occurrence tree than the faces already selected.
	ErrForeignOccurrence = errors.New("selection: face belongs to another component")

	// ErrNotSelectable is returned for faces that are not planar or not
	// parallel to the occurrence's primary face.
	ErrNotSelectable = errors.New("selection: face is not selectable")
)

// FaceRef names a face of the component placed by an occurrence. Face is
// in component space.
type FaceRef struct {
	Occurrence graph.NodeID
	Face       *brep.Face
}

// EdgeRef names an edge of the component placed by an occurrence.
type EdgeRef struct {
	Occurrence graph.NodeID
	Edge       *brep.Edge
}

// FaceID is the registry key of a face in an occurrence.
func FaceID(occ graph.NodeID, f *brep.Face) brep.Key {
	return brep.NewKey(occ.String(), brep.FaceKey(f).String())
}

// EdgeID is the registry key of an edge in an occurrence.
func EdgeID(occ graph.NodeID, e *brep.Edge) brep.Key {
	var body string
	if fs := e.Faces(); len(fs) > 0 && fs[0].Body() != nil {
		body = fs[0].Body().Name
	}
	return brep.NewKey(occ.String(), brep.EdgeKey(body, e).String())
}

// Key returns the registry key of r.
func (r FaceRef) Key() brep.Key { return FaceID(r.Occurrence, r.Face) }

// Key returns the registry key of r.
func (r EdgeRef) Key() brep.Key { return EdgeID(r.Occurrence, r.Edge) }

// SelectedFace is a registered face.
type SelectedFace struct {
	Key        brep.Key
	Occurrence graph.NodeID
	Root       graph.NodeID // outermost occurrence above Occurrence
	Face       *brep.Face
	// RefPoint is a component-space point inside the face. It finds the
	// face again after its body is rebuilt.
	RefPoint v3.Vec
	Selected bool
	Edges    []brep.Key // drop edges in discovery order
	// Skipped holds the edges the last discovery failed on.
	Skipped []error
}

// SelectedEdge is a drop edge discovered on a registered face.
type SelectedEdge struct {
	Key          brep.Key
	FaceKey      brep.Key
	Edge         *brep.Edge
	Selected     bool
	CornerVector v3.Vec
	Angle        float64 // degrees
	Centre       *brep.Vertex
	Start, End   v3.Vec // centre first, component space
}

// Snapshot is the host's view of what is selected. Faces and edges are
// matched by key; order only matters for the faces that get added.
type Snapshot struct {
	Faces []FaceRef
	Edges []EdgeRef
}

// Change records what one registry mutation did.
type Change struct {
	AddedFaces      []brep.Key
	RemovedFaces    []brep.Key
	SelectedEdges   []brep.Key
	DeselectedEdges []brep.Key
	Rejected        []error // faces or edges the registry refused
	Skipped         []error // edges discovery failed on; the face still counts
}

// IsZero reports whether the change did nothing.
func (c Change) IsZero() bool {
	return len(c.AddedFaces) == 0 && len(c.RemovedFaces) == 0 &&
		len(c.SelectedEdges) == 0 && len(c.DeselectedEdges) == 0 &&
		len(c.Rejected) == 0 && len(c.Skipped) == 0
}

// Err joins the rejections, or returns nil.
func (c Change) Err() error { return errors.Join(c.Rejected...) }

func (c *Change) merge(o Change) {
	c.AddedFaces = append(c.AddedFaces, o.AddedFaces...)
	c.RemovedFaces = append(c.RemovedFaces, o.RemovedFaces...)
	c.SelectedEdges = append(c.SelectedEdges, o.SelectedEdges...)
	c.DeselectedEdges = append(c.DeselectedEdges, o.DeselectedEdges...)
	c.Rejected = append(c.Rejected, o.Rejected...)
	c.Skipped = append(c.Skipped, o.Skipped...)
}

// Tool returns the view of e the synthesizer builds from, with f the
// face e was discovered on.
func (e SelectedEdge) Tool(f SelectedFace) dogbone.Edge {
	return dogbone.Edge{
		Start:        e.Start,
		End:          e.End,
		CornerVector: e.CornerVector,
		Angle:        e.Angle,
		Face:         f.Face,
		Centre:       e.Centre,
	}
}
