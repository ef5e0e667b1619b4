package selection

import (
	"fmt"
	"slices"

	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/corner"
	"github.com/chazu/dogbone/pkg/graph"
	"go.uber.org/zap"
)

// Assembly resolves occurrences to their place in the tree and their
// component topology. *graph.DesignGraph implements it.
type Assembly interface {
	RootOf(occ graph.NodeID) (graph.NodeID, error)
	BodyOf(occ graph.NodeID) (*brep.Body, error)
}

var _ Assembly = (*graph.DesignGraph)(nil)

// Registry owns the selected faces and edges. It is not safe for
// concurrent use.
type Registry struct {
	asm        Assembly
	classifier *corner.Classifier
	mode       corner.AngleMode
	log        *zap.Logger

	faces map[brep.Key]*SelectedFace
	edges map[brep.Key]*SelectedEdge
	byOcc map[graph.NodeID][]brep.Key
	occs  []graph.NodeID // registration order
}

// New returns an empty Registry classifying faces with mode. A nil logger
// discards output.
func New(asm Assembly, mode corner.AngleMode, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		asm:        asm,
		classifier: corner.New(log),
		mode:       mode,
		log:        log.Named("selection"),
		faces:      make(map[brep.Key]*SelectedFace),
		edges:      make(map[brep.Key]*SelectedEdge),
		byOcc:      make(map[graph.NodeID][]brep.Key),
	}
}

// Mode returns the angle mode faces are classified with.
func (r *Registry) Mode() corner.AngleMode { return r.mode }

// IsFaceSelectable reports whether AddFace would accept ref.
func (r *Registry) IsFaceSelectable(ref FaceRef) bool {
	return r.CheckFace(ref) == nil
}

// CheckFace returns why AddFace would refuse ref, or nil.
func (r *Registry) CheckFace(ref FaceRef) error {
	_, err := r.check(ref)
	return err
}

// IsEdgeSelectable reports whether ref is a drop edge of a registered face.
func (r *Registry) IsEdgeSelectable(ref EdgeRef) bool {
	if ref.Edge == nil {
		return false
	}
	_, ok := r.edges[ref.Key()]
	return ok
}

// check returns the root of ref's occurrence tree if ref may be added.
func (r *Registry) check(ref FaceRef) (graph.NodeID, error) {
	if ref.Face == nil || !ref.Face.IsPlanar() {
		return "", fmt.Errorf("%w: not a planar face", ErrNotSelectable)
	}
	root, err := r.asm.RootOf(ref.Occurrence)
	if err != nil {
		return "", fmt.Errorf("selection: %w", err)
	}
	for _, occ := range r.occs {
		for _, k := range r.byOcc[occ] {
			if f := r.faces[k]; f.Selected && f.Root != root {
				return "", fmt.Errorf("%w: %s is selected", ErrForeignOccurrence, f.Occurrence.Short())
			}
		}
	}
	if p := r.primary(ref.Occurrence); p != nil && !brep.Parallel(p.Face.Normal, ref.Face.Normal) {
		return "", fmt.Errorf("%w: not parallel to face %d", ErrNotSelectable, p.Face.ID)
	}
	return root, nil
}

// primary returns the first selected face of occ, or nil.
func (r *Registry) primary(occ graph.NodeID) *SelectedFace {
	for _, k := range r.byOcc[occ] {
		if f := r.faces[k]; f.Selected {
			return f
		}
	}
	return nil
}

// AddFace registers ref and selects every drop edge found on it. A face
// with no drop edges is registered but left unselected. Adding a face
// that is already registered changes nothing.
func (r *Registry) AddFace(ref FaceRef) (Change, error) {
	if ref.Face != nil {
		if _, ok := r.faces[ref.Key()]; ok {
			return Change{}, nil
		}
	}
	root, err := r.check(ref)
	if err != nil {
		return Change{}, err
	}

	key := ref.Key()
	sf := &SelectedFace{
		Key:        key,
		Occurrence: ref.Occurrence,
		Root:       root,
		Face:       ref.Face,
		RefPoint:   ref.Face.ReferencePoint(),
	}
	r.faces[key] = sf
	if _, ok := r.byOcc[ref.Occurrence]; !ok {
		r.occs = append(r.occs, ref.Occurrence)
	}
	r.byOcc[ref.Occurrence] = append(r.byOcc[ref.Occurrence], key)

	rep := r.classifier.Classify(ref.Face, r.mode)
	sf.Skipped = rep.Errors
	ch := Change{AddedFaces: []brep.Key{key}, Skipped: rep.Errors}
	for _, c := range rep.Candidates {
		ek := EdgeID(ref.Occurrence, c.Edge)
		if _, taken := r.edges[ek]; taken {
			r.log.Debug("edge already registered", zap.Stringer("edge", ek))
			continue
		}
		r.edges[ek] = newEdge(ek, key, c)
		sf.Edges = append(sf.Edges, ek)
		ch.SelectedEdges = append(ch.SelectedEdges, ek)
	}
	sf.Selected = len(sf.Edges) > 0

	r.log.Debug("face added",
		zap.Stringer("face", key),
		zap.String("occurrence", ref.Occurrence.Short()),
		zap.Int("edges", len(sf.Edges)),
		zap.Int("skipped", len(sf.Skipped)),
		zap.Bool("selected", sf.Selected))
	return ch, nil
}

func newEdge(key, face brep.Key, c corner.Candidate) *SelectedEdge {
	return &SelectedEdge{
		Key:          key,
		FaceKey:      face,
		Edge:         c.Edge,
		Selected:     true,
		CornerVector: c.CornerVector,
		Angle:        c.Angle,
		Centre:       c.Centre,
		Start:        c.Start,
		End:          c.End,
	}
}

// RemoveFace deregisters a face and all of its edges. It reports false if
// the face was not registered.
func (r *Registry) RemoveFace(key brep.Key) (Change, bool) {
	sf, ok := r.faces[key]
	if !ok {
		return Change{}, false
	}
	ch := Change{RemovedFaces: []brep.Key{key}}
	for _, ek := range sf.Edges {
		if e := r.edges[ek]; e != nil && e.Selected {
			ch.DeselectedEdges = append(ch.DeselectedEdges, ek)
		}
		delete(r.edges, ek)
	}
	delete(r.faces, key)

	keys := slices.DeleteFunc(r.byOcc[sf.Occurrence], func(k brep.Key) bool { return k == key })
	if len(keys) == 0 {
		delete(r.byOcc, sf.Occurrence)
		r.occs = slices.DeleteFunc(r.occs, func(o graph.NodeID) bool { return o == sf.Occurrence })
	} else {
		r.byOcc[sf.Occurrence] = keys
	}

	r.log.Debug("face removed", zap.Stringer("face", key), zap.Int("edges", len(sf.Edges)))
	return ch, true
}

// SetEdgeSelected selects or deselects a registered edge.
func (r *Registry) SetEdgeSelected(key brep.Key, selected bool) (Change, error) {
	e, ok := r.edges[key]
	if !ok {
		return Change{}, fmt.Errorf("selection: edge %s is not a registered drop edge", key.Short())
	}
	if e.Selected == selected {
		return Change{}, nil
	}
	e.Selected = selected
	r.log.Debug("edge toggled", zap.Stringer("edge", key), zap.Bool("selected", selected))
	if selected {
		return Change{SelectedEdges: []brep.Key{key}}, nil
	}
	return Change{DeselectedEdges: []brep.Key{key}}, nil
}

// Clear removes every face.
func (r *Registry) Clear() Change {
	var ch Change
	for _, occ := range slices.Clone(r.occs) {
		for _, k := range slices.Clone(r.byOcc[occ]) {
			c, _ := r.RemoveFace(k)
			ch.merge(c)
		}
	}
	return ch
}

// Face returns a copy of a registered face.
func (r *Registry) Face(key brep.Key) (SelectedFace, bool) {
	f, ok := r.faces[key]
	if !ok {
		return SelectedFace{}, false
	}
	return f.clone(), true
}

// Edge returns a copy of a registered edge.
func (r *Registry) Edge(key brep.Key) (SelectedEdge, bool) {
	e, ok := r.edges[key]
	if !ok {
		return SelectedEdge{}, false
	}
	return *e, true
}

// Faces returns the registered faces of occ in registration order.
func (r *Registry) Faces(occ graph.NodeID) []SelectedFace {
	var out []SelectedFace
	for _, k := range r.byOcc[occ] {
		out = append(out, r.faces[k].clone())
	}
	return out
}

// SelectedFaces returns the selected faces of occ in registration order.
func (r *Registry) SelectedFaces(occ graph.NodeID) []SelectedFace {
	var out []SelectedFace
	for _, k := range r.byOcc[occ] {
		if f := r.faces[k]; f.Selected {
			out = append(out, f.clone())
		}
	}
	return out
}

// Edges returns every drop edge registered on a face.
func (r *Registry) Edges(face brep.Key) []SelectedEdge {
	f, ok := r.faces[face]
	if !ok {
		return nil
	}
	out := make([]SelectedEdge, 0, len(f.Edges))
	for _, k := range f.Edges {
		out = append(out, *r.edges[k])
	}
	return out
}

// SelectedEdges returns the selected drop edges of a face.
func (r *Registry) SelectedEdges(face brep.Key) []SelectedEdge {
	f, ok := r.faces[face]
	if !ok {
		return nil
	}
	var out []SelectedEdge
	for _, k := range f.Edges {
		if e := r.edges[k]; e.Selected {
			out = append(out, *e)
		}
	}
	return out
}

// Occurrences returns every occurrence with a registered face.
func (r *Registry) Occurrences() []graph.NodeID { return slices.Clone(r.occs) }

// SelectedOccurrences returns the occurrences with a selected face.
func (r *Registry) SelectedOccurrences() []graph.NodeID {
	var out []graph.NodeID
	for _, occ := range r.occs {
		if r.primary(occ) != nil {
			out = append(out, occ)
		}
	}
	return out
}

// Selection returns what the host should show as selected: every
// selected face and its selected edges.
func (r *Registry) Selection() Snapshot {
	var s Snapshot
	for _, occ := range r.occs {
		for _, k := range r.byOcc[occ] {
			f := r.faces[k]
			if !f.Selected {
				continue
			}
			s.Faces = append(s.Faces, FaceRef{Occurrence: occ, Face: f.Face})
			for _, ek := range f.Edges {
				if e := r.edges[ek]; e.Selected {
					s.Edges = append(s.Edges, EdgeRef{Occurrence: occ, Edge: e.Edge})
				}
			}
		}
	}
	return s
}

func (f *SelectedFace) clone() SelectedFace {
	c := *f
	c.Edges = slices.Clone(f.Edges)
	c.Skipped = slices.Clone(f.Skipped)
	return c
}
