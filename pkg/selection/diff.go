package selection

import (
	"fmt"
	"slices"

	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/corner"
	"github.com/chazu/dogbone/pkg/graph"
	"go.uber.org/zap"
)

// DiffAndApply brings the registry in line with the host's selection.
// Faces missing from snap are removed with their edges and faces new to
// snap are added, which selects their drop edges. For faces that were
// already registered, edge selection follows snap.
//
// When programmatic is set, snap is the host echoing a change the
// registry made itself. It is acknowledged and nothing is applied.
//
// Faces and edges the registry refuses are listed in the returned
// Change, and the error joins them.
func (r *Registry) DiffAndApply(snap Snapshot, programmatic bool) (Change, error) {
	if programmatic {
		r.log.Debug("programmatic selection change acknowledged",
			zap.Int("faces", len(snap.Faces)),
			zap.Int("edges", len(snap.Edges)))
		return Change{}, nil
	}

	want := make(map[brep.Key]FaceRef, len(snap.Faces))
	var order []brep.Key
	for _, ref := range snap.Faces {
		if ref.Face == nil {
			continue
		}
		k := ref.Key()
		if _, dup := want[k]; !dup {
			want[k] = ref
			order = append(order, k)
		}
	}

	var ch Change
	for _, occ := range slices.Clone(r.occs) {
		for _, k := range slices.Clone(r.byOcc[occ]) {
			if _, keep := want[k]; !keep {
				c, _ := r.RemoveFace(k)
				ch.merge(c)
			}
		}
	}

	var existing []brep.Key
	for _, k := range order {
		if _, ok := r.faces[k]; ok {
			existing = append(existing, k)
		}
	}
	for _, k := range order {
		if _, ok := r.faces[k]; ok {
			continue
		}
		c, err := r.AddFace(want[k])
		if err != nil {
			r.log.Debug("face rejected", zap.Stringer("face", k), zap.Error(err))
			ch.Rejected = append(ch.Rejected, err)
			continue
		}
		ch.merge(c)
	}

	picked := make(map[brep.Key]bool, len(snap.Edges))
	for _, ref := range snap.Edges {
		if ref.Edge == nil {
			continue
		}
		k := ref.Key()
		if _, ok := r.edges[k]; !ok {
			ch.Rejected = append(ch.Rejected, fmt.Errorf("%w: edge %d is not a drop edge of a registered face", ErrNotSelectable, ref.Edge.ID))
			continue
		}
		picked[k] = true
	}
	for _, fk := range existing {
		for _, ek := range r.faces[fk].Edges {
			c, err := r.SetEdgeSelected(ek, picked[ek])
			if err != nil {
				ch.Rejected = append(ch.Rejected, err)
				continue
			}
			ch.merge(c)
		}
	}

	r.log.Debug("selection diffed",
		zap.Int("added", len(ch.AddedFaces)),
		zap.Int("removed", len(ch.RemovedFaces)),
		zap.Int("selected_edges", len(ch.SelectedEdges)),
		zap.Int("deselected_edges", len(ch.DeselectedEdges)),
		zap.Int("rejected", len(ch.Rejected)))
	return ch, ch.Err()
}

// Reclassify switches to mode and runs discovery again on every
// registered face. Edges found before keep their selection state and new
// edges start selected. The tree that held the selection keeps it; faces
// of other trees stay unselected whatever they gain.
func (r *Registry) Reclassify(mode corner.AngleMode) Change {
	r.mode = mode
	var ch Change
	active := r.selectedRoot()
	for _, occ := range r.occs {
		for _, k := range r.byOcc[occ] {
			f := r.faces[k]
			prev := f.Edges
			was := make(map[brep.Key]bool, len(prev))
			for _, ek := range prev {
				was[ek] = r.edges[ek].Selected
				delete(r.edges, ek)
			}

			rep := r.classifier.Classify(f.Face, mode)
			f.Skipped = rep.Errors
			ch.Skipped = append(ch.Skipped, rep.Errors...)

			f.Edges = nil
			var fresh []brep.Key
			for _, c := range rep.Candidates {
				ek := EdgeID(occ, c.Edge)
				if _, taken := r.edges[ek]; taken {
					continue
				}
				e := newEdge(ek, k, c)
				if sel, ok := was[ek]; ok {
					e.Selected = sel
					delete(was, ek)
				} else {
					fresh = append(fresh, ek)
				}
				r.edges[ek] = e
				f.Edges = append(f.Edges, ek)
			}

			f.Selected = len(f.Edges) > 0
			if f.Selected {
				if active == "" {
					active = f.Root
				} else if f.Root != active {
					r.log.Debug("face left unselected: another component is selected", zap.Stringer("face", k))
					f.Selected = false
				}
			}
			if f.Selected {
				ch.SelectedEdges = append(ch.SelectedEdges, fresh...)
			}
			for _, ek := range prev {
				if sel, gone := was[ek]; gone && sel {
					ch.DeselectedEdges = append(ch.DeselectedEdges, ek)
				}
			}
		}
	}
	r.log.Debug("reclassified",
		zap.Bool("acute", mode.Acute),
		zap.Bool("obtuse", mode.Obtuse),
		zap.String("root", active.Short()),
		zap.Int("selected_edges", len(ch.SelectedEdges)),
		zap.Int("deselected_edges", len(ch.DeselectedEdges)),
		zap.Int("skipped", len(ch.Skipped)))
	return ch
}

// selectedRoot returns the root of the tree holding the selection, or ""
// when no face is selected.
func (r *Registry) selectedRoot() graph.NodeID {
	for _, occ := range r.occs {
		if p := r.primary(occ); p != nil {
			return p.Root
		}
	}
	return ""
}

// Refresh finds every registered face and edge again on the current body
// of its occurrence: faces by reference point, edges by endpoints. Faces
// that cannot be found, or that had edges and lost all of them, are
// removed.
func (r *Registry) Refresh() Change {
	var ch Change
	for _, occ := range slices.Clone(r.occs) {
		body, err := r.asm.BodyOf(occ)
		if err != nil {
			r.log.Warn("occurrence lost", zap.String("occurrence", occ.Short()), zap.Error(err))
		}
		for _, k := range slices.Clone(r.byOcc[occ]) {
			f := r.faces[k]
			var face *brep.Face
			if body != nil {
				face = body.FaceAt(f.RefPoint)
			}
			if face == nil {
				r.log.Debug("face lost", zap.Stringer("face", k))
				c, _ := r.RemoveFace(k)
				ch.merge(c)
				continue
			}
			f.Face = face

			had := len(f.Edges)
			var kept []brep.Key
			for _, ek := range f.Edges {
				e := r.edges[ek]
				ne := body.EdgeBetween(e.Start, e.End)
				if ne == nil {
					r.log.Debug("edge lost", zap.Stringer("edge", ek))
					if e.Selected {
						ch.DeselectedEdges = append(ch.DeselectedEdges, ek)
					}
					delete(r.edges, ek)
					continue
				}
				e.Edge = ne
				e.Centre = body.VertexAt(e.Start)
				kept = append(kept, ek)
			}
			f.Edges = kept

			if had > 0 && len(kept) == 0 {
				c, _ := r.RemoveFace(k)
				ch.merge(c)
			}
		}
	}
	return ch
}
