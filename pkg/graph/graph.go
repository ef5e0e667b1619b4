package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrNotFound is returned when a node ID is not in the graph.
	ErrNotFound = errors.New("graph: node not found")
	// ErrWrongKind is returned when a node is not of the kind an operation
	// needs.
	ErrWrongKind = errors.New("graph: wrong node kind")
	// ErrNoFace is returned when no face of a component lies at a point.
	ErrNoFace = errors.New("graph: no face at point")
	// ErrNoEdge is returned when no edge of a component joins two points.
	ErrNoEdge = errors.New("graph: no edge between points")
)

// DesignGraph is the assembly produced by script evaluation. Its structure
// is fixed once built. Component solids change through SetSolid when relief
// cuts are applied, and whole components through SetBody when a part is
// redefined.
type DesignGraph struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
	Version   uint64            `json:"version"`

	parents map[NodeID][]NodeID
}

// New creates an empty DesignGraph.
func New() *DesignGraph {
	return &DesignGraph{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
	}
}

// AddNode adds a node to the graph. It does not check for duplicates.
func (g *DesignGraph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
	if n.Name != "" {
		g.NameIndex[n.Name] = n.ID
	}
	g.parents = nil
}

// AddRoot registers a node ID as a root of the graph.
func (g *DesignGraph) AddRoot(id NodeID) {
	g.Roots = append(g.Roots, id)
	g.parents = nil
}

// Lookup returns the node with the given user-assigned name, or nil.
func (g *DesignGraph) Lookup(name string) *Node {
	id, ok := g.NameIndex[name]
	if !ok {
		return nil
	}
	return g.Nodes[id]
}

// MustLookup returns the node with the given name, or panics.
func (g *DesignGraph) MustLookup(name string) *Node {
	n := g.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return n
}

// Get returns the node with the given ID, or nil.
func (g *DesignGraph) Get(id NodeID) *Node {
	return g.Nodes[id]
}

// Children returns the child nodes of the given node.
func (g *DesignGraph) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := g.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// Parents returns the IDs of the nodes listing id as a child, in the order
// they were first found walking from the roots.
func (g *DesignGraph) Parents(id NodeID) []NodeID {
	if g.parents == nil {
		g.parents = make(map[NodeID][]NodeID)
		g.walk(func(n *Node, _ []NodeID) {
			for _, c := range n.Children {
				g.parents[c] = appendUnique(g.parents[c], n.ID)
			}
		})
		for id, n := range g.Nodes {
			for _, c := range n.Children {
				g.parents[c] = appendUnique(g.parents[c], id)
			}
		}
	}
	return g.parents[id]
}

// Components returns every component node in root walk order.
func (g *DesignGraph) Components() []*Node { return g.ofKind(NodeComponent) }

// Occurrences returns every occurrence node in root walk order.
func (g *DesignGraph) Occurrences() []*Node { return g.ofKind(NodeOccurrence) }

// NodeCount returns the total number of nodes.
func (g *DesignGraph) NodeCount() int {
	return len(g.Nodes)
}

// RootOf returns the outermost occurrence above occ, or occ itself when it
// is not nested in another occurrence.
func (g *DesignGraph) RootOf(occ NodeID) (NodeID, error) {
	if _, err := g.occurrence(occ); err != nil {
		return "", err
	}
	root := occ
	seen := map[NodeID]bool{occ: true}
	for cur := occ; ; {
		ps := g.Parents(cur)
		if len(ps) == 0 {
			return root, nil
		}
		cur = ps[0]
		if seen[cur] {
			return "", fmt.Errorf("graph: cycle above occurrence %s", occ.Short())
		}
		seen[cur] = true
		if n := g.Nodes[cur]; n != nil && n.Kind == NodeOccurrence {
			root = cur
		}
	}
}

// FrameOf returns the frame mapping occ's component space into world
// space: the composition of every placement from the root down to occ.
func (g *DesignGraph) FrameOf(occ NodeID) (kernel.Frame, error) {
	n, err := g.occurrence(occ)
	if err != nil {
		return kernel.Frame{}, err
	}
	f := n.Data.(OccurrenceData).Placement.Frame()
	seen := map[NodeID]bool{occ: true}
	for cur := occ; ; {
		ps := g.Parents(cur)
		if len(ps) == 0 {
			return f, nil
		}
		cur = ps[0]
		if seen[cur] {
			return kernel.Frame{}, fmt.Errorf("graph: cycle above occurrence %s", occ.Short())
		}
		seen[cur] = true
		if p := g.Nodes[cur]; p != nil && p.Kind == NodeOccurrence {
			f = p.Data.(OccurrenceData).Placement.Frame().Compose(f)
		}
	}
}

// ComponentOf returns the component placed directly by occ.
func (g *DesignGraph) ComponentOf(occ NodeID) (*Node, error) {
	n, err := g.occurrence(occ)
	if err != nil {
		return nil, err
	}
	if len(n.Children) != 1 {
		return nil, fmt.Errorf("%w: occurrence %s has %d children", ErrWrongKind, occ.Short(), len(n.Children))
	}
	c := g.Nodes[n.Children[0]]
	if c == nil {
		return nil, fmt.Errorf("%w: child of occurrence %s", ErrNotFound, occ.Short())
	}
	if c.Kind != NodeComponent {
		return nil, fmt.Errorf("%w: occurrence %s places a %s, not a component", ErrWrongKind, occ.Short(), c.Kind)
	}
	return c, nil
}

// BodyOf returns the topology of the component placed by occ.
func (g *DesignGraph) BodyOf(occ NodeID) (*brep.Body, error) {
	c, err := g.ComponentOf(occ)
	if err != nil {
		return nil, err
	}
	return c.Data.(*ComponentData).Body, nil
}

// SolidOf returns the current kernel solid of the component placed by occ.
func (g *DesignGraph) SolidOf(occ NodeID) (kernel.Solid, error) {
	c, err := g.ComponentOf(occ)
	if err != nil {
		return nil, err
	}
	return c.Data.(*ComponentData).Solid, nil
}

// SetSolid replaces the solid of the component placed by occ. Every other
// occurrence of the same component sees the change.
func (g *DesignGraph) SetSolid(occ NodeID, s kernel.Solid) error {
	c, err := g.ComponentOf(occ)
	if err != nil {
		return err
	}
	c.Data.(*ComponentData).Solid = s
	g.Version++
	return nil
}

// SetBody replaces both the topology and the solid of the component placed
// by occ, as when the part is redefined. Faces and edges resolved before
// point into the old body.
func (g *DesignGraph) SetBody(occ NodeID, b *brep.Body, s kernel.Solid) error {
	if b == nil {
		return fmt.Errorf("graph: set body of %s: nil body", occ.Short())
	}
	c, err := g.ComponentOf(occ)
	if err != nil {
		return err
	}
	cd := c.Data.(*ComponentData)
	cd.Body, cd.Solid = b, s
	g.Version++
	return nil
}

// ResolveFace maps a world-space point through occ's frame and returns the
// component face there, in component space.
func (g *DesignGraph) ResolveFace(occ NodeID, p v3.Vec) (*brep.Face, error) {
	body, f, err := g.local(occ)
	if err != nil {
		return nil, err
	}
	face := body.FaceAt(f.Inverse(p))
	if face == nil {
		return nil, fmt.Errorf("%w: %v in occurrence %s", ErrNoFace, p, occ.Short())
	}
	return face, nil
}

// ResolveEdge maps two world-space points through occ's frame and returns
// the component edge joining them.
func (g *DesignGraph) ResolveEdge(occ NodeID, a, b v3.Vec) (*brep.Edge, error) {
	body, f, err := g.local(occ)
	if err != nil {
		return nil, err
	}
	e := body.EdgeBetween(f.Inverse(a), f.Inverse(b))
	if e == nil {
		return nil, fmt.Errorf("%w: %v and %v in occurrence %s", ErrNoEdge, a, b, occ.Short())
	}
	return e, nil
}

// Path returns the names of the nodes from a root down to id, joined by
// "/". Unnamed nodes contribute their short ID.
func (g *DesignGraph) Path(id NodeID) string {
	var parts []string
	seen := make(map[NodeID]bool)
	for cur := id; cur != "" && !seen[cur]; {
		seen[cur] = true
		name := cur.Short()
		if n := g.Nodes[cur]; n != nil && n.Name != "" {
			name = n.Name
		}
		parts = append([]string{name}, parts...)
		ps := g.Parents(cur)
		if len(ps) == 0 {
			break
		}
		cur = ps[0]
	}
	return strings.Join(parts, "/")
}

func (g *DesignGraph) local(occ NodeID) (*brep.Body, kernel.Frame, error) {
	body, err := g.BodyOf(occ)
	if err != nil {
		return nil, kernel.Frame{}, err
	}
	if body == nil {
		return nil, kernel.Frame{}, fmt.Errorf("graph: occurrence %s has no body", occ.Short())
	}
	f, err := g.FrameOf(occ)
	if err != nil {
		return nil, kernel.Frame{}, err
	}
	return body, f, nil
}

func (g *DesignGraph) occurrence(id NodeID) (*Node, error) {
	n := g.Nodes[id]
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.Short())
	}
	if n.Kind != NodeOccurrence {
		return nil, fmt.Errorf("%w: %s is a %s, not an occurrence", ErrWrongKind, id.Short(), n.Kind)
	}
	return n, nil
}

func (g *DesignGraph) ofKind(kind NodeKind) []*Node {
	var out []*Node
	seen := make(map[NodeID]bool)
	g.walk(func(n *Node, _ []NodeID) {
		if n.Kind == kind && !seen[n.ID] {
			seen[n.ID] = true
			out = append(out, n)
		}
	})
	return out
}

// walk visits nodes depth-first from the roots in order, passing the path
// of IDs above each node. Nodes already on the path are not re-entered.
func (g *DesignGraph) walk(visit func(n *Node, path []NodeID)) {
	var rec func(id NodeID, path []NodeID)
	rec = func(id NodeID, path []NodeID) {
		n := g.Nodes[id]
		if n == nil {
			return
		}
		for _, p := range path {
			if p == id {
				return
			}
		}
		visit(n, path)
		next := append(append([]NodeID(nil), path...), id)
		for _, c := range n.Children {
			rec(c, next)
		}
	}
	for _, r := range g.Roots {
		rec(r, nil)
	}
}

func appendUnique(ids []NodeID, id NodeID) []NodeID {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}
