// Package tessellate walks an assembly graph and produces triangle meshes
// using a geometry kernel. One mesh is produced per placed component, and
// optionally one per relief tool union for previews.
package tessellate

import (
	"fmt"
	"strings"

	"github.com/chazu/dogbone/pkg/command"
	"github.com/chazu/dogbone/pkg/graph"
	"github.com/chazu/dogbone/pkg/kernel"
)

// frameStack accumulates placement frames during graph traversal.
type frameStack struct {
	frames []kernel.Frame
	names  []string
}

func newFrameStack() *frameStack {
	return &frameStack{frames: []kernel.Frame{kernel.Identity()}}
}

func (fs *frameStack) push(name string, f kernel.Frame) {
	fs.frames = append(fs.frames, fs.top().Compose(f))
	fs.names = append(fs.names, name)
}

func (fs *frameStack) pop() {
	fs.frames = fs.frames[:len(fs.frames)-1]
	fs.names = fs.names[:len(fs.names)-1]
}

func (fs *frameStack) top() kernel.Frame { return fs.frames[len(fs.frames)-1] }

// path names the current position the way graph.Path does.
func (fs *frameStack) path() string { return strings.Join(fs.names, "/") }

// Tessellate walks the design graph and produces one body mesh per
// occurrence of a component, in world space and named by occurrence path.
// The tessellator is read-only and never mutates the graph.
func Tessellate(g *graph.DesignGraph, k kernel.Kernel) ([]*kernel.Mesh, error) {
	if g == nil {
		return nil, nil
	}

	var meshes []*kernel.Mesh
	fs := newFrameStack()

	for _, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			continue
		}
		collected, err := walkNode(g, k, root, fs)
		if err != nil {
			return nil, fmt.Errorf("tessellate: error walking root %s: %w", rootID.Short(), err)
		}
		meshes = append(meshes, collected...)
	}

	return meshes, nil
}

// walkNode recursively traverses a node and its children, collecting meshes.
func walkNode(g *graph.DesignGraph, k kernel.Kernel, n *graph.Node, fs *frameStack) ([]*kernel.Mesh, error) {
	switch n.Kind {
	case graph.NodeComponent:
		return handleComponent(k, n, fs)

	case graph.NodeOccurrence:
		od, ok := n.Data.(graph.OccurrenceData)
		if !ok {
			return nil, fmt.Errorf("occurrence node %s has unexpected data type %T", n.ID.Short(), n.Data)
		}
		return handleChildren(g, k, n, fs, od.Placement.Frame())

	case graph.NodeGroup:
		return handleChildren(g, k, n, fs, kernel.Identity())

	default:
		return nil, fmt.Errorf("unknown node kind: %v", n.Kind)
	}
}

// handleComponent meshes a component's current solid in the accumulated
// frame. Components without a solid produce nothing.
func handleComponent(k kernel.Kernel, n *graph.Node, fs *frameStack) ([]*kernel.Mesh, error) {
	cd, ok := n.Data.(*graph.ComponentData)
	if !ok {
		return nil, fmt.Errorf("component node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}
	if cd == nil || cd.Solid == nil {
		return nil, nil
	}

	name := fs.path()
	if name == "" {
		name = n.Name
	}
	m, err := mesh(k, cd.Solid, fs.top(), name, kernel.RoleBody)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", name, err)
	}
	return []*kernel.Mesh{m}, nil
}

// handleChildren pushes the node's frame, recurses into children, then pops.
func handleChildren(g *graph.DesignGraph, k kernel.Kernel, n *graph.Node, fs *frameStack, f kernel.Frame) ([]*kernel.Mesh, error) {
	name := n.Name
	if name == "" {
		name = n.ID.Short()
	}
	fs.push(name, f)
	defer fs.pop()

	var meshes []*kernel.Mesh
	for _, child := range g.Children(n) {
		collected, err := walkNode(g, k, child, fs)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, collected...)
	}
	return meshes, nil
}

// Tools meshes the tool union of every occurrence in res, oriented into
// that occurrence's world frame, for previewing a relief before the cut.
func Tools(g *graph.DesignGraph, k kernel.Kernel, res command.Result) ([]*kernel.Mesh, error) {
	var meshes []*kernel.Mesh
	for _, o := range res.Occurrences {
		if o.Tool == nil {
			continue
		}
		f, err := g.FrameOf(o.Occurrence)
		if err != nil {
			return nil, fmt.Errorf("tessellate: %s: %w", o.Path, err)
		}
		m, err := mesh(k, o.Tool, f, o.Path, kernel.RoleTool)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for tools of %s: %w", o.Path, err)
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

func mesh(k kernel.Kernel, s kernel.Solid, f kernel.Frame, name string, role kernel.MeshRole) (*kernel.Mesh, error) {
	if !f.IsIdentity() {
		s = k.Orient(s, f)
	}
	m, err := k.ToMesh(s)
	if err != nil {
		return nil, err
	}
	m.Name = name
	m.Role = role
	return m, nil
}
