package graph

import (
	"fmt"

	"github.com/google/uuid"
)

// nodeSpace namespaces generated node IDs.
var nodeSpace = uuid.MustParse("0c6b8f3e-2d71-4a59-9e04-b7a1c35d8f62")

// NodeID is a content-addressed identifier for graph nodes.
type NodeID string

// NewNodeID derives a stable ID from a key such as "occurrence/bracket-1".
func NewNodeID(key string) NodeID {
	return NodeID(uuid.NewSHA1(nodeSpace, []byte(key)).String())
}

// IsZero reports whether id is unset.
func (id NodeID) IsZero() bool { return id == "" }

// Short returns the first eight characters, for messages.
func (id NodeID) Short() string {
	if len(id) < 8 {
		return string(id)
	}
	return string(id[:8])
}

func (id NodeID) String() string { return string(id) }

// NodeKind enumerates the types of nodes in the assembly graph.
type NodeKind int

const (
	NodeComponent  NodeKind = iota // part definition (body + solid)
	NodeOccurrence                 // placed instance of one child
	NodeGroup                      // assembly of occurrences
)

func (k NodeKind) String() string {
	switch k {
	case NodeComponent:
		return "component"
	case NodeOccurrence:
		return "occurrence"
	case NodeGroup:
		return "group"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is the fundamental element of the assembly graph.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Children []NodeID `json:"children,omitempty"`
	Data     NodeData `json:"data"`
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}
