package graph

import (
	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Component
// ---------------------------------------------------------------------------

// ComponentData is a part definition. Body carries the topology corners are
// found on; Solid is the kernel shape that relief cuts are subtracted from.
type ComponentData struct {
	Body        *brep.Body   `json:"-"`
	Solid       kernel.Solid `json:"-"`
	Description string       `json:"description,omitempty"`
}

func (*ComponentData) nodeData() {}

// ---------------------------------------------------------------------------
// Occurrence
// ---------------------------------------------------------------------------

// Placement positions an occurrence's child in its parent.
type Placement struct {
	Translation v3.Vec `json:"translation"`
	Rotation    v3.Vec `json:"rotation"` // Euler angles in degrees, X then Y then Z
}

// Frame returns the placement as a coordinate frame.
func (p Placement) Frame() kernel.Frame {
	return kernel.FromEuler(p.Translation, p.Rotation)
}

// OccurrenceData places exactly one child component or group.
// Created by the (place ...) script form.
type OccurrenceData struct {
	Placement Placement `json:"placement"`
}

func (OccurrenceData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData represents an assembly of occurrences.
// Created by the (assembly ...) script form.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}
