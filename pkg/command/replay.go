package command

import (
	"fmt"

	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/config"
	"github.com/chazu/dogbone/pkg/graph"
	"github.com/chazu/dogbone/pkg/kernel"
	"github.com/chazu/dogbone/pkg/selection"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

// FromConfig converts file or script settings into command parameters.
func FromConfig(p config.Params) (Params, error) {
	if err := p.Check(); err != nil {
		return Params{}, fmt.Errorf("command: %w", err)
	}
	tool, err := p.Tool()
	if err != nil {
		return Params{}, fmt.Errorf("command: %w", err)
	}
	return Params{Tool: tool, Mode: p.AngleMode(), ExtendToTop: p.ExtendToTop}, nil
}

// ActionKind is what a recorded pick does.
type ActionKind int

const (
	ActionSelectFace   ActionKind = iota // select the face under Points[0]
	ActionSelectEdge                     // select the drop edge Points[0]-Points[1]
	ActionDeselectEdge                   // deselect the drop edge Points[0]-Points[1]
	ActionRebuild                        // swap in Body and Solid for the placed part
)

func (k ActionKind) String() string {
	switch k {
	case ActionSelectFace:
		return "select-face"
	case ActionSelectEdge:
		return "select-edge"
	case ActionDeselectEdge:
		return "deselect-edge"
	case ActionRebuild:
		return "rebuild"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is a pick or rebuild recorded by a script. Points are world
// space. Body and Solid are only set for ActionRebuild.
type Action struct {
	Kind       ActionKind
	Occurrence string // occurrence name
	Points     []v3.Vec
	Body       *brep.Body
	Solid      kernel.Solid
}

func (a Action) String() string {
	if a.Kind == ActionRebuild {
		return fmt.Sprintf("(%s %q)", a.Kind, a.Occurrence)
	}
	return fmt.Sprintf("(%s %q %v)", a.Kind, a.Occurrence, a.Points)
}

// Replay performs actions in order. Selecting something already selected,
// or deselecting something that is not, does nothing. A failed action is
// reported and the rest still run.
func (c *Command) Replay(actions []Action) []error {
	var errs []error
	for _, a := range actions {
		if err := c.replay(a); err != nil {
			c.log.Warn("action failed", zap.Stringer("action", a), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", a, err))
		}
	}
	return errs
}

func (c *Command) replay(a Action) error {
	n := c.g.Lookup(a.Occurrence)
	if n == nil || n.Kind != graph.NodeOccurrence {
		return fmt.Errorf("%w: no occurrence named %q", graph.ErrNotFound, a.Occurrence)
	}

	switch a.Kind {
	case ActionSelectFace:
		if len(a.Points) != 1 {
			return fmt.Errorf("want 1 point, got %d", len(a.Points))
		}
		face, err := c.g.ResolveFace(n.ID, a.Points[0])
		if err != nil {
			return err
		}
		key := selection.FaceID(n.ID, face)
		for _, f := range c.sel.Faces {
			if f.Key() == key {
				return nil
			}
		}
		_, err = c.PickFace(n.ID, a.Points[0])
		return err

	case ActionSelectEdge, ActionDeselectEdge:
		if len(a.Points) != 2 {
			return fmt.Errorf("want 2 points, got %d", len(a.Points))
		}
		edge, err := c.g.ResolveEdge(n.ID, a.Points[0], a.Points[1])
		if err != nil {
			return err
		}
		want := a.Kind == ActionSelectEdge
		if e, ok := c.reg.Edge(selection.EdgeID(n.ID, edge)); ok && e.Selected == want {
			return nil
		}
		_, err = c.PickEdge(n.ID, a.Points[0], a.Points[1])
		return err

	case ActionRebuild:
		_, err := c.Rebuild(n.ID, a.Body, a.Solid)
		return err
	}
	return fmt.Errorf("unknown action %s", a.Kind)
}
