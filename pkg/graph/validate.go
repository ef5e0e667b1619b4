package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValidationSeverity indicates whether a validation finding blocks evaluation
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	NodeID  NodeID
	Message string
}

// ValidationResult bundles errors (blocking) and warnings (advisory)
// from all validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Validate runs all Tier 1 structural validation checks on the design graph
// and returns a slice of validation errors. An empty slice means the graph is
// valid. This function is read-only and never mutates the graph.
func Validate(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateCycles(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	errs = append(errs, validateKinds(g)...)
	errs = append(errs, validateOccurrences(g)...)
	return errs
}

// ValidateAll runs both validation tiers (structural, geometric) and
// returns a ValidationResult with separated errors and warnings.
func ValidateAll(g *DesignGraph) ValidationResult {
	tier1 := Validate(g)
	tier2Errs, tier2Warnings := validateGeometry(g)

	// Separate Tier 1 findings into errors and warnings.
	var result ValidationResult
	for _, e := range tier1 {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{
				NodeID:  e.NodeID,
				Message: e.Message,
			})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}

	result.Errors = append(result.Errors, tier2Errs...)
	result.Warnings = append(result.Warnings, tier2Warnings...)

	return result
}

// validateCycles reports each cycle once, naming the nodes along it. A
// cycle can only close through an occurrence that places a group holding
// that occurrence, since components are leaves.
func validateCycles(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	done := make(map[NodeID]bool)
	onPath := make(map[NodeID]int)
	var path []NodeID

	var visit func(id NodeID)
	visit = func(id NodeID) {
		if done[id] {
			return
		}
		if i, ok := onPath[id]; ok {
			loop := append(append([]NodeID(nil), path[i:]...), id)
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: %s", g.describePath(loop)),
				Severity: SeverityError,
			})
			return
		}
		n := g.Nodes[id]
		if n == nil {
			return
		}
		onPath[id] = len(path)
		path = append(path, id)
		for _, c := range n.Children {
			visit(c)
		}
		path = path[:len(path)-1]
		delete(onPath, id)
		done[id] = true
	}

	for _, id := range g.sortedIDs() {
		visit(id)
	}
	return errs
}

// validateReferences checks that every child an occurrence places and
// every occurrence a group holds exists.
func validateReferences(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, id := range g.sortedIDs() {
		n := g.Nodes[id]
		for _, c := range n.Children {
			if _, ok := g.Nodes[c]; ok {
				continue
			}
			what := "child"
			switch n.Kind {
			case NodeOccurrence:
				what = "placed part"
			case NodeGroup:
				what = "member occurrence"
			}
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("%s %s: %s %s does not exist", n.Kind, g.label(id), what, c.Short()),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateNames checks that picks and parts can be addressed by name: every
// occurrence is named, each name belongs to one node, and the name index
// resolves every name to the node carrying it.
func validateNames(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	byName := make(map[string][]NodeID)
	for _, id := range g.sortedIDs() {
		n := g.Nodes[id]
		if n.Name == "" {
			if n.Kind == NodeOccurrence {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  "occurrence has no name, so no pick can address it",
					Severity: SeverityError,
				})
			}
			continue
		}
		byName[n.Name] = append(byName[n.Name], id)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ids := byName[name]
		if len(ids) > 1 {
			kinds := make([]string, len(ids))
			for i, id := range ids {
				kinds[i] = g.Nodes[id].Kind.String()
			}
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes (%s); lookups reach only one", name, len(ids), strings.Join(kinds, ", ")),
				Severity: SeverityError,
			})
			continue
		}
		if got, ok := g.NameIndex[name]; !ok || got != ids[0] {
			errs = append(errs, ValidationError{
				NodeID:   ids[0],
				Message:  fmt.Sprintf("%s %q is missing from the name index", g.Nodes[ids[0]].Kind, name),
				Severity: SeverityError,
			})
		}
	}

	for name, id := range g.NameIndex {
		n, ok := g.Nodes[id]
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
		case n.Name != name:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("name index entry %q resolves to %s %s", name, n.Kind, g.label(id)),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateRoots checks that every root is an occurrence or group that
// exists, is listed once and sits inside no other tree. Occurrences and
// groups no root reaches are reported as orphans; unplaced components are
// left to the geometric tier.
func validateRoots(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	listed := make(map[NodeID]bool)
	for _, rid := range g.Roots {
		n, ok := g.Nodes[rid]
		if !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
			continue
		}
		if listed[rid] {
			errs = append(errs, ValidationError{
				NodeID:   rid,
				Message:  fmt.Sprintf("root %s is listed more than once", g.label(rid)),
				Severity: SeverityError,
			})
			continue
		}
		listed[rid] = true
		if n.Kind == NodeComponent {
			errs = append(errs, ValidationError{
				NodeID:   rid,
				Message:  fmt.Sprintf("root %s is a component; a part needs an occurrence to be placed", g.label(rid)),
				Severity: SeverityError,
			})
		}
		if ps := g.Parents(rid); len(ps) > 0 {
			errs = append(errs, ValidationError{
				NodeID:   rid,
				Message:  fmt.Sprintf("root %s is also held by %s", g.label(rid), g.label(ps[0])),
				Severity: SeverityError,
			})
		}
	}

	reachable := make(map[NodeID]bool)
	g.walk(func(n *Node, _ []NodeID) { reachable[n.ID] = true })

	for _, id := range g.sortedIDs() {
		n := g.Nodes[id]
		if reachable[id] || n.Kind == NodeComponent {
			continue
		}
		errs = append(errs, ValidationError{
			NodeID:   id,
			Message:  fmt.Sprintf("%s %s is not reachable from any root (orphan); its parts cannot be picked", n.Kind, g.label(id)),
			Severity: SeverityWarning,
		})
	}

	return errs
}

// label quotes the node's name, or gives its short ID when it has none.
func (g *DesignGraph) label(id NodeID) string {
	if n := g.Nodes[id]; n != nil && n.Name != "" {
		return strconv.Quote(n.Name)
	}
	return id.Short()
}

// describePath joins the labels of ids with arrows.
func (g *DesignGraph) describePath(ids []NodeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = g.label(id)
	}
	return strings.Join(parts, " -> ")
}

// sortedIDs returns the node IDs in a fixed order so findings are stable.
func (g *DesignGraph) sortedIDs() []NodeID {
	ids := make([]NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// validateKinds checks that each node's data matches its kind and that
// components are leaves.
func validateKinds(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		var ok bool
		switch node.Kind {
		case NodeComponent:
			var cd *ComponentData
			cd, ok = node.Data.(*ComponentData)
			if ok && (cd == nil || cd.Body == nil) {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  "component has no body",
					Severity: SeverityError,
				})
			}
			if len(node.Children) > 0 {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("component has %d children, want none", len(node.Children)),
					Severity: SeverityError,
				})
			}
		case NodeOccurrence:
			_, ok = node.Data.(OccurrenceData)
		case NodeGroup:
			_, ok = node.Data.(GroupData)
		}
		if !ok {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("%s node carries %T data", node.Kind, node.Data),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateOccurrences checks that each occurrence places exactly one
// component or group, that groups contain only occurrences, and that no
// node other than a component is reachable along two paths. A shared group
// or occurrence would make its world frame ambiguous.
func validateOccurrences(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		switch node.Kind {
		case NodeOccurrence:
			if len(node.Children) != 1 {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("occurrence places %d children, want exactly 1", len(node.Children)),
					Severity: SeverityError,
				})
				continue
			}
			if c, ok := g.Nodes[node.Children[0]]; ok && c.Kind == NodeOccurrence {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("occurrence places occurrence %s directly", c.ID.Short()),
					Severity: SeverityError,
				})
			}
		case NodeGroup:
			for _, cid := range node.Children {
				if c, ok := g.Nodes[cid]; ok && c.Kind != NodeOccurrence {
					errs = append(errs, ValidationError{
						NodeID:   node.ID,
						Message:  fmt.Sprintf("group child %s is a %s, not an occurrence", cid.Short(), c.Kind),
						Severity: SeverityError,
					})
				}
			}
		}

		if node.Kind != NodeComponent {
			if ps := g.Parents(node.ID); len(ps) > 1 {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("%s has %d parents; only components may be shared", node.Kind, len(ps)),
					Severity: SeverityError,
				})
			}
		}
	}

	return errs
}
