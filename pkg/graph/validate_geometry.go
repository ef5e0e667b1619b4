package graph

import (
	"fmt"
	"math"

	"github.com/chazu/dogbone/pkg/brep"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Tier 2: geometric validation (errors + warnings)
// ---------------------------------------------------------------------------

// validateGeometry runs all Tier 2 geometric checks.
// Returns errors (blocking) and warnings (advisory) separately.
func validateGeometry(g *DesignGraph) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	errs = append(errs, validateBodies(g)...)
	errs = append(errs, validatePlacements(g)...)

	warnings = append(warnings, validateUnplaced(g)...)
	warnings = append(warnings, validatePlanarFaces(g)...)

	return errs, warnings
}

// validateBodies checks that every component body encloses a volume: it
// has faces and a bounding box with positive extent on every axis.
func validateBodies(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		cd, ok := node.Data.(*ComponentData)
		if !ok || cd == nil || cd.Body == nil {
			continue
		}

		if len(cd.Body.Faces) < 4 {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("body %q has %d faces, cannot enclose a volume", cd.Body.Name, len(cd.Body.Faces)),
				Severity: SeverityError,
			})
			continue
		}

		min, max := cd.Body.Bounds()
		size := max.Sub(min)
		extents := []struct {
			axis string
			d    float64
		}{{"X", size.X}, {"Y", size.Y}, {"Z", size.Z}}
		for _, ext := range extents {
			if axis, d := ext.axis, ext.d; d <= brep.Tolerance {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("body %q extent along %s is %.4f, must be positive", cd.Body.Name, axis, d),
					Severity: SeverityError,
				})
			}
		}
	}

	return errs
}

// validatePlacements checks that every placement is made of finite numbers.
func validatePlacements(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		od, ok := node.Data.(OccurrenceData)
		if !ok {
			continue
		}
		if !finite(od.Placement.Translation) {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("translation %v is not finite", od.Placement.Translation),
				Severity: SeverityError,
			})
		}
		if !finite(od.Placement.Rotation) {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("rotation %v is not finite", od.Placement.Rotation),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateUnplaced warns about components no occurrence places. They can
// never be picked or relieved.
func validateUnplaced(g *DesignGraph) []ValidationWarning {
	var warnings []ValidationWarning

	for _, node := range g.Nodes {
		if node.Kind != NodeComponent {
			continue
		}
		if len(g.Parents(node.ID)) == 0 {
			warnings = append(warnings, ValidationWarning{
				NodeID:  node.ID,
				Message: fmt.Sprintf("component %q is not placed by any occurrence", node.Name),
			})
		}
	}

	return warnings
}

// validatePlanarFaces warns about bodies with no planar face to pick.
func validatePlanarFaces(g *DesignGraph) []ValidationWarning {
	var warnings []ValidationWarning

	for _, node := range g.Nodes {
		cd, ok := node.Data.(*ComponentData)
		if !ok || cd == nil || cd.Body == nil {
			continue
		}
		planar := false
		for _, f := range cd.Body.Faces {
			if f.IsPlanar() {
				planar = true
				break
			}
		}
		if !planar {
			warnings = append(warnings, ValidationWarning{
				NodeID:  node.ID,
				Message: fmt.Sprintf("body %q has no planar faces", cd.Body.Name),
			})
		}
	}

	return warnings
}

func finite(v v3.Vec) bool {
	for _, x := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
