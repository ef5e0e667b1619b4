package dogbone

import (
	"fmt"
	"strings"
)

// Style selects how a relief hole is placed relative to its corner.
type Style int

const (
	// StyleNormal centres the hole on the corner bisector one radius out.
	StyleNormal Style = iota
	// StyleMinimal pushes the hole further out by MinimalPercent.
	StyleMinimal
	// StyleMortise slides the hole along one wall so the relief hides
	// under a mating tenon.
	StyleMortise
)

func (s Style) String() string {
	switch s {
	case StyleNormal:
		return "normal"
	case StyleMinimal:
		return "minimal"
	case StyleMortise:
		return "mortise"
	default:
		return fmt.Sprintf("Style(%d)", int(s))
	}
}

// ParseStyle accepts the names returned by Style.String, case-insensitively.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "":
		return StyleNormal, nil
	case "minimal":
		return StyleMinimal, nil
	case "mortise":
		return StyleMortise, nil
	}
	return StyleNormal, fmt.Errorf("dogbone: unknown style %q", s)
}

// Params are the cutter settings for building tool bodies.
type Params struct {
	ToolDiameter   float64 // mm
	DiameterOffset float64 // mm, added to ToolDiameter
	Style          Style
	MinimalPercent float64 // StyleMinimal only
	LongSide       bool    // StyleMortise only: relieve into the longer wall
}

// EffectiveRadius is half the offset tool diameter.
func (p Params) EffectiveRadius() float64 {
	return (p.ToolDiameter + p.DiameterOffset) / 2
}

// CentreDistance is how far the hole axis sits from the corner.
func (p Params) CentreDistance() float64 {
	r := p.EffectiveRadius()
	if p.Style == StyleMinimal {
		return r * (1 + p.MinimalPercent/100)
	}
	return r
}
