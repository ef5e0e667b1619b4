package corner

import "math"

const (
	// RightAngleTolerance is how far from 90 degrees a corner may be and
	// still count as a right angle.
	RightAngleTolerance = 0.001

	// angleEpsilon absorbs floating-point noise at inclusive bounds.
	angleEpsilon = 1e-9
)

// AngleMode selects which dihedral angles qualify as corners. With neither
// Acute nor Obtuse set only right angles qualify.
type AngleMode struct {
	Acute         bool
	Obtuse        bool
	MinAngleLimit float64 // degrees, exclusive lower bound for acute corners
	MaxAngleLimit float64 // degrees, exclusive upper bound for obtuse corners
	// Parametric restricts detection to right angles whatever the acute
	// and obtuse toggles say.
	Parametric bool
}

// RightAngleOnly returns the mode that accepts only 90 degree corners.
func RightAngleOnly() AngleMode {
	return AngleMode{MinAngleLimit: 10, MaxAngleLimit: 170}
}

// Accepts reports whether a dihedral angle in degrees qualifies.
func (m AngleMode) Accepts(angle float64) bool {
	right := math.Abs(angle-90) <= RightAngleTolerance+angleEpsilon
	if m.Parametric {
		return right
	}
	switch {
	case m.Acute && m.Obtuse:
		return m.MinAngleLimit < angle && angle < m.MaxAngleLimit
	case m.Acute:
		return m.MinAngleLimit < angle && angle <= 90+angleEpsilon
	case m.Obtuse:
		return 90-angleEpsilon <= angle && angle < m.MaxAngleLimit
	}
	return right
}

// RightAngleOnly reports whether m accepts only right angles.
func (m AngleMode) RightAngleOnly() bool {
	return m.Parametric || (!m.Acute && !m.Obtuse)
}
