// Package config holds the user-facing relief parameters and reads them
// from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chazu/dogbone/pkg/corner"
	"github.com/chazu/dogbone/pkg/dogbone"
	"gopkg.in/yaml.v3"
)

// Params is every setting the relief command takes. Angles are degrees and
// lengths millimetres.
type Params struct {
	ToolDiameter   float64 `yaml:"tool_diameter"`
	DiameterOffset float64 `yaml:"diameter_offset"`
	Style          string  `yaml:"style"`
	MinimalPercent float64 `yaml:"minimal_percent"`
	LongSide       bool    `yaml:"long_side"`

	Acute      bool    `yaml:"acute"`
	Obtuse     bool    `yaml:"obtuse"`
	MinAngle   float64 `yaml:"min_angle"`
	MaxAngle   float64 `yaml:"max_angle"`
	Parametric bool    `yaml:"parametric"`

	ExtendToTop bool `yaml:"extend_to_top"`
}

// Default returns a quarter-inch cutter, normal style, right angles only.
func Default() Params {
	return Params{
		ToolDiameter:   6.35,
		Style:          dogbone.StyleNormal.String(),
		MinimalPercent: 10,
		LongSide:       true,
		MinAngle:       10,
		MaxAngle:       170,
	}
}

// Load reads a YAML parameter file. Keys missing from the file keep their
// Default values; unknown keys are an error.
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("config: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return Params{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (Params, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Params{}, err
	}
	return p, nil
}

// Marshal encodes p as YAML.
func (p Params) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks p and returns every problem found. An empty slice means
// p is usable.
func (p Params) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if p.ToolDiameter <= 0 {
		add("tool_diameter", "must be positive, got %g", p.ToolDiameter)
	} else if p.ToolDiameter+p.DiameterOffset <= 0 {
		add("diameter_offset", "leaves no cutter: %g + %g", p.ToolDiameter, p.DiameterOffset)
	}
	if _, err := dogbone.ParseStyle(p.Style); err != nil {
		add("style", "unknown style %q (want normal, minimal or mortise)", p.Style)
	}
	if p.MinimalPercent < 0 {
		add("minimal_percent", "must not be negative, got %g", p.MinimalPercent)
	}
	if p.MinAngle < 0 || p.MinAngle >= 90 {
		add("min_angle", "must be in [0, 90), got %g", p.MinAngle)
	}
	if p.MaxAngle <= 90 || p.MaxAngle > 180 {
		add("max_angle", "must be in (90, 180], got %g", p.MaxAngle)
	}
	return errs
}

// Check returns the validation problems joined into one error, or nil.
func (p Params) Check() error {
	var errs []error
	for _, e := range p.Validate() {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Tool returns the cutter parameters.
func (p Params) Tool() (dogbone.Params, error) {
	style, err := dogbone.ParseStyle(p.Style)
	if err != nil {
		return dogbone.Params{}, err
	}
	return dogbone.Params{
		ToolDiameter:   p.ToolDiameter,
		DiameterOffset: p.DiameterOffset,
		Style:          style,
		MinimalPercent: p.MinimalPercent,
		LongSide:       p.LongSide,
	}, nil
}

// AngleMode returns the corner detection settings.
func (p Params) AngleMode() corner.AngleMode {
	return corner.AngleMode{
		Acute:         p.Acute,
		Obtuse:        p.Obtuse,
		MinAngleLimit: p.MinAngle,
		MaxAngleLimit: p.MaxAngle,
		Parametric:    p.Parametric,
	}
}
