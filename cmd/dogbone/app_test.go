package main

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/chazu/dogbone/pkg/config"
	"github.com/chazu/dogbone/pkg/kernel/sdfx"
)

func newTestApp() *App {
	return NewApp(sdfx.New(sdfx.WithMeshCells(32)), nil)
}

func readExample(t *testing.T, name string) string {
	t.Helper()
	source, err := os.ReadFile("../../examples/" + name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(source)
}

func failOnErrors(t *testing.T, result EvalResult) {
	t.Helper()
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
}

// TestE2EPocketExample exercises the full pipeline: script → engine → picks
// → relief → tessellate.
func TestE2EPocketExample(t *testing.T) {
	result := newTestApp().Run(context.Background(), readExample(t, "pocket.dogbone"), RunOptions{Base: config.Default()})
	failOnErrors(t, result)

	if len(result.Reliefs) != 1 {
		t.Fatalf("expected 1 relieved occurrence, got %d", len(result.Reliefs))
	}
	r := result.Reliefs[0]
	if r.Occurrence != "plate-1" || r.Edges != 4 || !r.Cut {
		t.Errorf("relief = %+v, want plate-1 with 4 edges cut", r)
	}

	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	m := result.Meshes[0]
	if m.PartName != "plate-1" || m.Role != "body" {
		t.Errorf("mesh %q role %q", m.PartName, m.Role)
	}
	if len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.Indices) == 0 {
		t.Error("mesh has no geometry")
	}
	if m.Color == "" {
		t.Error("no color assigned")
	}
}

func TestE2EAcuteExample(t *testing.T) {
	app := newTestApp()
	result := app.Run(context.Background(), readExample(t, "acute.dogbone"), RunOptions{Base: config.Default(), Preview: true, Tools: true})
	failOnErrors(t, result)

	if len(result.Reliefs) != 1 {
		t.Fatalf("expected 1 relieved occurrence, got %d", len(result.Reliefs))
	}
	if r := result.Reliefs[0]; r.Edges != 3 || r.Cut {
		t.Errorf("relief = %+v, want 3 edges previewed, not cut", r)
	}

	var tools int
	for _, m := range result.Meshes {
		if m.Role == "tool" {
			tools++
			if m.Color != toolColor {
				t.Errorf("tool mesh color %q", m.Color)
			}
		}
	}
	if tools != 1 {
		t.Errorf("expected 1 tool mesh, got %d", tools)
	}
}

func TestE2EOverrideBeatsScript(t *testing.T) {
	// The script turns acute detection on; the override turns it back off.
	result := newTestApp().Run(context.Background(), readExample(t, "acute.dogbone"), RunOptions{
		Base:     config.Default(),
		Override: func(p *config.Params) { p.Acute = false },
		Preview:  true,
	})
	failOnErrors(t, result)

	if len(result.Reliefs) != 1 || result.Reliefs[0].Edges != 2 {
		t.Fatalf("reliefs = %+v, want only the two right-angle corners", result.Reliefs)
	}
}

func TestE2ECanceledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := newTestApp().Run(ctx, readExample(t, "pocket.dogbone"), RunOptions{Base: config.Default()})
	if result.ErrorCount != 1 || !strings.Contains(result.Errors[0].Message, "canceled") {
		t.Errorf("errors = %v, want a canceled evaluation", result.Errors)
	}
}

func TestE2EAssemblyExample(t *testing.T) {
	result := newTestApp().Run(context.Background(), readExample(t, "assembly.dogbone"), RunOptions{Base: config.Default()})
	failOnErrors(t, result)

	if len(result.Reliefs) != 1 {
		t.Fatalf("expected 1 relieved occurrence, got %d", len(result.Reliefs))
	}
	if r := result.Reliefs[0]; r.Occurrence != "pair-1/pair/left" || r.Edges != 3 {
		t.Errorf("relief = %+v", r)
	}
	names := map[string]bool{}
	for _, m := range result.Meshes {
		names[m.PartName] = true
	}
	for _, want := range []string{"pair-1/pair/left", "pair-1/pair/right"} {
		if !names[want] {
			t.Errorf("missing mesh %q", want)
		}
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	result := newTestApp().Run(context.Background(), "", RunOptions{Base: config.Default()})

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 || len(result.Reliefs) != 0 {
		t.Errorf("expected nothing for empty source, got %d meshes %d reliefs", len(result.Meshes), len(result.Reliefs))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	result := newTestApp().Run(context.Background(), `(defpart "test"`, RunOptions{Base: config.Default()})

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if result.ErrorCount != len(result.Errors) {
		t.Errorf("error count %d, errors %d", result.ErrorCount, len(result.Errors))
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

func TestE2EBadPickIsReported(t *testing.T) {
	source := readExample(t, "pocket.dogbone") + `(select-face "plate-9" (vec3 0 0 0))`
	result := newTestApp().Run(context.Background(), source, RunOptions{Base: config.Default()})

	if result.ErrorCount != 1 {
		t.Fatalf("expected 1 error, got %d: %v", result.ErrorCount, result.Errors)
	}
	if !strings.Contains(result.Errors[0].Message, "plate-9") {
		t.Errorf("error %q does not name the occurrence", result.Errors[0].Message)
	}
	if len(result.Reliefs) != 1 || result.Reliefs[0].Edges != 4 {
		t.Errorf("the valid pick should still relieve: %+v", result.Reliefs)
	}
}

func TestE2EBaseParamsApply(t *testing.T) {
	base := config.Default()
	base.ToolDiameter = 8
	result := newTestApp().Run(context.Background(), readExample(t, "assembly.dogbone"), RunOptions{Base: base, Preview: true})
	failOnErrors(t, result)

	// The script sets its own tool, so the base diameter does not survive.
	if len(result.Reliefs) != 1 || result.Reliefs[0].Edges != 3 {
		t.Fatalf("reliefs = %+v", result.Reliefs)
	}

	base.ToolDiameter = -1
	result = newTestApp().Run(context.Background(), "", RunOptions{Base: base})
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0].Message, "tool_diameter") {
		t.Errorf("errors = %v, want the bad diameter", result.Errors)
	}
}

func TestE2EColorPaletteWrapping(t *testing.T) {
	var b strings.Builder
	b.WriteString(`(defpart "p" (block :length 10 :width 10 :height 5))` + "\n")
	n := len(colorPalette) + 2
	for i := 0; i < n; i++ {
		b.WriteString(`(place (part "p") :at (vec3 0 0 0))` + "\n")
	}

	result := newTestApp().Run(context.Background(), b.String(), RunOptions{Base: config.Default()})
	failOnErrors(t, result)
	if len(result.Meshes) != n {
		t.Fatalf("expected %d meshes, got %d", n, len(result.Meshes))
	}
	for i, m := range result.Meshes {
		if want := colorPalette[i%len(colorPalette)]; m.Color != want {
			t.Errorf("mesh %d: color %q, want %q", i, m.Color, want)
		}
	}
}
