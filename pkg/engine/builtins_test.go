package engine

import (
	"strings"
	"testing"

	"github.com/chazu/dogbone/pkg/command"
	"github.com/chazu/dogbone/pkg/graph"
	"github.com/chazu/dogbone/pkg/kernel/sdfx"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/go-cmp/cmp"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(tool :diameter 6)`,
			expect: `(tool "__kw_diameter" 6)`,
		},
		{
			name:   "multiple keywords",
			input:  `(block :length 400 :width 200)`,
			expect: `(block "__kw_length" 400 "__kw_width" 200)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(select-face "plate-1" p)`,
			expect: `(select_face "plate-1" p)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(vec3 -5 0 -1.5)`,
			expect: `(vec3 -5 0 -1.5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:minimal-percent`,
			expect: `"__kw_minimal-percent"`,
		},
		{
			name:   "backtick string preserved",
			input:  "`extend-to-top :x`",
			expect: "`extend-to-top :x`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Graph construction
// ---------------------------------------------------------------------------

const pocketPlate = `
;; a 100 x 60 plate with one 50 x 20 pocket 10 deep
(defpart "plate"
  (block :length 100 :width 60 :height 20
         :floor 10 :pockets (list (rect 20 20 70 40)))
  :description "test plate")
`

func evaluate(t *testing.T, source string) *Script {
	t.Helper()
	s, evalErrs, err := newTestEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	return s
}

func evalFails(t *testing.T, source, want string) {
	t.Helper()
	s, evalErrs, err := newTestEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil script")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected eval errors")
	}
	if !strings.Contains(evalErrs[0].Error(), want) {
		t.Errorf("error = %q, want containing %q", evalErrs[0].Error(), want)
	}
}

func TestDefpartBuildsBody(t *testing.T) {
	s := evaluate(t, pocketPlate+`(place (part "plate"))`)

	plate := s.Graph.Lookup("plate")
	if plate == nil {
		t.Fatal("expected node named 'plate'")
	}
	if plate.Kind != graph.NodeComponent {
		t.Errorf("expected NodeComponent, got %s", plate.Kind)
	}
	if plate.ID != graph.NewNodeID("defpart/plate") {
		t.Errorf("unexpected ID %s", plate.ID)
	}

	cd, ok := plate.Data.(*graph.ComponentData)
	if !ok {
		t.Fatalf("expected *ComponentData, got %T", plate.Data)
	}
	if cd.Description != "test plate" {
		t.Errorf("description = %q", cd.Description)
	}
	if cd.Body == nil || cd.Solid == nil {
		t.Fatal("expected body and solid")
	}
	// top, pocket floor, 4 pocket walls, 4 sides, bottom
	if len(cd.Body.Faces) != 11 {
		t.Errorf("expected 11 faces, got %d", len(cd.Body.Faces))
	}

	min, max := cd.Solid.BoundingBox()
	if diff := cmp.Diff([3]float64{0, 0, 0}, min, approx); diff != "" {
		t.Errorf("solid min (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([3]float64{100, 60, 20}, max, approx); diff != "" {
		t.Errorf("solid max (-want +got):\n%s", diff)
	}
}

var approx = cmp.Comparer(func(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
})

func TestPolygonOutline(t *testing.T) {
	s := evaluate(t, `
(defpart "tri" (block :outline (polygon 0 0 40 0 0 30) :height 5))
(place (part "tri"))
`)
	cd := s.Graph.Lookup("tri").Data.(*graph.ComponentData)
	if len(cd.Body.Faces) != 5 {
		t.Errorf("triangular prism: expected 5 faces, got %d", len(cd.Body.Faces))
	}
}

func TestPlaceNamesAndRoots(t *testing.T) {
	s := evaluate(t, pocketPlate+`
(place (part "plate"))
(place (part "plate") :name "right" :at (vec3 200 0 0) :rotate (vec3 0 0 90))
(assembly "pair"
  (place (part "plate") :at (vec3 0 100 0))
  (place (part "plate") :at (vec3 0 200 0)))
`)

	names := func(ids []graph.NodeID) []string {
		var out []string
		for _, id := range ids {
			out = append(out, s.Graph.Get(id).Name)
		}
		return out
	}
	if diff := cmp.Diff([]string{"plate-1", "right", "pair"}, names(s.Graph.Roots)); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}

	pair := s.Graph.Lookup("pair")
	if pair.Kind != graph.NodeGroup {
		t.Errorf("pair kind = %s", pair.Kind)
	}
	if diff := cmp.Diff([]string{"plate-3", "plate-4"}, names(pair.Children)); diff != "" {
		t.Errorf("pair children (-want +got):\n%s", diff)
	}

	right := s.Graph.Lookup("right")
	od := right.Data.(graph.OccurrenceData)
	if od.Placement.Translation != (v3.Vec{X: 200}) || od.Placement.Rotation != (v3.Vec{Z: 90}) {
		t.Errorf("placement = %+v", od.Placement)
	}
	if right.ID != graph.NewNodeID("occurrence/right") {
		t.Errorf("unexpected ID %s", right.ID)
	}

	root, err := s.Graph.RootOf(s.Graph.Lookup("plate-4").ID)
	if err != nil {
		t.Fatal(err)
	}
	if root != s.Graph.Lookup("plate-4").ID {
		t.Error("occurrences under a group are their own roots")
	}
	if len(s.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", s.Warnings)
	}
}

func TestNestedPlacement(t *testing.T) {
	s := evaluate(t, pocketPlate+`
(assembly "row" (place (part "plate") :name "a") (place (part "plate") :name "b" :at (vec3 0 100 0)))
(place (part "row") :name "row-1" :at (vec3 0 0 50))
`)
	b := s.Graph.Lookup("b").ID
	root, err := s.Graph.RootOf(b)
	if err != nil {
		t.Fatal(err)
	}
	if root != s.Graph.Lookup("row-1").ID {
		t.Errorf("root of b = %s, want row-1", s.Graph.Get(root).Name)
	}
	f, err := s.Graph.FrameOf(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(v3.Vec{Y: 100, Z: 50}, f.Origin); diff != "" {
		t.Errorf("frame origin (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]graph.NodeID{s.Graph.Lookup("row-1").ID}, s.Graph.Roots); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"duplicate part", pocketPlate + pocketPlate, "already used"},
		{"duplicate placement name", pocketPlate + `(place (part "plate") :name "x") (place (part "plate") :name "x")`, "already used"},
		{"unknown part", `(part "nope")`, "no part named"},
		{"place an occurrence", pocketPlate + `(place (place (part "plate")))`, "part or assembly"},
		{"part of an occurrence", pocketPlate + `(place (part "plate")) (part "plate-1")`, "is an occurrence"},
		{"block without size", `(block :height 5)`, "positive :length and :width"},
		{"block without height", `(block :length 5 :width 5)`, "height must be positive"},
		{"pocket without floor", `(block :length 50 :width 50 :height 5 :pockets (list (rect 1 1 2 2)))`, "floor"},
		{"floor above top", `(block :length 50 :width 50 :height 5 :floor 6 :pockets (list (rect 1 1 2 2)))`, "floor"},
		{"pocket not an outline", `(block :length 50 :width 50 :height 5 :floor 2 :pockets (list 1))`, "rect or polygon"},
		{"flat rect", `(rect 0 0 0 5)`, "zero area"},
		{"short polygon", `(polygon 0 0 1 1)`, "at least 3"},
		{"vec3 arity", `(vec3 1 2)`, "exactly 3"},
		{"vec3 type", `(vec3 1 2 "z")`, "expected number"},
		{"assembly of parts", pocketPlate + `(assembly "a" (part "plate"))`, "not a placement"},
		{"defpart needs block", `(defpart "p" 5)`, "expected block"},
		{"bool flag", `(detect :acute 1)`, "expected true or false"},
		{"select-face arity", `(select-face "plate-1")`, "occurrence and a point"},
		{"select-edge point", `(select-edge "plate-1" (vec3 0 0 0) 4)`, "end"},
		{"rebuild arity", `(rebuild "plate-1")`, "occurrence and a block"},
		{"rebuild unknown occurrence", pocketPlate + `(rebuild "plate-9" (block :length 5 :width 5 :height 5))`, "no occurrence named"},
		{"rebuild a part", pocketPlate + `(rebuild "plate" (block :length 5 :width 5 :height 5))`, "no occurrence named"},
		{"rebuild an assembly", pocketPlate + `(assembly "row" (place (part "plate"))) (place (part "row")) (rebuild "row-1" (block :length 5 :width 5 :height 5))`, "not a component"},
		{"rebuild needs block", pocketPlate + `(place (part "plate")) (rebuild "plate-1" 5)`, "expected block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evalFails(t, tt.source, tt.want)
		})
	}
}

// ---------------------------------------------------------------------------
// Parameters and picks
// ---------------------------------------------------------------------------

func TestParameterForms(t *testing.T) {
	s := evaluate(t, `
(tool :diameter 3.175 :offset 0.05)
(relief :style :minimal :minimal-percent 25 :long-side false)
(detect :acute true :obtuse true :min-angle 20 :max-angle 160 :parametric true)
(extend-to-top)
`)
	p := s.Params
	if p.ToolDiameter != 3.175 || p.DiameterOffset != 0.05 {
		t.Errorf("tool = %g + %g", p.ToolDiameter, p.DiameterOffset)
	}
	if p.Style != "minimal" || p.MinimalPercent != 25 || p.LongSide {
		t.Errorf("relief = %q %g %v", p.Style, p.MinimalPercent, p.LongSide)
	}
	if !p.Acute || !p.Obtuse || p.MinAngle != 20 || p.MaxAngle != 160 || !p.Parametric {
		t.Errorf("detect = %+v", p)
	}
	if !p.ExtendToTop {
		t.Error("extend-to-top not set")
	}

	s = evaluate(t, `(extend-to-top) (extend-to-top false)`)
	if s.Params.ExtendToTop {
		t.Error("(extend-to-top false) should clear the flag")
	}
}

func TestPicksAreRecorded(t *testing.T) {
	s := evaluate(t, pocketPlate+`
(def p (place (part "plate")))
(select-face p (vec3 5 5 20))
(select-edge "plate-1" (vec3 20 20 20) (vec3 20 20 10))
(deselect-edge "plate-1" (vec3 20 20 20) (vec3 20 20 10))
`)
	want := []command.Action{
		{Kind: command.ActionSelectFace, Occurrence: "plate-1", Points: []v3.Vec{{X: 5, Y: 5, Z: 20}}},
		{Kind: command.ActionSelectEdge, Occurrence: "plate-1", Points: []v3.Vec{{X: 20, Y: 20, Z: 20}, {X: 20, Y: 20, Z: 10}}},
		{Kind: command.ActionDeselectEdge, Occurrence: "plate-1", Points: []v3.Vec{{X: 20, Y: 20, Z: 20}, {X: 20, Y: 20, Z: 10}}},
	}
	if diff := cmp.Diff(want, s.Actions); diff != "" {
		t.Errorf("actions (-want +got):\n%s", diff)
	}
}

func TestRebuildIsRecorded(t *testing.T) {
	s := evaluate(t, pocketPlate+`
(place (part "plate"))
(select-face "plate-1" (vec3 5 5 20))
(rebuild "plate-1" (block :length 100 :width 60 :height 20
                          :floor 10 :pockets (list (rect 20 20 60 40))))
`)
	if len(s.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(s.Actions))
	}
	a := s.Actions[1]
	if a.Kind != command.ActionRebuild || a.Occurrence != "plate-1" {
		t.Errorf("action = %s, want (rebuild \"plate-1\")", a)
	}
	if a.Body == nil || a.Solid == nil {
		t.Fatal("rebuild should carry a body and a solid")
	}
	if a.Body.Name != "plate" {
		t.Errorf("body name = %q, want the part name", a.Body.Name)
	}
	if d := s.Graph.MustLookup("plate").Data.(*graph.ComponentData); d.Body == a.Body {
		t.Error("rebuild must not touch the graph until replayed")
	}
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestScriptRelievesPocket(t *testing.T) {
	s := evaluate(t, pocketPlate+`
(place (part "plate") :at (vec3 0 0 5))
(tool :diameter 6.35)
(select-face "plate-1" (vec3 5 5 25))
(deselect-edge "plate-1" (vec3 70 40 25) (vec3 70 40 15))
`)
	p, err := command.FromConfig(s.Params)
	if err != nil {
		t.Fatal(err)
	}
	k := sdfx.New()
	cmd := command.New(s.Graph, k, command.NewRegistry(s.Graph, p, nil), p, nil)
	if errs := cmd.Replay(s.Actions); len(errs) > 0 {
		t.Fatalf("replay: %v", errs)
	}

	res := cmd.Execute()
	if err := res.Err(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Edges() != 3 {
		t.Errorf("expected 3 reliefs, got %d", res.Edges())
	}
	for _, tb := range res.Occurrences[0].Tools {
		if r := tb.Cylinder.Radius; r < 3.174 || r > 3.176 {
			t.Errorf("radius = %g, want 3.175", r)
		}
	}
	if s.Graph.Version != 1 {
		t.Errorf("graph version = %d, want 1 after one cut", s.Graph.Version)
	}
}

func TestScriptRebuildNarrowsSelection(t *testing.T) {
	s := evaluate(t, pocketPlate+`
(place (part "plate"))
(select-face "plate-1" (vec3 5 5 20))
;; the pocket's right wall moves from x 70 to x 60
(rebuild "plate-1" (block :length 100 :width 60 :height 20
                          :floor 10 :pockets (list (rect 20 20 60 40))))
`)
	p, err := command.FromConfig(s.Params)
	if err != nil {
		t.Fatal(err)
	}
	cmd := command.New(s.Graph, sdfx.New(), command.NewRegistry(s.Graph, p, nil), p, nil)
	if errs := cmd.Replay(s.Actions); len(errs) > 0 {
		t.Fatalf("replay: %v", errs)
	}

	res := cmd.Execute()
	if err := res.Err(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	// Only the corners at x 20 survive the rebuild.
	if res.Edges() != 2 {
		t.Errorf("expected 2 reliefs after the rebuild, got %d", res.Edges())
	}
	for _, tb := range res.Occurrences[0].Tools {
		if x := tb.Cylinder.Start.X; x > 30 {
			t.Errorf("tool at x = %g, want near the x 20 wall", x)
		}
	}
}
