package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/dogbone/pkg/brep"
	"github.com/chazu/dogbone/pkg/command"
	"github.com/chazu/dogbone/pkg/config"
	"github.com/chazu/dogbone/pkg/graph"
	"github.com/chazu/dogbone/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites script source before it reaches zygomys. It
// performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: select-face -> select_face
//     zygomys reads a hyphen inside an identifier as subtraction.
//
//  3. ; line comments become // comments.
//
// String literals and comments are copied through untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// ; and ;; comments.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}


// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point or direction.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpOutline wraps a closed XY polygon built by rect or polygon.
type sexpOutline struct {
	pts []v2.Vec
}

func (o *sexpOutline) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(polygon <%d points>)", len(o.pts))
}
func (o *sexpOutline) Type() *zygo.RegisteredType { return nil }

// blockSpec is a prism of outline from z=0 to height with blind pockets
// sunk from the top down to floor.
type blockSpec struct {
	outline []v2.Vec
	height  float64
	floor   float64
	pockets [][]v2.Vec
}

// sexpBlock carries a block from `block` to `defpart`, which names and
// builds it.
type sexpBlock struct {
	spec blockSpec
}

func (b *sexpBlock) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(block :height %g :pockets <%d>)", b.spec.height, len(b.spec.pockets))
}
func (b *sexpBlock) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A
// keyword is followed by its value unless it ends the list.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// number reads an optional numeric keyword into dst.
func (pa kwArgs) number(form, key string, dst *float64) error {
	v, ok := pa.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", form, key, err)
	}
	*dst = f
	return nil
}

// flag reads an optional boolean keyword into dst.
func (pa kwArgs) flag(form, key string, dst *bool) error {
	v, ok := pa.kw[key]
	if !ok {
		return nil
	}
	b, err := toBool(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", form, key, err)
	}
	*dst = b
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_minimal) and plain strings.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRef extracts a NodeID from a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return "", fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a point from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toOutline extracts a polygon from a sexpOutline.
func toOutline(s zygo.Sexp) ([]v2.Vec, error) {
	if o, ok := s.(*sexpOutline); ok {
		return o.pts, nil
	}
	return nil, fmt.Errorf("expected rect or polygon, got %T (%s)", s, s.SexpString(nil))
}

// toOccurrenceName accepts an occurrence name or the reference place
// returned.
func toOccurrenceName(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *zygo.SexpStr:
		return v.S, nil
	case *sexpNodeRef:
		if v.name != "" {
			return v.name, nil
		}
	}
	return "", fmt.Errorf("expected occurrence name, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

func lift(poly []v2.Vec) []v3.Vec {
	out := make([]v3.Vec, len(poly))
	for i, p := range poly {
		out[i] = v3.Vec{X: p.X, Y: p.Y}
	}
	return out
}

// ---------------------------------------------------------------------------
// Evaluation session
// ---------------------------------------------------------------------------

// session is the state one evaluation builds. Builtins close over it, so
// concurrent evaluations share nothing.
type session struct {
	k       kernel.Kernel
	g       *graph.DesignGraph
	params  config.Params
	actions []command.Action
	order   []graph.NodeID       // occurrences and groups in creation order
	placed  map[graph.NodeID]int // placements made per child, for default names
}

func newSession(k kernel.Kernel, base config.Params) *session {
	return &session{
		k:      k,
		g:      graph.New(),
		params: base,
		placed: make(map[graph.NodeID]int),
	}
}

// finish makes every occurrence and group nothing else holds a root, in
// the order the script created them.
func (ss *session) finish() {
	var roots []graph.NodeID
	for _, id := range ss.order {
		if len(ss.g.Parents(id)) == 0 {
			roots = append(roots, id)
		}
	}
	for _, id := range roots {
		ss.g.AddRoot(id)
	}
}

// build makes the topology and kernel solid of a block.
func (ss *session) build(name string, spec blockSpec) (*brep.Body, kernel.Solid, error) {
	body, err := brep.PocketedPrism(name, spec.outline, spec.height, spec.floor, spec.pockets...)
	if err != nil {
		return nil, nil, err
	}
	solid, err := ss.k.Prism(lift(spec.outline), spec.height)
	if err != nil {
		return nil, nil, err
	}
	at := kernel.Identity()
	at.Origin.Z = spec.floor
	for _, p := range spec.pockets {
		// Pocket cutters overshoot the top face by 1.
		cut, err := ss.k.Prism(lift(p), spec.height-spec.floor+1)
		if err != nil {
			return nil, nil, err
		}
		solid = ss.k.Difference(solid, ss.k.Orient(cut, at))
	}
	return body, solid, nil
}

func (ss *session) unique(form, name string) error {
	if name == "" {
		return fmt.Errorf("%s: empty name", form)
	}
	if ss.g.Lookup(name) != nil {
		return fmt.Errorf("%s: name %q is already used", form, name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// register installs the script builtins into a zygomys environment.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals and
// kebab-case names match the underscore names registered here.
func (ss *session) register(env *zygo.Zlisp) {
	g := ss.g

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (rect 0 0 100 60)
	// -----------------------------------------------------------------------
	env.AddFunction("rect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("rect requires x0 y0 x1 y1, got %d arguments", len(args))
		}
		var c [4]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rect: argument %d: %w", i+1, err)
			}
			c[i] = f
		}
		if c[0] == c[2] || c[1] == c[3] {
			return zygo.SexpNull, fmt.Errorf("rect: zero area")
		}
		return &sexpOutline{pts: brep.Rect(c[0], c[1], c[2], c[3])}, nil
	})

	// -----------------------------------------------------------------------
	// (polygon 20 20 50 20 50 40)
	// -----------------------------------------------------------------------
	env.AddFunction("polygon", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 6 || len(args)%2 != 0 {
			return zygo.SexpNull, fmt.Errorf("polygon requires at least 3 x y pairs, got %d numbers", len(args))
		}
		pts := make([]v2.Vec, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			x, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: point %d: x: %w", i/2+1, err)
			}
			y, err := toFloat64(args[i+1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: point %d: y: %w", i/2+1, err)
			}
			pts = append(pts, v2.Vec{X: x, Y: y})
		}
		return &sexpOutline{pts: pts}, nil
	})

	// -----------------------------------------------------------------------
	// (block :length 100 :width 60 :height 20
	//        :floor 10 :pockets (list (rect 20 20 70 40)))
	// (block :outline (polygon ...) :height 20)
	// -----------------------------------------------------------------------
	env.AddFunction("block", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var spec blockSpec

		if v, ok := pa.kw["outline"]; ok {
			pts, err := toOutline(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("block: outline: %w", err)
			}
			spec.outline = pts
		} else {
			var length, width float64
			if err := pa.number("block", "length", &length); err != nil {
				return zygo.SexpNull, err
			}
			if err := pa.number("block", "width", &width); err != nil {
				return zygo.SexpNull, err
			}
			if length <= 0 || width <= 0 {
				return zygo.SexpNull, fmt.Errorf("block: needs :outline or positive :length and :width")
			}
			spec.outline = brep.Rect(0, 0, length, width)
		}

		if err := pa.number("block", "height", &spec.height); err != nil {
			return zygo.SexpNull, err
		}
		if spec.height <= 0 {
			return zygo.SexpNull, fmt.Errorf("block: height must be positive, got %g", spec.height)
		}

		if v, ok := pa.kw["pockets"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("block: pockets: %w", err)
			}
			for i, item := range items {
				pts, err := toOutline(item)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("block: pocket %d: %w", i+1, err)
				}
				spec.pockets = append(spec.pockets, pts)
			}
		}
		if err := pa.number("block", "floor", &spec.floor); err != nil {
			return zygo.SexpNull, err
		}
		if len(spec.pockets) > 0 && (spec.floor <= 0 || spec.floor >= spec.height) {
			return zygo.SexpNull, fmt.Errorf("block: floor must lie strictly between 0 and height %g, got %g",
				spec.height, spec.floor)
		}

		return &sexpBlock{spec: spec}, nil
	})

	// -----------------------------------------------------------------------
	// (defpart "plate" (block ...) :description "...")
	// -----------------------------------------------------------------------
	env.AddFunction("defpart", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("defpart requires a name and a body expression")
		}

		partName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: name: %w", err)
		}
		if err := ss.unique("defpart", partName); err != nil {
			return zygo.SexpNull, err
		}
		blk, ok := pa.positional[1].(*sexpBlock)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("defpart: expected block expression, got %T", pa.positional[1])
		}

		data := &graph.ComponentData{}
		if v, ok := pa.kw["description"]; ok {
			if data.Description, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("defpart: description: %w", err)
			}
		}
		data.Body, data.Solid, err = ss.build(partName, blk.spec)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: %s: %w", partName, err)
		}

		id := graph.NewNodeID("defpart/" + partName)
		g.AddNode(&graph.Node{
			ID:   id,
			Kind: graph.NodeComponent,
			Name: partName,
			Data: data,
		})

		return &sexpNodeRef{id: id, name: partName}, nil
	})

	// -----------------------------------------------------------------------
	// (part "plate")
	// -----------------------------------------------------------------------
	env.AddFunction("part", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("part requires a name argument")
		}

		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}

		n := g.Lookup(partName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("part: no part named %q", partName)
		}
		if n.Kind == graph.NodeOccurrence {
			return zygo.SexpNull, fmt.Errorf("part: %q is an occurrence, not a part or assembly", partName)
		}

		return &sexpNodeRef{id: n.ID, name: partName}, nil
	})

	// -----------------------------------------------------------------------
	// (place (part "plate") :name "plate-1" :at (vec3 0 0 0) :rotate (vec3 0 0 90))
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("place requires a part reference as first argument")
		}
		childID, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: part: %w", err)
		}
		child := g.Get(childID)
		if child == nil || child.Kind == graph.NodeOccurrence {
			return zygo.SexpNull, fmt.Errorf("place: can only place a part or assembly")
		}

		var od graph.OccurrenceData
		if v, ok := pa.kw["at"]; ok {
			if od.Placement.Translation, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("place: at: %w", err)
			}
		}
		if v, ok := pa.kw["rotate"]; ok {
			if od.Placement.Rotation, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("place: rotate: %w", err)
			}
		}

		ss.placed[childID]++
		occName := fmt.Sprintf("%s-%d", child.Name, ss.placed[childID])
		if v, ok := pa.kw["name"]; ok {
			if occName, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("place: name: %w", err)
			}
		}
		if err := ss.unique("place", occName); err != nil {
			return zygo.SexpNull, err
		}

		id := graph.NewNodeID("occurrence/" + occName)
		g.AddNode(&graph.Node{
			ID:       id,
			Kind:     graph.NodeOccurrence,
			Name:     occName,
			Children: []graph.NodeID{childID},
			Data:     od,
		})
		ss.order = append(ss.order, id)

		return &sexpNodeRef{id: id, name: occName}, nil
	})

	// -----------------------------------------------------------------------
	// (assembly "frame" (place ...) (place ...) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("assembly", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("assembly requires a name argument")
		}

		asmName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assembly: name: %w", err)
		}
		if err := ss.unique("assembly", asmName); err != nil {
			return zygo.SexpNull, err
		}

		var children []graph.NodeID
		for i := 1; i < len(args); i++ {
			ref, ok := args[i].(*sexpNodeRef)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("assembly: child %d: expected node reference, got %T (%s)",
					i, args[i], args[i].SexpString(nil))
			}
			if n := g.Get(ref.id); n == nil || n.Kind != graph.NodeOccurrence {
				return zygo.SexpNull, fmt.Errorf("assembly: child %d: %s is not a placement", i, ref.SexpString(nil))
			}
			children = append(children, ref.id)
		}

		id := graph.NewNodeID("assembly/" + asmName)
		g.AddNode(&graph.Node{
			ID:       id,
			Kind:     graph.NodeGroup,
			Name:     asmName,
			Children: children,
			Data:     graph.GroupData{},
		})
		ss.order = append(ss.order, id)

		return &sexpNodeRef{id: id, name: asmName}, nil
	})

	// -----------------------------------------------------------------------
	// (tool :diameter 6.35 :offset 0.1)
	// -----------------------------------------------------------------------
	env.AddFunction("tool", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.number("tool", "diameter", &ss.params.ToolDiameter); err != nil {
			return zygo.SexpNull, err
		}
		if err := pa.number("tool", "offset", &ss.params.DiameterOffset); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (relief :style :minimal :minimal-percent 10 :long-side false)
	// -----------------------------------------------------------------------
	env.AddFunction("relief", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if v, ok := pa.kw["style"]; ok {
			style, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("relief: style: %w", err)
			}
			ss.params.Style = style
		}
		if err := pa.number("relief", "minimal-percent", &ss.params.MinimalPercent); err != nil {
			return zygo.SexpNull, err
		}
		if err := pa.flag("relief", "long-side", &ss.params.LongSide); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (detect :acute true :obtuse false :min-angle 10 :max-angle 170 :parametric false)
	// -----------------------------------------------------------------------
	env.AddFunction("detect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		for _, step := range []error{
			pa.flag("detect", "acute", &ss.params.Acute),
			pa.flag("detect", "obtuse", &ss.params.Obtuse),
			pa.number("detect", "min-angle", &ss.params.MinAngle),
			pa.number("detect", "max-angle", &ss.params.MaxAngle),
			pa.flag("detect", "parametric", &ss.params.Parametric),
		} {
			if step != nil {
				return zygo.SexpNull, step
			}
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (extend-to-top) or (extend-to-top false)
	// -----------------------------------------------------------------------
	env.AddFunction("extend_to_top", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		on := true
		if len(args) > 0 {
			b, err := toBool(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("extend-to-top: %w", err)
			}
			on = b
		}
		ss.params.ExtendToTop = on
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (select-face "plate-1" (vec3 5 5 20))
	// -----------------------------------------------------------------------
	env.AddFunction("select_face", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("select-face requires an occurrence and a point")
		}
		occ, err := toOccurrenceName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("select-face: %w", err)
		}
		p, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("select-face: point: %w", err)
		}
		ss.actions = append(ss.actions, command.Action{
			Kind:       command.ActionSelectFace,
			Occurrence: occ,
			Points:     []v3.Vec{p},
		})
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (select-edge "plate-1" (vec3 20 20 20) (vec3 20 20 10))
	// (deselect-edge "plate-1" (vec3 20 20 20) (vec3 20 20 10))
	// -----------------------------------------------------------------------
	edgeAction := func(form string, kind command.ActionKind) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 3 {
				return zygo.SexpNull, fmt.Errorf("%s requires an occurrence and two end points", form)
			}
			occ, err := toOccurrenceName(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
			}
			a, err := toVec3(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: start: %w", form, err)
			}
			b, err := toVec3(args[2])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: end: %w", form, err)
			}
			ss.actions = append(ss.actions, command.Action{
				Kind:       kind,
				Occurrence: occ,
				Points:     []v3.Vec{a, b},
			})
			return zygo.SexpNull, nil
		}
	}
	env.AddFunction("select_edge", edgeAction("select-edge", command.ActionSelectEdge))
	env.AddFunction("deselect_edge", edgeAction("deselect-edge", command.ActionDeselectEdge))

	// -----------------------------------------------------------------------
	// (rebuild "plate-1" (block ...))
	// -----------------------------------------------------------------------
	env.AddFunction("rebuild", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("rebuild requires an occurrence and a block")
		}
		occ, err := toOccurrenceName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rebuild: %w", err)
		}
		n := g.Lookup(occ)
		if n == nil || n.Kind != graph.NodeOccurrence {
			return zygo.SexpNull, fmt.Errorf("rebuild: no occurrence named %q", occ)
		}
		comp, err := g.ComponentOf(n.ID)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rebuild: %w", err)
		}
		blk, ok := args[1].(*sexpBlock)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("rebuild: expected block expression, got %T", args[1])
		}
		// The new body keeps the part name so face and edge keys stay comparable.
		body, solid, err := ss.build(comp.Name, blk.spec)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rebuild: %s: %w", comp.Name, err)
		}
		ss.actions = append(ss.actions, command.Action{
			Kind:       command.ActionRebuild,
			Occurrence: occ,
			Body:       body,
			Solid:      solid,
		})
		return zygo.SexpNull, nil
	})
}
