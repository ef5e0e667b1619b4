package main

import (
	"context"

	"github.com/chazu/dogbone/pkg/command"
	"github.com/chazu/dogbone/pkg/config"
	"github.com/chazu/dogbone/pkg/engine"
	"github.com/chazu/dogbone/pkg/kernel"
	"github.com/chazu/dogbone/pkg/tessellate"
	"go.uber.org/zap"
)

// colorPalette is a default palette used to assign distinct colors to bodies.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#1ABC9C", "#F39C12", "#3498DB", "#95A5A6",
}

// toolColor marks relief tool previews.
const toolColor = "#E74C3C"

// App runs a script from source to relieved meshes.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	log    *zap.Logger
}

// MeshData is the JSON-serializable mesh format written by `run --out`.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Role     string    `json:"role"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ReliefData summarizes the relief of one occurrence.
type ReliefData struct {
	Occurrence string   `json:"occurrence"`
	Edges      int      `json:"edges"`
	Cut        bool     `json:"cut"`
	Errors     []string `json:"errors,omitempty"`
}

// EvalResult is the full result of a run.
type EvalResult struct {
	Meshes     []MeshData      `json:"meshes"`
	Reliefs    []ReliefData    `json:"reliefs"`
	Errors     []EvalErrorData `json:"errors"`
	Warnings   []EvalErrorData `json:"warnings"`
	ErrorCount int             `json:"errorCount"`
}

// RunOptions controls a run.
type RunOptions struct {
	Base     config.Params        // parameters before the script's own forms
	Override func(*config.Params) // applied after the script's forms, so it wins
	Preview  bool                 // build tool bodies without cutting
	Tools    bool                 // add tool meshes to the output
}

// NewApp creates an App that builds and cuts solids with k.
func NewApp(k kernel.Kernel, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		engine: engine.NewEngine(k, log),
		kernel: k,
		log:    log,
	}
}

// Run evaluates source, replays its picks, relieves the selection and
// tessellates the result.
func (a *App) Run(ctx context.Context, source string, opts RunOptions) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Reliefs:  []ReliefData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
	fail := func(msg string) EvalResult {
		result.Errors = append(result.Errors, EvalErrorData{Message: msg})
		result.ErrorCount = len(result.Errors)
		return result
	}

	// Step 1: Evaluate the script.
	s, evalErrs, err := a.engine.EvaluateContext(ctx, source, opts.Base)
	if err != nil {
		return fail(err.Error())
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		result.ErrorCount = len(result.Errors)
		return result
	}
	for _, w := range s.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w.Message})
	}

	if opts.Override != nil {
		before := s.Params
		opts.Override(&s.Params)
		if s.Params != before {
			a.log.Info("command line overrides script parameters",
				zap.Float64("tool_diameter", s.Params.ToolDiameter),
				zap.String("style", s.Params.Style),
				zap.Bool("acute", s.Params.Acute),
				zap.Bool("obtuse", s.Params.Obtuse))
		}
	}

	// Step 2: Replay the recorded picks and relieve.
	p, err := command.FromConfig(s.Params)
	if err != nil {
		return fail(err.Error())
	}
	cmd := command.New(s.Graph, a.kernel, command.NewRegistry(s.Graph, p, a.log), p, a.log)
	for _, err := range cmd.Replay(s.Actions) {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
	}

	var res command.Result
	if cmd.SelectedFaceCount() > 0 {
		if opts.Preview {
			res = cmd.Preview()
		} else {
			res = cmd.Execute()
		}
	}
	for _, o := range res.Occurrences {
		rd := ReliefData{Occurrence: o.Path, Edges: len(o.Tools), Cut: o.Cut}
		for _, err := range o.Errors {
			rd.Errors = append(rd.Errors, err.Error())
		}
		result.Reliefs = append(result.Reliefs, rd)
	}
	result.ErrorCount = len(result.Errors) + res.ErrorCount

	// Step 3: Tessellate bodies, and tools when asked.
	meshes, err := tessellate.Tessellate(s.Graph, a.kernel)
	if err != nil {
		return fail("tessellation failed: " + err.Error())
	}
	for i, m := range meshes {
		result.Meshes = append(result.Meshes, meshData(m, colorPalette[i%len(colorPalette)]))
	}
	if opts.Tools {
		tools, err := tessellate.Tools(s.Graph, a.kernel, res)
		if err != nil {
			return fail("tessellation failed: " + err.Error())
		}
		for _, m := range tools {
			result.Meshes = append(result.Meshes, meshData(m, toolColor))
		}
	}

	return result
}

func meshData(m *kernel.Mesh, color string) MeshData {
	return MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		Indices:  m.Indices,
		PartName: m.Name,
		Role:     string(m.Role),
		Color:    color,
	}
}
