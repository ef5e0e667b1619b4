// Package engine evaluates dogbone scripts. It wraps zygomys in a sandboxed
// environment and produces an assembly graph, relief parameters and the
// recorded face and edge picks from user source code.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/dogbone/pkg/command"
	"github.com/chazu/dogbone/pkg/config"
	"github.com/chazu/dogbone/pkg/graph"
	"github.com/chazu/dogbone/pkg/kernel"
	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Message string
	NodeID  graph.NodeID
}

// Script is everything a successful evaluation produced.
type Script struct {
	Graph    *graph.DesignGraph
	Params   config.Params
	Actions  []command.Action
	Warnings []EvalWarning
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration

	k   kernel.Kernel
	log *zap.Logger
}

// NewEngine creates an Engine that builds part solids with k.
func NewEngine(k kernel.Kernel, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{k: k, log: log.Named("engine"), timeout: EvalTimeout}
}

// Evaluate runs source starting from config.Default parameters.
func (e *Engine) Evaluate(source string) (*Script, []EvalError, error) {
	return e.EvaluateWith(source, config.Default())
}

// EvaluateWith runs source with base as the starting parameters; tool,
// relief and detect forms in the script override them.
func (e *Engine) EvaluateWith(source string, base config.Params) (*Script, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source, base)
}

// EvaluateContext is EvaluateWith bounded by ctx as well as the engine's
// time limit.
//
// Return semantics:
//   - On success: returns script + nil errors + nil error
//   - On parse/eval/validation failure: returns nil script + eval errors + nil error
//   - On fatal failure (timeout, cancel, panic): returns nil + nil + error
func (e *Engine) EvaluateContext(ctx context.Context, source string, base config.Params) (*Script, []EvalError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("evaluation canceled: %w", err)
	}
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		s, evalErrs, err := e.evaluate(source, base)
		ch <- evalResult{script: s, errors: evalErrs, err: err}
	}()

	s, evalErrs, err := e.wait(ctx, ch, gen)
	switch {
	case err != nil:
		e.log.Error("evaluation failed", zap.Error(err))
	case len(evalErrs) > 0:
		e.log.Info("evaluation rejected", zap.Int("errors", len(evalErrs)), zap.String("first", evalErrs[0].Error()))
	default:
		e.log.Debug("evaluated",
			zap.Int("nodes", s.Graph.NodeCount()),
			zap.Int("actions", len(s.Actions)),
			zap.Int("warnings", len(s.Warnings)))
	}
	return s, evalErrs, err
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string, base config.Params) (*Script, []EvalError, error) {
	ss := newSession(e.k, base)

	// Empty source is a valid program that produces an empty graph.
	if strings.TrimSpace(source) != "" {
		// Sandbox mode keeps user code away from the filesystem and syscalls.
		env := zygo.NewZlispSandbox()
		defer env.Stop()
		ss.register(env)

		if err := env.LoadString(preprocessSource(source)); err != nil {
			return nil, parseZygomysError(err), nil
		}
		if _, err := env.Run(); err != nil {
			return nil, parseZygomysError(err), nil
		}
	}
	ss.finish()

	var evalErrs []EvalError
	for _, ve := range ss.params.Validate() {
		evalErrs = append(evalErrs, EvalError{Message: ve.Error()})
	}
	res := graph.ValidateAll(ss.g)
	for _, ve := range res.Errors {
		evalErrs = append(evalErrs, EvalError{Message: ve.Error()})
	}
	if len(evalErrs) > 0 {
		return nil, evalErrs, nil
	}

	s := &Script{Graph: ss.g, Params: ss.params, Actions: ss.actions}
	for _, w := range res.Warnings {
		s.Warnings = append(s.Warnings, EvalWarning{Message: w.Message, NodeID: w.NodeID})
	}
	return s, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
