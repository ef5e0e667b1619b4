package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs past the engine's limit.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded is returned to a caller whose evaluation finished after
	// a newer one started.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// evalResult passes evaluation output through the result channel.
type evalResult struct {
	script *Script
	errors []EvalError
	err    error
}

// wait blocks until evaluation gen delivers on ch, the engine's time limit
// passes or ctx is done. A result from an evaluation that a later call has
// overtaken is dropped.
//
// On timeout the goroutine may still be running. It owns its session, so
// whatever it builds is simply dropped.
func (e *Engine) wait(ctx context.Context, ch <-chan evalResult, gen uint64) (*Script, []EvalError, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	select {
	case res := <-ch:
		e.mu.Lock()
		current := e.generation
		e.mu.Unlock()
		if gen != current {
			return nil, nil, fmt.Errorf("%w: run %d, latest %d", ErrSuperseded, gen, current)
		}
		return res.script, res.errors, res.err

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		return nil, nil, fmt.Errorf("evaluation canceled: %w", ctx.Err())
	}
}
