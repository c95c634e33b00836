package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"runtime/debug"
)

// Engine drives a Unit through its lifecycle and converts unit failures into
// retry or terminal transitions. It never re-raises past Run: callers only
// observe the snapshot sequence.
type Engine struct {
	maxRetries int
}

type EngineOption func(*Engine)

// WithMaxRetries overrides the unit's own retry budget. n is the number of
// additional attempts after the first.
func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{maxRetries: -1}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Run executes unit over ec and returns a lazy snapshot sequence. The
// producer is single-threaded and pull-driven: a caller that stops ranging
// abandons the remaining work, and no background work continues afterwards.
// Exactly one finished snapshot ends every fully consumed sequence.
func (e *Engine) Run(ctx context.Context, unit Unit, ec Context) iter.Seq[Snapshot] {
	maxRetries := e.maxRetries
	if maxRetries < 0 {
		maxRetries = unit.MaxRetries()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if ec == nil {
		ec = NewContext()
	}

	return func(yield func(Snapshot) bool) {
		emit := func(status Status) bool {
			return yield(Snapshot{Status: status, Context: ec.Clone()})
		}

		attempt := 0
		for {
			if !emit(StatusRunning) {
				return
			}

			err := e.runAttempt(ctx, unit, ec, emit)
			if err == nil {
				if !emit(StatusSuccess) {
					return
				}
				break
			}
			if errors.Is(err, errAborted) {
				// The consumer stopped ranging; yield must not be called
				// again, so the run ends here without a finished snapshot.
				return
			}

			attempt++
			ec["error"] = fmt.Sprintf("unit %s: %v", unit.Name(), err)
			ec["error_trace"] = string(debug.Stack())
			log.Printf("unit %s attempt %d failed: %v", unit.Name(), attempt, err)
			if !emit(StatusFailed) {
				return
			}

			recoverHook(ctx, unit, ec, err)

			if attempt > maxRetries {
				log.Printf("unit %s: retries exhausted after %d attempts", unit.Name(), attempt)
				break
			}
			if !emit(StatusRetrying) {
				return
			}
		}

		emit(StatusFinished)
	}
}

var errAborted = errors.New("attempt aborted by consumer")

// runAttempt runs one prepare/execute/postprocess pass. When the consumer
// stops pulling mid-attempt there is nothing left to drive: the abort is
// reported as errAborted and the outer loop returns without emitting again.
func (e *Engine) runAttempt(ctx context.Context, unit Unit, ec Context, emit func(Status) bool) error {
	if err := unit.Prepare(ctx, ec); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if !emit(StatusRunning) {
		return errAborted
	}

	stopped := false
	result, err := unit.Execute(ctx, ec, func(status Status) {
		if stopped {
			return
		}
		if !emit(status) {
			stopped = true
		}
	})
	if stopped {
		return errAborted
	}
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	if !emit(StatusRunning) {
		return errAborted
	}

	if err := unit.Postprocess(ctx, ec, result); err != nil {
		return fmt.Errorf("postprocess: %w", err)
	}
	return nil
}

// recoverHook shields the engine from a misbehaving Recover implementation;
// recovery never aborts the engine.
func recoverHook(ctx context.Context, unit Unit, ec Context, cause error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("unit %s: recover hook panicked: %v", unit.Name(), r)
		}
	}()
	unit.Recover(ctx, ec, cause)
}
