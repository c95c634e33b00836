package agent

import (
	"context"
	"errors"
	"fmt"
)

type Status string

const (
	StatusRunning  Status = "running"
	StatusMessage  Status = "message"
	StatusRetrying Status = "retrying"
	StatusFailed   Status = "failed"
	StatusSuccess  Status = "success"
	StatusFinished Status = "finished"
)

// IsTerminalStatus reports whether the engine will emit nothing after a
// snapshot carrying this status.
func IsTerminalStatus(status Status) bool {
	return status == StatusFinished
}

// Snapshot is one observable point in a unit's lifecycle. Context is a clone
// taken at emission time.
type Snapshot struct {
	Status  Status  `json:"status"`
	Context Context `json:"context"`
}

// EmitFunc lets Execute publish intermediate snapshots (streamed output,
// human-visible messages) before the attempt's final result. The engine
// clones the context at each call.
type EmitFunc func(status Status)

// Unit is one lifecycle-bound piece of work driven by the Engine.
//
// Prepare applies defaults and validates inputs; Execute performs the core
// action and may emit intermediate snapshots; Postprocess interprets the raw
// result into named context keys; Recover is the error hook invoked after
// any failed attempt and must not assume which phase failed.
type Unit interface {
	Name() string
	MaxRetries() int
	Prepare(ctx context.Context, ec Context) error
	Execute(ctx context.Context, ec Context, emit EmitFunc) (any, error)
	Postprocess(ctx context.Context, ec Context, result any) error
	Recover(ctx context.Context, ec Context, cause error)
}

var ErrValidation = errors.New("context validation failed")

// ValidationError reports a required context binding that was still missing
// after defaulting. It aborts the attempt, not the run.
type ValidationError struct {
	Unit string
	Key  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unit %s: missing context key %q", e.Unit, e.Key)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
