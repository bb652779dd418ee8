// Package pipeline provides the shared domain types and stage plumbing for vidloop.
package pipeline

import "context"

// Stage is one step of a frame path attempt. The orchestrator runs an
// extract stage (open the source, capture frames) and then an encode stage
// (one Encode call under a hard deadline). Both are injected through
// orchestrator.Deps.
type Stage[In, Out any] interface {
	Execute(ctx context.Context, input In) (Out, error)
}

// StageFunc lets a function stand in for a stage, such as a scripted capture.
type StageFunc[In, Out any] func(ctx context.Context, input In) (Out, error)

func (f StageFunc[In, Out]) Execute(ctx context.Context, input In) (Out, error) {
	return f(ctx, input)
}
