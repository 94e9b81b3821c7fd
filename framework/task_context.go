package framework

import "context"

type taskContextKey struct{}

// TaskContext travels through context.Context so model and tool telemetry
// can be tied back to the analysis run and agent that caused it.
type TaskContext struct {
	RunID       string
	Agent       string
	ID          string
	Type        TaskType
	Instruction string
}

// WithTaskContext attaches task metadata to the context.
func WithTaskContext(ctx context.Context, task TaskContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, taskContextKey{}, task)
}

// TaskContextFrom extracts task metadata, if present.
func TaskContextFrom(ctx context.Context) (TaskContext, bool) {
	if ctx == nil {
		return TaskContext{}, false
	}
	task, ok := ctx.Value(taskContextKey{}).(TaskContext)
	return task, ok
}
