package odm

import "context"

type executorKey struct{}

// WithExecutor marks m as the model executing the next operation. Model
// wrappers use it so hooks, hydration and population observe the wrapper
// instead of the base model they delegate to.
func WithExecutor(ctx context.Context, m Model) context.Context {
	return context.WithValue(ctx, executorKey{}, m)
}

// ExecutorFromContext returns the executing model recorded in ctx.
func ExecutorFromContext(ctx context.Context) (Model, bool) {
	m, ok := ctx.Value(executorKey{}).(Model)
	return m, ok && m != nil
}
