package bootstrap

import (
	"context"
	"fmt"
)

// Hook is a callback that runs during graceful shutdown. Services
// register hooks to drain work or release resources before the HTTP
// listener closes.
type Hook func(ctx context.Context) error

// OnStop registers hooks that run during graceful shutdown, before the
// HTTP server and observability providers are torn down.
func (a *App) OnStop(hooks ...Hook) {
	a.onStop = append(a.onStop, hooks...)
}

// runHooks executes hooks sequentially, returning the first error.
func runHooks(ctx context.Context, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("hook %d failed: %w", i, err)
		}
	}
	return nil
}
