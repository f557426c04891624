package bootstrap

import (
	"context"
	"fmt"
)

// Hook is a lifecycle callback. Hooks of one phase run in registration
// order and the first error aborts the phase.
type Hook func(ctx context.Context) error

// OnStart adds hooks run once every component has started.
func (a *App[C]) OnStart(hooks ...Hook) {
	a.onStart = append(a.onStart, hooks...)
}

// OnReady adds hooks run after the ready check, right before the service
// is considered up.
func (a *App[C]) OnReady(hooks ...Hook) {
	a.onReady = append(a.onReady, hooks...)
}

// OnStop adds hooks run on shutdown while every component is still up.
func (a *App[C]) OnStop(hooks ...Hook) {
	a.onStop = append(a.onStop, hooks...)
}

func runHooks(ctx context.Context, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("hook %d/%d: %w", i+1, len(hooks), err)
		}
	}
	return nil
}
