package orchestrator

import (
	"context"
	"log/slog"
)

// cleanupStack runs registered handlers in reverse registration
// order, matching spec §5's teardown guarantee: delete the bootstrap
// snapshot, restore read-only flags. The temporary root mounts are
// torn down by internal/cli, not by this stack. Handlers must be
// idempotent and must not panic;
// errors are logged but never stop the remaining handlers from
// running.
type cleanupStack struct {
	log      *slog.Logger
	handlers []func(ctx context.Context) error
}

func (c *cleanupStack) push(h func(ctx context.Context) error) {
	c.handlers = append(c.handlers, h)
}

func (c *cleanupStack) run(ctx context.Context) {
	for i := len(c.handlers) - 1; i >= 0; i-- {
		if err := c.handlers[i](ctx); err != nil {
			c.log.Error("cleanup handler failed", slog.Any("err", err))
		}
	}
	c.handlers = nil
}
