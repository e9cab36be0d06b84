package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoProvider is returned when no generation backend is configured at all.
var ErrNoProvider = errors.New("no AI provider configured")

// Chain runs a whole unit of work against each provider in order until one
// succeeds. A multi-stage pipeline stays on a single provider; a failure at
// any stage restarts the pipeline on the next provider.
type Chain struct {
	providers []Provider
}

func NewChain(providers []Provider) *Chain {
	return &Chain{providers: providers}
}

// Run executes attempt with each provider until one returns nil. The returned
// error carries only the last provider's failure.
func (c *Chain) Run(ctx context.Context, attempt func(ctx context.Context, p Provider) error) error {
	if len(c.providers) == 0 {
		return ErrNoProvider
	}

	var lastErr error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt(ctx, p)
		if err == nil {
			return nil
		}
		slog.Info("provider attempt failed", "provider", p.Name(), "error", err.Error())
		lastErr = err
	}
	return fmt.Errorf("all configured providers failed: %w", lastErr)
}
