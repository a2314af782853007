// Package middleware implements the ordered before/after/on_error hook
// chain the dispatcher drives around every tool invocation.
package middleware

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// BeforeFunc runs before a tool's own body. Returning an error aborts the
// call before the tool ever executes.
type BeforeFunc func(ctx context.Context, toolName string, params map[string]interface{}) error

// AfterFunc observes a successful call. Errors it returns are logged and
// swallowed — they never turn a successful result into a failure.
type AfterFunc func(ctx context.Context, toolName string, params map[string]interface{}, result interface{}, elapsed time.Duration) error

// OnErrorFunc observes a failed call, including cancellation. Errors it
// returns are logged and swallowed.
type OnErrorFunc func(ctx context.Context, toolName string, params map[string]interface{}, cause error, elapsed time.Duration) error

// Unit is one middleware entry: ordered, independently enable-able, with up
// to three hooks.
type Unit struct {
	Name    string
	Order   int
	Enabled bool
	Before  BeforeFunc
	After   AfterFunc
	OnError OnErrorFunc
}

// Chain is an immutable, ordered set of middleware units configured once at
// tool-registration time.
type Chain struct {
	units  []*Unit
	logger *slog.Logger
}

// NewChain builds a Chain from units, which need not already be sorted.
func NewChain(logger *slog.Logger, units ...*Unit) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	sorted := make([]*Unit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	return &Chain{units: sorted, logger: logger}
}

func (c *Chain) enabled() []*Unit {
	out := make([]*Unit, 0, len(c.units))
	for _, u := range c.units {
		if u.Enabled {
			out = append(out, u)
		}
	}
	return out
}

// Execute runs the chain around body: before hooks ascending by order, then
// body, then after (success) or on_error (failure) in reverse order. If any
// before hook fails, on_error runs in reverse only on the units whose before
// already completed, and body never executes.
func (c *Chain) Execute(ctx context.Context, toolName string, params map[string]interface{}, body func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	start := time.Now()
	units := c.enabled()

	completed := make([]*Unit, 0, len(units))
	for _, u := range units {
		if u.Before == nil {
			completed = append(completed, u)
			continue
		}
		if err := u.Before(ctx, toolName, params); err != nil {
			c.runOnError(ctx, toolName, params, err, time.Since(start), completed)
			return nil, err
		}
		completed = append(completed, u)
	}

	result, err := body(ctx)
	elapsed := time.Since(start)

	if err != nil {
		c.runOnError(ctx, toolName, params, err, elapsed, units)
		return nil, err
	}

	c.runAfter(ctx, toolName, params, result, elapsed, units)
	return result, nil
}

func (c *Chain) runAfter(ctx context.Context, toolName string, params map[string]interface{}, result interface{}, elapsed time.Duration, units []*Unit) {
	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		if u.After == nil {
			continue
		}
		if err := u.After(ctx, toolName, params, result, elapsed); err != nil {
			c.logger.Warn("middleware after hook failed", "middleware", u.Name, "tool", toolName, "error", err)
		}
	}
}

func (c *Chain) runOnError(ctx context.Context, toolName string, params map[string]interface{}, cause error, elapsed time.Duration, units []*Unit) {
	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		if u.OnError == nil {
			continue
		}
		if err := u.OnError(ctx, toolName, params, cause, elapsed); err != nil {
			c.logger.Warn("middleware on_error hook failed", "middleware", u.Name, "tool", toolName, "error", err)
		}
	}
}
