package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcpforge/server/pkg/token"
)

// NewLoggingUnit returns a middleware that logs entry, completion, and
// failure of every tool call through the module's structured logger. When
// verbose is false, parameters are omitted from the log line.
func NewLoggingUnit(order int, logger *slog.Logger, verbose bool) *Unit {
	if logger == nil {
		logger = slog.Default()
	}

	return &Unit{
		Name:    "logging",
		Order:   order,
		Enabled: true,
		Before: func(ctx context.Context, toolName string, params map[string]interface{}) error {
			if verbose {
				logger.Info("tool call starting", "tool", toolName, "params", params)
			} else {
				logger.Info("tool call starting", "tool", toolName)
			}
			return nil
		},
		After: func(ctx context.Context, toolName string, params map[string]interface{}, result interface{}, elapsed time.Duration) error {
			logger.Info("tool call completed", "tool", toolName, "elapsed_ms", elapsed.Milliseconds())
			return nil
		},
		OnError: func(ctx context.Context, toolName string, params map[string]interface{}, cause error, elapsed time.Duration) error {
			logger.Error("tool call failed", "tool", toolName, "elapsed_ms", elapsed.Milliseconds(), "error", cause)
			return nil
		},
	}
}

// TokenUsage is one recorded observation emitted by the token-counting unit.
type TokenUsage struct {
	Tool         string
	InputTokens  int
	OutputTokens int
	Elapsed      time.Duration
}

// NewTokenCountingUnit returns a middleware that estimates the token cost of
// a call's parameters and result using the shared token estimator, handing
// each observation to record (e.g. for a running usage total or a metrics
// exporter).
func NewTokenCountingUnit(order int, record func(TokenUsage)) *Unit {
	return &Unit{
		Name:    "token-counting",
		Order:   order,
		Enabled: true,
		After: func(ctx context.Context, toolName string, params map[string]interface{}, result interface{}, elapsed time.Duration) error {
			if record == nil {
				return nil
			}
			record(TokenUsage{
				Tool:         toolName,
				InputTokens:  token.EstimateObject(params),
				OutputTokens: token.EstimateObject(result),
				Elapsed:      elapsed,
			})
			return nil
		},
	}
}
