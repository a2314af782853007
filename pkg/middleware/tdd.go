package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/mcpforge/server/pkg/mcp"
)

// TestStatus is the most recent test-run outcome recorded for a tool.
type TestStatus struct {
	Passed bool
	RanAt  time.Time
}

// TestStatusProvider resolves a tool name to its most recently recorded test
// status. ok is false when no test has ever been run for toolName.
type TestStatusProvider func(toolName string) (TestStatus, bool)

// NewTDDEnforcementUnit blocks a tool call when no passing test run is on
// record for it, enforcing that implementation work is backed by a test
// that has actually been executed rather than merely written.
func NewTDDEnforcementUnit(order int, provider TestStatusProvider, maxAge time.Duration) *Unit {
	return &Unit{
		Name:    "tdd-enforcement",
		Order:   order,
		Enabled: provider != nil,
		Before: func(ctx context.Context, toolName string, params map[string]interface{}) error {
			if provider == nil {
				return nil
			}
			status, ok := provider(toolName)
			if !ok {
				return mcp.NewFault(mcp.CodeTDDViolation,
					fmt.Sprintf("no test run is on record for tool %q", toolName)).
					WithRecovery("write and run a test for this tool before calling it")
			}
			if !status.Passed {
				return mcp.NewFault(mcp.CodeTDDViolation,
					fmt.Sprintf("the most recent test run for tool %q did not pass", toolName)).
					WithRecovery("fix the failing test, or the implementation, until the test passes")
			}
			if maxAge > 0 && time.Since(status.RanAt) > maxAge {
				return mcp.NewFault(mcp.CodeTDDViolation,
					fmt.Sprintf("the test run for tool %q is stale (older than %s)", toolName, maxAge)).
					WithRecovery("re-run the test suite for this tool before calling it")
			}
			return nil
		},
	}
}
