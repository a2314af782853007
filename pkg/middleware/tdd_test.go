package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/server/pkg/mcp"
)

func TestTDDEnforcementUnit_NoRecordBlocks(t *testing.T) {
	t.Parallel()

	unit := NewTDDEnforcementUnit(0, func(tool string) (TestStatus, bool) { return TestStatus{}, false }, 0)
	err := unit.Before(context.Background(), "tool", nil)

	require.Error(t, err)
	var fault *mcp.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, mcp.CodeTDDViolation, fault.Code)
}

func TestTDDEnforcementUnit_FailingTestBlocks(t *testing.T) {
	t.Parallel()

	unit := NewTDDEnforcementUnit(0, func(tool string) (TestStatus, bool) {
		return TestStatus{Passed: false, RanAt: time.Now()}, true
	}, 0)
	err := unit.Before(context.Background(), "tool", nil)
	require.Error(t, err)
}

func TestTDDEnforcementUnit_PassingRecentTestAllowsCall(t *testing.T) {
	t.Parallel()

	unit := NewTDDEnforcementUnit(0, func(tool string) (TestStatus, bool) {
		return TestStatus{Passed: true, RanAt: time.Now()}, true
	}, time.Hour)
	assert.NoError(t, unit.Before(context.Background(), "tool", nil))
}

func TestTDDEnforcementUnit_StaleTestBlocks(t *testing.T) {
	t.Parallel()

	unit := NewTDDEnforcementUnit(0, func(tool string) (TestStatus, bool) {
		return TestStatus{Passed: true, RanAt: time.Now().Add(-2 * time.Hour)}, true
	}, time.Hour)
	require.Error(t, unit.Before(context.Background(), "tool", nil))
}
