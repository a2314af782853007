package registry

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/server/pkg/mcp"
	"github.com/mcpforge/server/pkg/middleware"
	"github.com/mcpforge/server/pkg/schema"
)

func echoTool() *Tool {
	return &Tool{
		Descriptor: ToolDescriptor{
			Name:        "echo",
			Description: "echoes its message parameter",
			InputSchema: map[string]interface{}{"type": "object"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return params["message"], nil
		},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	got, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.Descriptor.Name)
}

func TestRegistry_RegisterDuplicateFails(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	err := r.Register(echoTool())
	assert.Error(t, err)
}

func TestRegistry_RegisterUnnamedFails(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	err := r.Register(&Tool{Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil }})
	assert.Error(t, err)
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "echo", list[0].Name)
}

func TestDispatcher_HappyPath(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))
	d := NewDispatcher(r)

	result, state, err := d.Dispatch(context.Background(), "echo", map[string]interface{}{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, "hi", result)
}

func TestDispatcher_UnknownTool(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(NewRegistry())
	_, state, err := d.Dispatch(context.Background(), "nope", nil)

	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
	var fault *mcp.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, mcp.CodeToolNotFoundTax, fault.Code)
}

func TestDispatcher_SchemaValidationFailure(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	tool := echoTool()
	tool.Schema = schema.NewSimpleStructSchema(reflect.TypeOf(echoParams{}))
	require.NoError(t, r.Register(tool))
	d := NewDispatcher(r)

	_, state, err := d.Dispatch(context.Background(), "echo", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
	var fault *mcp.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, mcp.CodeValidationError, fault.Code)
}

type echoParams struct {
	Message string `json:"message" validate:"required"`
}

func TestDispatcher_HandlerErrorBecomesFault(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(&Tool{
		Descriptor: ToolDescriptor{Name: "fails"},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, errors.New("boom")
		},
	}))
	d := NewDispatcher(r)

	_, state, err := d.Dispatch(context.Background(), "fails", nil)
	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
	var fault *mcp.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, mcp.CodeInternalErrorTax, fault.Code)
}

func TestDispatcher_BeforeHookAbortsBeforeHandlerRuns(t *testing.T) {
	t.Parallel()

	ran := false
	r := NewRegistry()
	chain := middleware.NewChain(nil, &middleware.Unit{
		Name: "block", Order: 0, Enabled: true,
		Before: func(ctx context.Context, toolName string, params map[string]interface{}) error {
			return mcp.NewFault(mcp.CodeValidationError, "blocked")
		},
	})
	require.NoError(t, r.Register(&Tool{
		Descriptor: ToolDescriptor{Name: "blocked"},
		Chain:      chain,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			ran = true
			return nil, nil
		},
	}))
	d := NewDispatcher(r)

	_, state, err := d.Dispatch(context.Background(), "blocked", nil)
	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
	assert.False(t, ran)
}
