package registry

import (
	"context"
	"fmt"

	"github.com/mcpforge/server/pkg/mcp"
)

// DispatchState names a step in a tool call's lifecycle. Dispatch reports
// only the terminal state, StateDone or StateFailed.
type DispatchState string

const (
	StatePending   DispatchState = "pending"
	StateBefore    DispatchState = "before"
	StateValidated DispatchState = "validated"
	StateRunning   DispatchState = "running"
	StateShaped    DispatchState = "shaped"
	StateDone      DispatchState = "done"
	StateFailed    DispatchState = "failed"
)

// Dispatcher resolves a tool by name and drives it through validation, its
// middleware chain, and its handler.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher builds a Dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch resolves toolName, validates params against its schema, runs it
// through its middleware chain, and returns its handler's result. The
// returned DispatchState is StateDone on success and StateFailed on any
// failure: an unknown tool, a middleware before-hook error, a schema
// validation error, cancellation, or a handler error. The intermediate
// states are not reported.
func (d *Dispatcher) Dispatch(ctx context.Context, toolName string, params map[string]interface{}) (interface{}, DispatchState, error) {
	tool, ok := d.registry.Get(toolName)
	if !ok {
		return nil, StateFailed, mcp.NewFault(mcp.CodeToolNotFoundTax, fmt.Sprintf("tool %q is not registered", toolName))
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	body := func(ctx context.Context) (interface{}, error) {
		if tool.Schema != nil {
			if err := tool.Schema.Validator().Validate(params); err != nil {
				return nil, mcp.NewFault(mcp.CodeValidationError, err.Error())
			}
		}

		select {
		case <-ctx.Done():
			return nil, contextFault(ctx)
		default:
		}

		result, err := tool.Handler(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, contextFault(ctx)
			}
			return nil, asFault(err)
		}

		return result, nil
	}

	var result interface{}
	var err error
	if tool.Chain != nil {
		result, err = tool.Chain.Execute(ctx, toolName, params, body)
	} else {
		result, err = body(ctx)
	}

	if err != nil {
		return nil, StateFailed, err
	}
	return result, StateDone, nil
}

func contextFault(ctx context.Context) *mcp.Fault {
	if ctx.Err() == context.DeadlineExceeded {
		return mcp.NewFault(mcp.CodeDeadlineExceeded, "tool call exceeded its deadline")
	}
	return mcp.NewFault(mcp.CodeCancelled, "tool call was cancelled")
}

func asFault(err error) *mcp.Fault {
	if f, ok := err.(*mcp.Fault); ok {
		return f
	}
	return mcp.NewFault(mcp.CodeInternalErrorTax, err.Error()).WithCause(err)
}
