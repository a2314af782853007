// Package server implements the MCP method surface — initialize, tools/*,
// resources/*, prompts/*, logging/setLevel, and notifications/cancelled —
// on top of the tool registry, resource store, and codec packages. A
// Server is transport-agnostic: pipe, HTTP, and WebSocket transports all
// drive the same Server.Handle.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/mcpforge/server/pkg/codec"
	"github.com/mcpforge/server/pkg/mcp"
	"github.com/mcpforge/server/pkg/registry"
	"github.com/mcpforge/server/pkg/resource"
	"github.com/mcpforge/server/pkg/telemetry"
)

// PromptProvider resolves a named, parameterized prompt template.
type PromptProvider interface {
	List() []mcp.Prompt
	Get(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error)
}

// Server answers MCP JSON-RPC requests for one configured tool/resource/
// prompt surface.
type Server struct {
	Registry     *registry.Registry
	Dispatcher   *registry.Dispatcher
	Resources    resource.Store
	Prompts      PromptProvider
	Info         mcp.ServerInfo
	Capabilities mcp.ServerCapabilities
	Instructions string
	Logger       *slog.Logger

	// Telemetry configures the tracing span wrapped around every tools/call
	// dispatch. New sets it to telemetry.DefaultSettings(), which leaves
	// tracing disabled; a nil value disables it as well.
	Telemetry *telemetry.Settings

	mu          sync.Mutex
	cancelFuncs map[string]context.CancelFunc
}

// New builds a Server. Resources and Prompts may be nil if a deployment
// exposes no resources or prompts; their corresponding methods then return
// empty lists and a "not found" fault respectively.
func New(reg *registry.Registry, info mcp.ServerInfo) *Server {
	return &Server{
		Registry:   reg,
		Dispatcher: registry.NewDispatcher(reg),
		Info:       info,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{},
		},
		Logger:      slog.Default(),
		Telemetry:   telemetry.DefaultSettings(),
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

// Handle parses raw as one or a batch of JSON-RPC messages, dispatches each
// request, and returns the encoded response frame. It returns nil, nil when
// raw contained only notifications — nothing should be written back.
func (s *Server) Handle(ctx context.Context, raw []byte) ([]byte, error) {
	msgs, batch, err := codec.Decode(raw)
	if err != nil {
		resp := mcp.NewErrorResponse(nil, mcp.CodeParseError, "parse error", err.Error())
		return codec.Encode([]*mcp.Message{resp}, false)
	}

	var responses []*mcp.Message
	for _, msg := range msgs {
		if mcp.IsNotification(msg) {
			s.handleNotification(ctx, msg)
			continue
		}
		responses = append(responses, s.handleRequest(ctx, msg))
	}

	return codec.Encode(responses, batch)
}

func (s *Server) handleRequest(ctx context.Context, msg *mcp.Message) *mcp.Message {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "tools/list":
		return s.handleToolsList(msg)
	case "tools/call":
		return s.handleToolsCall(ctx, msg)
	case "resources/list":
		return s.handleResourcesList(msg)
	case "resources/read":
		return s.handleResourcesRead(ctx, msg)
	case "prompts/list":
		return s.handlePromptsList(msg)
	case "prompts/get":
		return s.handlePromptsGet(ctx, msg)
	case "logging/setLevel":
		return s.handleSetLevel(msg)
	default:
		return mcp.NewErrorResponse(msg.ID, mcp.CodeMethodNotFound, fmt.Sprintf("method not found: %s", msg.Method), nil)
	}
}

func (s *Server) handleNotification(ctx context.Context, msg *mcp.Message) {
	switch msg.Method {
	case "notifications/cancelled":
		var params mcp.CancelledParams
		if err := mcp.ParseParams(msg, &params); err != nil {
			return
		}
		s.cancel(params.RequestID)
	}
}

func (s *Server) handleInitialize(msg *mcp.Message) *mcp.Message {
	var params mcp.InitializeParams
	if err := mcp.ParseParams(msg, &params); err != nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeInvalidParams, "invalid initialize params", err.Error())
	}

	result := mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    s.Capabilities,
		ServerInfo:      s.Info,
		Instructions:    s.Instructions,
	}
	resp, _ := mcp.NewResponse(msg.ID, result)
	return resp
}

func (s *Server) handleToolsList(msg *mcp.Message) *mcp.Message {
	result := mcp.ListToolsResult{Tools: s.Registry.List()}
	resp, _ := mcp.NewResponse(msg.ID, result)
	return resp
}

func (s *Server) handleToolsCall(ctx context.Context, msg *mcp.Message) *mcp.Message {
	var params mcp.CallToolParams
	if err := mcp.ParseParams(msg, &params); err != nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeInvalidParams, "invalid tools/call params", err.Error())
	}
	if params.Name == "" {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeInvalidParams, "tool name is required", nil)
	}

	callCtx, cancel := context.WithCancel(ctx)
	s.track(msg.ID, cancel)
	defer s.untrack(msg.ID)

	result, err := s.dispatchTraced(callCtx, params)
	if err != nil {
		fault := asFault(err)
		return mcp.NewErrorResponse(msg.ID, fault.JSONRPCCode(), fault.Message, fault.ErrorInfo())
	}

	resp, marshalErr := mcp.NewResponse(msg.ID, result)
	if marshalErr != nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeInternalError, "failed to encode tool result", marshalErr.Error())
	}
	return resp
}

// dispatchTraced wraps a tool dispatch in a telemetry span; when tracing is
// disabled the span comes from a no-op tracer. The span records the tool
// name and, when Telemetry.RecordResult is set and the call succeeded, a
// single "dispatched" attribute; it never records raw parameters or the
// raw result body.
func (s *Server) dispatchTraced(ctx context.Context, params mcp.CallToolParams) (interface{}, error) {
	tracer := telemetry.GetTracer(s.Telemetry)
	result, err := telemetry.RecordSpan(ctx, tracer, telemetry.SpanOptions{
		Name:        "mcp.tools.call",
		Attributes:  telemetry.ToolCallAttributes(params.Name, s.Telemetry),
		EndWhenDone: true,
	}, func(spanCtx context.Context, span trace.Span) (interface{}, error) {
		result, _, err := s.Dispatcher.Dispatch(spanCtx, params.Name, params.Arguments)
		if err == nil && s.Telemetry != nil && s.Telemetry.RecordResult {
			telemetry.AddResultAttributes(span, "mcp.tool.result", map[string]interface{}{
				"dispatched": true,
			})
		}
		return result, err
	})
	return result, err
}

func (s *Server) handleResourcesList(msg *mcp.Message) *mcp.Message {
	result := mcp.ListResourcesResult{Resources: nil}
	resp, _ := mcp.NewResponse(msg.ID, result)
	return resp
}

func (s *Server) handleResourcesRead(ctx context.Context, msg *mcp.Message) *mcp.Message {
	var params mcp.ReadResourceParams
	if err := mcp.ParseParams(msg, &params); err != nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeInvalidParams, "invalid resources/read params", err.Error())
	}
	if s.Resources == nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeResourceNotFound, "no resource store is configured", nil)
	}

	content, ok, err := s.Resources.Retrieve(ctx, params.URI)
	if err != nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeResourceNotFound, err.Error(), nil)
	}
	if !ok {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeResourceNotFound, fmt.Sprintf("resource not found: %s", params.URI), nil)
	}

	result := mcp.ReadResourceResult{
		Contents: []mcp.ResourceContent{{
			URI:  params.URI,
			Text: string(content),
		}},
	}
	resp, _ := mcp.NewResponse(msg.ID, result)
	return resp
}

func (s *Server) handlePromptsList(msg *mcp.Message) *mcp.Message {
	var prompts []mcp.Prompt
	if s.Prompts != nil {
		prompts = s.Prompts.List()
	}
	result := mcp.ListPromptsResult{Prompts: prompts}
	resp, _ := mcp.NewResponse(msg.ID, result)
	return resp
}

func (s *Server) handlePromptsGet(ctx context.Context, msg *mcp.Message) *mcp.Message {
	var params mcp.GetPromptParams
	if err := mcp.ParseParams(msg, &params); err != nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeInvalidParams, "invalid prompts/get params", err.Error())
	}
	if s.Prompts == nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeMethodNotFound, "no prompts are configured", nil)
	}

	result, err := s.Prompts.Get(ctx, params.Name, params.Arguments)
	if err != nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeMethodNotFound, err.Error(), nil)
	}
	resp, _ := mcp.NewResponse(msg.ID, result)
	return resp
}

func (s *Server) handleSetLevel(msg *mcp.Message) *mcp.Message {
	var params mcp.SetLevelParams
	if err := mcp.ParseParams(msg, &params); err != nil {
		return mcp.NewErrorResponse(msg.ID, mcp.CodeInvalidParams, "invalid logging/setLevel params", err.Error())
	}
	resp, _ := mcp.NewResponse(msg.ID, map[string]interface{}{})
	return resp
}

func (s *Server) track(id interface{}, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFuncs[idKey(id)] = cancel
}

func (s *Server) untrack(id interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancelFuncs, idKey(id))
}

func (s *Server) cancel(id interface{}) {
	s.mu.Lock()
	cancel, ok := s.cancelFuncs[idKey(id)]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func idKey(id interface{}) string {
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Sprint(id)
	}
	return string(raw)
}

func asFault(err error) *mcp.Fault {
	if f, ok := err.(*mcp.Fault); ok {
		return f
	}
	return mcp.NewFault(mcp.CodeInternalErrorTax, err.Error())
}
