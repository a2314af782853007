package mcp

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// IDGenerator hands out unique JSON-RPC request ids.
type IDGenerator struct {
	counter uint64
}

// NewIDGenerator creates an IDGenerator starting at 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns the next id.
func (g *IDGenerator) Next() interface{} {
	return atomic.AddUint64(&g.counter, 1)
}

// NewRequest builds a JSON-RPC 2.0 request.
func NewRequest(id interface{}, method string, params interface{}) (*Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return &Message{JSONRpc: "2.0", ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a JSON-RPC 2.0 notification (a request without an id).
func NewNotification(method string, params interface{}) (*Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return &Message{JSONRpc: "2.0", Method: method, Params: raw}, nil
}

// NewResponse builds a JSON-RPC 2.0 success response.
func NewResponse(id interface{}, result interface{}) (*Message, error) {
	raw, err := marshalOptional(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Message{JSONRpc: "2.0", ID: id, Result: raw}, nil
}

// NewErrorResponse builds a JSON-RPC 2.0 error response.
func NewErrorResponse(id interface{}, code int, message string, data interface{}) *Message {
	return &Message{
		JSONRpc: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

func marshalOptional(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// IsRequest reports whether msg is a request (has a method and an id).
func IsRequest(msg *Message) bool { return msg.Method != "" && msg.ID != nil }

// IsNotification reports whether msg is a notification (method, no id).
func IsNotification(msg *Message) bool { return msg.Method != "" && msg.ID == nil }

// IsResponse reports whether msg carries a result or error for some id.
func IsResponse(msg *Message) bool {
	return (msg.Result != nil || msg.Error != nil) && msg.ID != nil
}

// IsError reports whether msg is an error response.
func IsError(msg *Message) bool { return msg.Error != nil }

// ParseParams decodes msg.Params into target. A no-op if params are absent.
func ParseParams(msg *Message, target interface{}) error {
	if len(msg.Params) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Params, target)
}

// ParseResult decodes msg.Result into target. A no-op if the result is absent.
func ParseResult(msg *Message, target interface{}) error {
	if len(msg.Result) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Result, target)
}
