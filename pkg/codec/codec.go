// Package codec frames and parses the JSON-RPC 2.0 wire format MCP runs
// over: single-object requests/responses, and arrays of them per the
// JSON-RPC 2.0 batch extension.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mcpforge/server/pkg/mcp"
)

// Decode parses raw as either a single JSON-RPC message or a batch array of
// them. batch reports which shape was seen, so Encode can mirror it back.
func Decode(raw []byte) (msgs []*mcp.Message, batch bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("codec: empty payload")
	}

	if trimmed[0] == '[' {
		var arr []*mcp.Message
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, true, fmt.Errorf("codec: decode batch: %w", err)
		}
		if len(arr) == 0 {
			return nil, true, fmt.Errorf("codec: empty batch")
		}
		return arr, true, nil
	}

	var msg mcp.Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, false, fmt.Errorf("codec: decode message: %w", err)
	}
	return []*mcp.Message{&msg}, false, nil
}

// Encode renders msgs back onto the wire, as a batch array if batch is true
// or there is more than one message, otherwise as a single object. Encode
// returns nil, nil for an empty msgs slice — nothing should be written to
// the transport for an all-notifications request.
func Encode(msgs []*mcp.Message, batch bool) ([]byte, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	if !batch && len(msgs) == 1 {
		return json.Marshal(msgs[0])
	}
	return json.Marshal(msgs)
}
