package transport

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/server/pkg/mcp"
	"github.com/mcpforge/server/pkg/registry"
	"github.com/mcpforge/server/pkg/server"
)

func newFixtureServer(t *testing.T) *server.Server {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(&registry.Tool{
		Descriptor: registry.ToolDescriptor{Name: "echo"},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return mcp.ToolResult[string]{Success: true, Data: params["message"].(string)}, nil
		},
	}))
	return server.New(reg, mcp.ServerInfo{Name: "fixture", Version: "0.0.1"})
}

func TestPipe_RunProcessesEachLine(t *testing.T) {
	t.Parallel()

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	p := NewPipe(newFixtureServer(t), in, &out)
	require.NoError(t, p.Run(context.Background()))

	assert.Contains(t, out.String(), `"tools"`)
}

func TestPipe_SkipsBlankLines(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("\n\n" + `{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n\n")
	var out bytes.Buffer

	p := NewPipe(newFixtureServer(t), in, &out)
	require.NoError(t, p.Run(context.Background()))

	lines := strings.Count(out.String(), "\n")
	assert.Equal(t, 1, lines)
}
