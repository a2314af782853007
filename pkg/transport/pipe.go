// Package transport hosts a Server over pipe (stdio), HTTP, and WebSocket
// connections.
//
// Pipe mode reads line-delimited JSON-RPC requests off a reader with
// bufio.Scanner and writes responses to a writer, one line per message.
package transport

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"github.com/mcpforge/server/pkg/server"
)

// Pipe runs a Server over line-delimited JSON on an input/output stream
// pair — typically os.Stdin/os.Stdout.
type Pipe struct {
	Server *server.Server
	In     io.Reader
	Out    io.Writer
	Logger *slog.Logger
}

// NewPipe builds a Pipe transport.
func NewPipe(srv *server.Server, in io.Reader, out io.Writer) *Pipe {
	return &Pipe{Server: srv, In: in, Out: out, Logger: slog.Default()}
}

// Run reads one JSON-RPC message per line from In until ctx is cancelled or
// In is exhausted, writing each response (if any) as a line to Out.
func (p *Pipe) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(p.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		out, err := p.Server.Handle(ctx, line)
		if err != nil {
			p.Logger.Error("pipe: handle failed", "error", err)
			continue
		}
		if out == nil {
			continue
		}
		if _, err := p.Out.Write(append(out, '\n')); err != nil {
			return err
		}
	}
	return scanner.Err()
}
