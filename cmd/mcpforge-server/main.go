// Command mcpforge-server is a reference entrypoint wiring the framework's
// registry, resource store, and transports together behind the two example
// tools in examples/tools. It exists to demonstrate end-to-end wiring, not
// as a product the framework itself specifies — concrete tools, CLIs, and
// config loaders are explicit non-goals of the core.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	exampletools "github.com/mcpforge/server/examples/tools"
	"github.com/mcpforge/server/pkg/mcp"
	"github.com/mcpforge/server/pkg/registry"
	"github.com/mcpforge/server/pkg/resource"
	"github.com/mcpforge/server/pkg/server"
	"github.com/mcpforge/server/pkg/telemetry"
	"github.com/mcpforge/server/pkg/transport"
)

const httpShutdownTimeout = 5 * time.Second

func main() {
	httpAddr := flag.String("http", "", "serve HTTP+WebSocket on this address instead of the stdio pipe (e.g. :8080)")
	apiKey := flag.String("api-key", "", "if set with -http, require this value in the X-API-Key header")
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP/HTTP collector endpoint for tool-call tracing (e.g. localhost:4318); empty disables tracing")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitProvider(ctx, telemetry.ProviderConfig{
		ServiceName:    "mcpforge-reference-server",
		ServiceVersion: "0.1.0",
		Endpoint:       *otlpEndpoint,
		Insecure:       true,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	store := resource.NewMemoryStore(0)

	reg := registry.NewRegistry()
	must(reg.Register(exampletools.NewEchoTool()), logger)
	must(reg.Register(exampletools.NewBulkListTool(store)), logger)

	srv := server.New(reg, mcp.ServerInfo{Name: "mcpforge-reference-server", Version: "0.1.0"})
	srv.Resources = store
	srv.Logger = logger
	srv.Telemetry = telemetry.DefaultSettings().WithEnabled(*otlpEndpoint != "")

	if *httpAddr == "" {
		runPipe(ctx, srv, logger)
		return
	}
	runHTTP(ctx, srv, *httpAddr, *apiKey, logger)
}

func runPipe(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	pipe := transport.NewPipe(srv, os.Stdin, os.Stdout)
	pipe.Logger = logger
	if err := pipe.Run(ctx); err != nil {
		logger.Error("pipe transport exited", "error", err)
		os.Exit(1)
	}
}

func runHTTP(ctx context.Context, srv *server.Server, addr, apiKey string, logger *slog.Logger) {
	cfg := transport.HTTPConfig{Addr: addr}
	if apiKey != "" {
		cfg.Auth = transport.AuthConfig{
			Mode:    transport.AuthAPIKey,
			APIKeys: map[string]string{apiKey: "default"},
		}
	}

	h := transport.NewHTTP(srv, cfg)
	ws := transport.NewWS(srv, transport.WSConfig{})

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/ws", ws.ServeHTTP)
	mux.Handle("/", h.Router())
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("mcpforge HTTP+WebSocket transport listening", "addr", addr, "ws_path", "/mcp/ws")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http transport exited", "error", err)
		os.Exit(1)
	}
}

func must(err error, logger ...*slog.Logger) {
	if err == nil {
		return
	}
	if len(logger) > 0 {
		logger[0].Error("tool registration failed", "error", err)
	}
	os.Exit(1)
}
