// Command mcp-kagi-search serves Kagi web search as an MCP tool, over stdio or
// over HTTP with server-sent events when a port is given.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FreePeak/mcp-kagi-search/internal/config"
	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/kagi"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/logging"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/server"
	"github.com/FreePeak/mcp-kagi-search/internal/usecases"
	"github.com/FreePeak/mcp-kagi-search/internal/usecases/search"
	"github.com/FreePeak/mcp-kagi-search/internal/usecases/tools"
)

const (
	serverName    = "mcp-kagi-search"
	serverVersion = "0.1.0"

	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if code := exitCode(newRootCommand(os.LookupEnv).ExecuteContext(ctx)); code != 0 {
		stop()
		os.Exit(code)
	}
}

// exitCode maps a run error to the process exit status: 1 for configuration
// errors, 2 for anything else that stopped the server.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case domain.IsConfigurationError(err):
		return 1
	default:
		return 2
	}
}

func newRootCommand(lookup config.LookupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   serverName + " [port]",
		Short: "Kagi search MCP server",
		Long: "Serves the kagi_search tool over the Model Context Protocol.\n" +
			"Without arguments it speaks newline delimited JSON-RPC on stdin/stdout.\n" +
			"With a port it listens on all interfaces and serves /sse and /message.",
		Version:      serverVersion,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), lookup, args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// parsePort validates the optional port argument. Zero means stdio mode.
func parsePort(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, domain.NewConfigurationError("port", fmt.Sprintf("invalid port %q: must be an integer", args[0]))
	}
	if port < 1 || port > 65535 {
		return 0, domain.NewConfigurationError("port", fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	return port, nil
}

func run(ctx context.Context, lookup config.LookupFunc, args []string, stdin io.Reader, stdout io.Writer) error {
	port, err := parsePort(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(lookup)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:         cfg.LogLevel,
		OutputPaths:   []string{"stderr"},
		InitialFields: logging.Fields{"service": serverName},
	})
	if err != nil {
		return domain.NewConfigurationError(config.EnvLogLevel, err.Error())
	}
	defer func() { _ = logger.Sync() }()

	handler, err := newMessageHandler(cfg, logger)
	if err != nil {
		return err
	}

	if port == 0 {
		logger.Info("starting in stdio mode", logging.Fields{"version": serverVersion})
		return server.NewStdioServer(handler, server.WithStdioLogger(logger)).Listen(ctx, stdin, stdout)
	}

	logger.Info("starting in SSE mode", logging.Fields{"version": serverVersion, "port": port})
	return serveSSE(ctx, handler, port, logger)
}

// newMessageHandler wires the search client, the tool registry and the
// protocol service together.
func newMessageHandler(cfg *config.Config, logger *logging.Logger) (domain.MessageHandler, error) {
	client := kagi.NewClient(cfg.APIKey,
		kagi.WithBaseURL(cfg.BaseURL),
		kagi.WithLogger(logger.Named("kagi")),
	)

	registry := tools.NewRegistry(logger.Named("tools"))
	if err := registry.Register(search.NewTool(client, logger.Named("search")).Descriptor()); err != nil {
		return nil, err
	}

	return usecases.NewServerService(usecases.ServerConfig{
		Name:     serverName,
		Version:  serverVersion,
		ToolRepo: registry,
		Logger:   logger.Named("mcp"),
	}), nil
}

func serveSSE(ctx context.Context, handler domain.MessageHandler, port int, logger *logging.Logger) error {
	sse := server.NewSSEServer(handler, server.WithLogger(logger.Named("sse")))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sse.Start(fmt.Sprintf(":%d", port))
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return sse.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
