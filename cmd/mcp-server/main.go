package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/bootstrap"
	"github.com/vishalm/LlamaBot/internal/config"
	"github.com/vishalm/LlamaBot/internal/llm"
	"github.com/vishalm/LlamaBot/internal/logging"
	"github.com/vishalm/LlamaBot/internal/mcpserver"
	"github.com/vishalm/LlamaBot/internal/prompts"
	"github.com/vishalm/LlamaBot/internal/tools"
)

const version = "0.1.0"

const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newLogger   = logging.New
	newRegistry = func(cfg config.Config, logger *zap.Logger) (*tools.Registry, error) {
		provider, err := llm.NewProvider(bootstrap.LLMConfig(cfg))
		if err != nil {
			return nil, err
		}
		lib, err := prompts.Load(cfg.PromptsDir)
		if err != nil {
			return nil, err
		}
		return bootstrap.Tools(cfg, provider, lib, bootstrap.Pages(cfg), logger), nil
	}
	serveStdio = func(s *server.MCPServer) error {
		return server.ServeStdio(s)
	}
	serveHTTP = func(ctx context.Context, s *server.MCPServer, addr string) error {
		return serveUntilDone(ctx, server.NewStreamableHTTPServer(s), addr)
	}
	notifyContext = signal.NotifyContext
)

type httpServer interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// serveUntilDone runs srv until ctx is done. A graceful shutdown is not an
// error.
func serveUntilDone(ctx context.Context, srv httpServer, addr string) error {
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type options struct {
	transport string
	addr      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the LlamaBot page tools over the Model Context Protocol",
		Long: `Serve write_html, write_css, write_javascript, read_page and clone_page
to MCP clients. The tools write the same page files the chat UI previews.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.transport, "transport", transportStdio, "transport to serve on: stdio or http")
	cmd.Flags().StringVar(&opts.addr, "addr", ":8765", "listen address for the http transport")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(parent context.Context, opts *options) error {
	if opts.transport != transportStdio && opts.transport != transportHTTP {
		return fmt.Errorf("unsupported transport %q", opts.transport)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}
	s := mcpserver.New(registry, version, logger)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := notifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.transport == transportHTTP {
		logger.Info("mcp server listening", zap.String("addr", opts.addr))
		return serveHTTP(ctx, s, opts.addr)
	}
	return serveStdio(s)
}
