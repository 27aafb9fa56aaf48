package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/api"
	"github.com/vishalm/LlamaBot/internal/bootstrap"
	"github.com/vishalm/LlamaBot/internal/config"
	"github.com/vishalm/LlamaBot/internal/events"
	"github.com/vishalm/LlamaBot/internal/llm"
	"github.com/vishalm/LlamaBot/internal/logging"
	"github.com/vishalm/LlamaBot/internal/relay"
	"github.com/vishalm/LlamaBot/internal/store"
	"github.com/vishalm/LlamaBot/internal/workflows"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newLogger = logging.New
	newBroker = events.NewBroker
	openStore = bootstrap.OpenStore
	newRunner = func(cfg config.Config, st store.Store, logger *zap.Logger) (relay.Turner, error) {
		rt, err := bootstrap.NewRuntime(cfg, st, logger)
		if err != nil {
			return nil, err
		}
		return rt.Runner, nil
	}
	dialTemporal       = client.Dial
	newWorkflowService = workflows.NewService
	newServer          = func(st store.Store, broker *events.Broker, workflows api.WorkflowService, cfg config.Config, opts ...api.Option) server {
		return api.NewServer(st, broker, workflows, cfg, opts...)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broker := newBroker()
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close checkpoint store", zap.Error(err))
		}
	}()

	runner, err := newRunner(cfg, st, logger)
	if err != nil {
		return err
	}
	opts := []api.Option{api.WithRunner(runner), api.WithLogger(logger)}
	if cfg.OllamaEnabled() {
		opts = append(opts, api.WithModelLister(llm.NewOllamaClient(cfg.OllamaBaseURL)))
	}

	var workflowService api.WorkflowService
	if cfg.ExecutionMode == config.ExecutionTemporal {
		workflowClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			return err
		}
		if workflowClient != nil {
			defer workflowClient.Close()
		}
		workflowService = newWorkflowService(workflowClient, cfg.TemporalTaskQueue)
	}

	server := newServer(st, broker, workflowService, cfg, opts...)

	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("llamabot listening",
		zap.String("addr", addr),
		zap.String("execution_mode", cfg.ExecutionMode),
		zap.String("checkpoint_store", cfg.CheckpointStore),
		zap.String("model", cfg.LLMModel))
	if err := server.Start(ctx, addr); err != nil {
		return err
	}

	return nil
}
