package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/bootstrap"
	"github.com/vishalm/LlamaBot/internal/config"
	"github.com/vishalm/LlamaBot/internal/logging"
	"github.com/vishalm/LlamaBot/internal/relay"
	"github.com/vishalm/LlamaBot/internal/store"
	"github.com/vishalm/LlamaBot/internal/workflows"
)

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newLogger    = logging.New
	dialTemporal = client.Dial
	openStore    = bootstrap.OpenStore
	newRunner    = func(cfg config.Config, st store.Store, logger *zap.Logger) (relay.Turner, error) {
		rt, err := bootstrap.NewRuntime(cfg, st, logger)
		if err != nil {
			return nil, err
		}
		return rt.Runner, nil
	}
	newActivities   = workflows.NewTurnActivities
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
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

	temporalClient, err := dialTemporal(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		return err
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	runner, err := newRunner(cfg, st, logger)
	if err != nil {
		return err
	}
	activities := newActivities(runner, cfg.LLMModel, st, cfg.PublicURL, logger)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ThreadWorkflow)
	w.RegisterActivity(activities)

	logger.Info("llamabot worker started", zap.String("task_queue", cfg.TemporalTaskQueue))
	if err := w.Run(workerInterrupt()); err != nil {
		return err
	}

	return nil
}
