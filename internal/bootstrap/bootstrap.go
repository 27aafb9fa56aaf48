// Package bootstrap assembles the components shared by the llamabot server,
// the turn worker and the MCP server from a config.Config.
package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/agents"
	"github.com/vishalm/LlamaBot/internal/browser"
	"github.com/vishalm/LlamaBot/internal/config"
	"github.com/vishalm/LlamaBot/internal/llm"
	"github.com/vishalm/LlamaBot/internal/page"
	"github.com/vishalm/LlamaBot/internal/prompts"
	"github.com/vishalm/LlamaBot/internal/store"
	"github.com/vishalm/LlamaBot/internal/store/memory"
	"github.com/vishalm/LlamaBot/internal/store/postgres"
	"github.com/vishalm/LlamaBot/internal/store/sqlite"
	"github.com/vishalm/LlamaBot/internal/tools"
)

var (
	openPostgres = func(conn string) (store.Store, func() error, error) {
		st, err := postgres.New(conn)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	openSQLite = func(path string) (store.Store, func() error, error) {
		st, err := sqlite.New(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
)

// OpenStore returns the checkpoint store named by CHECKPOINT_STORE and a
// function that releases it.
func OpenStore(cfg config.Config) (store.Store, func() error, error) {
	switch cfg.CheckpointStore {
	case "", config.StoreMemory:
		return memory.New(), func() error { return nil }, nil
	case config.StorePostgres:
		return openPostgres(cfg.PostgresURL)
	case config.StoreSQLite:
		return openSQLite(cfg.SQLitePath)
	default:
		return nil, nil, fmt.Errorf("unsupported checkpoint store %q", cfg.CheckpointStore)
	}
}

func LLMConfig(cfg config.Config) llm.Config {
	temperature := 0.0
	if cfg.OllamaEnabled() {
		temperature = cfg.OllamaTemperature
	}
	return llm.Config{
		Mode:             cfg.LLMMode,
		Provider:         cfg.LLMProvider,
		Model:            cfg.LLMModel,
		BaseURL:          cfg.LLMBaseURL,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
		OllamaBaseURL:    cfg.OllamaBaseURL,
		Temperature:      temperature,
	}
}

func Pages(cfg config.Config) *page.Store {
	return page.NewStore(page.Paths{HTML: cfg.PageHTMLPath, CSS: cfg.PageCSSPath, JS: cfg.PageJSPath})
}

// Tools returns the page tools plus clone_page backed by a headless browser.
func Tools(cfg config.Config, provider llm.Provider, lib *prompts.Library, pages *page.Store, logger *zap.Logger) *tools.Registry {
	registry := tools.NewRegistry(tools.PageTools(pages)...)
	registry.Register(tools.NewCloneTool(tools.CloneConfig{
		Capturer: browser.NewRodCapturer(browser.RodConfig{
			Bin:      cfg.BrowserBin,
			Headless: cfg.BrowserHeadless,
			Timeout:  cfg.BrowserTimeout,
		}),
		Vision:        provider,
		VisionModel:   cfg.VisionModel,
		Pages:         pages,
		Prompts:       lib,
		ScreenshotDir: cfg.ScreenshotDir,
		Logger:        logger,
	}))
	return registry
}

// Runtime is everything a process needs to run agent turns.
type Runtime struct {
	Provider llm.Provider
	Prompts  *prompts.Library
	Pages    *page.Store
	Tools    *tools.Registry
	Agents   *agents.Registry
	Runner   *agents.Runner
}

func NewRuntime(cfg config.Config, checkpointer store.Store, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider, err := llm.NewProvider(LLMConfig(cfg))
	if err != nil {
		return nil, err
	}
	lib, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	pages := Pages(cfg)
	registry := Tools(cfg, provider, lib, pages, logger)

	deps := agents.Deps{
		Provider: provider,
		Prompts:  lib,
		Pages:    pages,
		Tools:    registry,
		MaxSteps: cfg.MaxAgentSteps,
		Logger:   logger,
	}
	if checkpointer != nil {
		deps.Checkpointer = checkpointer
	}
	agentRegistry, err := agents.NewBuiltinRegistry(deps)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Provider: provider,
		Prompts:  lib,
		Pages:    pages,
		Tools:    registry,
		Agents:   agentRegistry,
		Runner:   agents.NewRunner(agentRegistry, pages, cfg.LLMModel),
	}, nil
}
