// Package agents maps agent names to compiled graphs and runs chat turns
// against them.
package agents

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/agents/react"
	"github.com/vishalm/LlamaBot/internal/agents/writehtml"
	"github.com/vishalm/LlamaBot/internal/graph"
	"github.com/vishalm/LlamaBot/internal/llm"
	"github.com/vishalm/LlamaBot/internal/page"
	"github.com/vishalm/LlamaBot/internal/prompts"
	"github.com/vishalm/LlamaBot/internal/tools"
)

var ErrUnknownAgent = errors.New("unknown agent")

type Registry struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Runnable
}

func NewRegistry() *Registry {
	return &Registry{graphs: map[string]*graph.Runnable{}}
}

func (r *Registry) Register(name string, runnable *graph.Runnable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[name] = runnable
}

func (r *Registry) Get(name string) (*graph.Runnable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runnable, ok := r.graphs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return runnable, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.graphs))
	for name := range r.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Deps struct {
	Provider     llm.Provider
	Prompts      *prompts.Library
	Pages        *page.Store
	Tools        *tools.Registry
	Checkpointer graph.Checkpointer
	MaxSteps     int
	Logger       *zap.Logger
}

// NewBuiltinRegistry compiles write_html_agent and react_agent.
func NewBuiltinRegistry(deps Deps) (*Registry, error) {
	opts := []graph.Option{graph.WithRecursionLimit(deps.MaxSteps)}
	if deps.Checkpointer != nil {
		opts = append(opts, graph.WithCheckpointer(deps.Checkpointer))
	}

	writeHTML, err := writehtml.Build(writehtml.Config{
		Provider: deps.Provider,
		Prompts:  deps.Prompts,
		Pages:    deps.Pages,
		Logger:   deps.Logger,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", writehtml.Name, err)
	}

	registry := deps.Tools
	if registry == nil {
		registry = tools.NewRegistry(tools.PageTools(deps.Pages)...)
	}
	paths := deps.Pages.Paths()
	reactAgent, err := react.Build(react.Config{
		Provider: deps.Provider,
		Prompts:  deps.Prompts,
		Tools:    registry,
		CSSPath:  paths.CSS,
		JSPath:   paths.JS,
		Logger:   deps.Logger,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", react.Name, err)
	}

	agents := NewRegistry()
	agents.Register(writehtml.Name, writeHTML)
	agents.Register(react.Name, reactAgent)
	return agents, nil
}
