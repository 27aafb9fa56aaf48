package llm

import (
	"context"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	// Images holds image URLs (data URLs included) attached to a user message.
	Images []string `json:"images,omitempty"`
}

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec declares a callable tool; Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Request struct {
	// Model overrides the provider's default model for this call.
	Model    string
	Messages []Message
	Tools    []ToolSpec
}

// StreamFunc receives content deltas as the model produces them.
type StreamFunc func(delta string)

type Provider interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	// Chat returns the assistant message, including any tool calls. When
	// onDelta is non-nil the response is streamed through it.
	Chat(ctx context.Context, req Request, onDelta StreamFunc) (Message, error)
}

type Config struct {
	Mode             string
	Provider         string
	Model            string
	BaseURL          string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	OllamaBaseURL    string
	Temperature      float64
}

func NewProvider(cfg Config) (Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Mode == "local" {
		provider = "ollama"
	}

	switch provider {
	case "ollama":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:      "ollama",
			Model:       cfg.Model,
			BaseURL:     defaultIfEmpty(cfg.BaseURL, OllamaOpenAIBaseURL(cfg.OllamaBaseURL)),
			Temperature: cfg.Temperature,
		}), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:        cfg.OpenAIAPIKey,
			Model:         cfg.Model,
			BaseURL:       cfg.BaseURL,
			RequireAPIKey: true,
		}), nil
	case "openrouter":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:        cfg.OpenRouterAPIKey,
			Model:         cfg.Model,
			BaseURL:       defaultIfEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1"),
			RequireAPIKey: true,
		}), nil
	default:
		return nil, ErrUnsupportedProvider{Provider: cfg.Provider}
	}
}

// OllamaOpenAIBaseURL returns the OpenAI-compatible endpoint of an Ollama server.
func OllamaOpenAIBaseURL(ollamaBaseURL string) string {
	base := strings.TrimRight(defaultIfEmpty(ollamaBaseURL, "http://localhost:11434"), "/")
	return base + "/v1"
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
