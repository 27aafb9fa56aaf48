package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	Temperature   float64
	RequireAPIKey bool
	HTTPClient    *http.Client
}

// OpenAIProvider talks to any chat-completions compatible endpoint: OpenAI,
// OpenRouter and Ollama's /v1 API.
type OpenAIProvider struct {
	client      openai.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	requireKey  bool
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := strings.TrimRight(defaultIfEmpty(cfg.BaseURL, "https://api.openai.com/v1"), "/")
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL + "/"),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		requireKey:  cfg.RequireAPIKey,
	}
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) BaseURL() string {
	return p.baseURL
}

func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	reply, err := p.Chat(ctx, Request{Messages: messages}, nil)
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(reply.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, req Request, onDelta StreamFunc) (Message, error) {
	if p.requireKey && p.apiKey == "" {
		return Message{}, ErrMissingAPIKey
	}
	model := defaultIfEmpty(req.Model, p.model)
	if model == "" {
		return Message{}, ErrMissingModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if p.temperature > 0 {
		params.Temperature = openai.Float(p.temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}

	if onDelta == nil {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return Message{}, fmt.Errorf("LLM request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return Message{}, ErrNoChoices
		}
		return fromOpenAIMessage(resp.Choices[0].Message), nil
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var acc openai.ChatCompletionAccumulator
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onDelta(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return Message{}, fmt.Errorf("LLM stream failed: %w", err)
	}
	if len(acc.ChatCompletion.Choices) == 0 {
		return Message{}, ErrNoChoices
	}
	return fromOpenAIMessage(acc.ChatCompletion.Choices[0].Message), nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			converted = append(converted, toOpenAIAssistantMessage(msg))
		case RoleTool:
			converted = append(converted, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			converted = append(converted, toOpenAIUserMessage(msg))
		}
	}
	return converted
}

func toOpenAIUserMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.Images) == 0 {
		return openai.UserMessage(msg.Content)
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Images)+1)
	parts = append(parts, openai.TextContentPart(msg.Content))
	for _, image := range msg.Images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: image,
		}))
	}
	return openai.UserMessage(parts)
}

func toOpenAIAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.ToolCalls) == 0 {
		return openai.AssistantMessage(msg.Content)
	}
	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   call.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: defaultIfEmpty(call.Arguments, "{}"),
			},
		})
	}
	asstMsg := openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: toolCalls,
	}
	if msg.Content != "" {
		asstMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(msg.Content),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asstMsg}
}

func toOpenAITools(specs []ToolSpec) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  openai.FunctionParameters(spec.Parameters),
			},
		})
	}
	return tools
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) Message {
	converted := Message{
		Role:    RoleAssistant,
		Content: msg.Content,
	}
	for _, call := range msg.ToolCalls {
		converted.ToolCalls = append(converted.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return converted
}
