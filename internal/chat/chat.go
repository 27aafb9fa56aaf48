// Package chat holds the conversation message model shared by the graph,
// the checkpoint store and the HTTP surface.
package chat

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/vishalm/LlamaBot/internal/llm"
)

const (
	TypeHuman  = "human"
	TypeAI     = "ai"
	TypeTool   = "tool"
	TypeSystem = "system"
)

type Message struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

func NewHuman(content string) Message {
	return Message{ID: uuid.NewString(), Type: TypeHuman, Content: content}
}

func NewAI(content string) Message {
	return Message{ID: uuid.NewString(), Type: TypeAI, Content: content}
}

func NewSystem(content string) Message {
	return Message{ID: uuid.NewString(), Type: TypeSystem, Content: content}
}

func NewTool(name, toolCallID, content string) Message {
	return Message{ID: uuid.NewString(), Type: TypeTool, Content: content, Name: name, ToolCallID: toolCallID}
}

// LastHuman returns the content of the most recent human message.
func LastHuman(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Type == TypeHuman {
			return messages[i].Content, true
		}
	}
	return "", false
}

func ToLLM(messages []Message) []llm.Message {
	converted := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		converted = append(converted, toLLMMessage(msg))
	}
	return converted
}

func toLLMMessage(msg Message) llm.Message {
	switch msg.Type {
	case TypeSystem:
		return llm.Message{Role: llm.RoleSystem, Content: msg.Content}
	case TypeTool:
		return llm.Message{Role: llm.RoleTool, Content: msg.Content, ToolCallID: msg.ToolCallID}
	case TypeAI:
		converted := llm.Message{Role: llm.RoleAssistant, Content: msg.Content}
		for _, call := range msg.ToolCalls {
			args := string(call.Args)
			if args == "" {
				args = "{}"
			}
			converted.ToolCalls = append(converted.ToolCalls, llm.ToolCall{ID: call.ID, Name: call.Name, Arguments: args})
		}
		return converted
	default:
		return llm.Message{Role: llm.RoleUser, Content: msg.Content}
	}
}

// FromLLM converts an assistant reply into an ai message. Tool call
// arguments that are not valid JSON are kept as a JSON string so the
// message stays serializable.
func FromLLM(reply llm.Message) Message {
	msg := NewAI(reply.Content)
	for _, call := range reply.ToolCalls {
		args := json.RawMessage(call.Arguments)
		if !json.Valid(args) {
			quoted, _ := json.Marshal(call.Arguments)
			args = quoted
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: call.ID, Name: call.Name, Args: args})
	}
	return msg
}
