package graph

import (
	"errors"
	"fmt"

	"github.com/vishalm/LlamaBot/internal/chat"
)

var ErrDesignPlanSet = errors.New("design plan already set")

// State is the conversation state threaded through every node of a run.
type State struct {
	Messages            []chat.Message `json:"messages"`
	InitialUserMessage  string         `json:"initial_user_message"`
	ExistingHTMLContent string         `json:"existing_html_content"`
	DesignPlan          string         `json:"design_plan"`
	FinalHTMLContent    string         `json:"final_html_content"`
	Next                string         `json:"next"`
}

// Update is what a node returns. Messages are appended; any other non-empty
// field replaces the current value.
type Update struct {
	Messages            []chat.Message `json:"messages,omitempty"`
	InitialUserMessage  string         `json:"initial_user_message,omitempty"`
	ExistingHTMLContent string         `json:"existing_html_content,omitempty"`
	DesignPlan          string         `json:"design_plan,omitempty"`
	FinalHTMLContent    string         `json:"final_html_content,omitempty"`
	Next                string         `json:"next,omitempty"`
}

// Input seeds a run. Messages are appended to the thread history.
type Input struct {
	Messages            []chat.Message
	InitialUserMessage  string
	ExistingHTMLContent string
}

func (s State) Apply(update Update) (State, error) {
	if update.DesignPlan != "" && s.DesignPlan != "" && update.DesignPlan != s.DesignPlan {
		return s, ErrDesignPlanSet
	}
	merged := s
	if len(update.Messages) > 0 {
		messages := make([]chat.Message, 0, len(s.Messages)+len(update.Messages))
		messages = append(messages, s.Messages...)
		messages = append(messages, update.Messages...)
		merged.Messages = messages
	}
	if update.InitialUserMessage != "" {
		merged.InitialUserMessage = update.InitialUserMessage
	}
	if update.ExistingHTMLContent != "" {
		merged.ExistingHTMLContent = update.ExistingHTMLContent
	}
	if update.DesignPlan != "" {
		merged.DesignPlan = update.DesignPlan
	}
	if update.FinalHTMLContent != "" {
		merged.FinalHTMLContent = update.FinalHTMLContent
	}
	if update.Next != "" {
		merged.Next = update.Next
	}
	return merged, nil
}

// startTurn keeps the message history and clears everything scoped to a
// single run.
func (s State) startTurn(input Input) (State, error) {
	fresh := State{Messages: s.Messages}
	merged, err := fresh.Apply(Update{
		Messages:            input.Messages,
		InitialUserMessage:  input.InitialUserMessage,
		ExistingHTMLContent: input.ExistingHTMLContent,
	})
	if err != nil {
		return s, fmt.Errorf("apply input: %w", err)
	}
	return merged, nil
}

func (s State) normalized() State {
	if s.Messages == nil {
		s.Messages = []chat.Message{}
	}
	return s
}
