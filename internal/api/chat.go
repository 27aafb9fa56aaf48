package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/agents"
	"github.com/vishalm/LlamaBot/internal/relay"
	"github.com/vishalm/LlamaBot/internal/workflows"
)

type chatMessageRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
	Agent    string `json:"agent"`
}

func (s *Server) chatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}
	turn := agents.Turn{
		RequestID: uuid.NewString(),
		ThreadID:  strings.TrimSpace(req.ThreadID),
		Agent:     strings.TrimSpace(req.Agent),
		Message:   req.Message,
	}
	if turn.ThreadID == "" {
		turn.ThreadID = s.cfg.DefaultThreadID
	}
	if turn.Agent == "" {
		turn.Agent = s.cfg.DefaultAgent
	}

	w.Header().Set("Content-Type", relay.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	stream := relay.NewStream(w, s.journal)
	logger := s.logger.With(zap.String("thread_id", turn.ThreadID), zap.String("request_id", turn.RequestID))
	var err error
	if s.workflows != nil {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		sub := s.broker.Subscribe(ctx, turn.ThreadID)
		err = relay.RunRemote(ctx, stream, sub, turn, s.cfg.LLMModel, s.cfg.TurnTimeout, func(ctx context.Context) error {
			return s.workflows.StartTurn(ctx, workflows.TurnInput{
				RequestID: turn.RequestID,
				ThreadID:  turn.ThreadID,
				Agent:     turn.Agent,
				Message:   turn.Message,
			})
		})
	} else {
		err = relay.RunInline(r.Context(), stream, s.runner, turn, s.cfg.LLMModel)
	}
	if err != nil {
		logger.Warn("chat stream ended early", zap.Error(err))
	}
}
