package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/agents"
	"github.com/vishalm/LlamaBot/internal/events"
	"github.com/vishalm/LlamaBot/internal/relay"
	"github.com/vishalm/LlamaBot/internal/store"
)

// TurnActivities runs agent turns on the worker and reports their events to
// the HTTP service, falling back to the store when it cannot be reached.
type TurnActivities struct {
	runner         relay.Turner
	model          string
	local          *relay.Journal
	llamabotURL    string
	httpClient     *http.Client
	requestTimeout time.Duration
	logger         *zap.Logger
}

func NewTurnActivities(runner relay.Turner, model string, st store.Store, llamabotURL string, logger *zap.Logger) *TurnActivities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnActivities{
		runner:         runner,
		model:          model,
		local:          relay.NewJournal(st, nil, logger),
		llamabotURL:    strings.TrimRight(llamabotURL, "/"),
		httpClient:     &http.Client{},
		requestTimeout: 10 * time.Second,
		logger:         logger,
	}
}

// RunTurn emits the turn's updates and its final event. A failed turn is
// returned to the workflow, which reports it through HandleTurnFailure.
func (a *TurnActivities) RunTurn(ctx context.Context, input TurnInput) error {
	if strings.TrimSpace(input.ThreadID) == "" {
		return errors.New("thread_id required")
	}
	turn := agents.Turn{
		RequestID: input.RequestID,
		ThreadID:  input.ThreadID,
		Agent:     input.Agent,
		Message:   input.Message,
	}
	messages, err := a.runner.Run(ctx, turn, func(event events.Event) {
		_ = a.emitEvent(ctx, event)
	})
	if err != nil {
		return err
	}
	return a.emitEvent(ctx, relay.FinalEvent(turn, a.model, messages))
}

func (a *TurnActivities) HandleTurnFailure(ctx context.Context, input TurnFailureInput) error {
	if strings.TrimSpace(input.ThreadID) == "" {
		return errors.New("thread_id required")
	}
	detail := strings.TrimSpace(input.Error)
	if detail == "" {
		detail = "unknown workflow activity error"
	}
	turn := agents.Turn{RequestID: input.RequestID, ThreadID: input.ThreadID}
	return a.emitEvent(ctx, relay.ErrorEvent(turn, errors.New(detail)))
}

func (a *TurnActivities) emitEvent(ctx context.Context, event events.Event) error {
	err := a.postEvent(ctx, event)
	if err == nil {
		return nil
	}
	a.logger.Debug("event post failed, recording locally", zap.String("thread_id", event.ThreadID), zap.Error(err))
	_, err = a.local.Record(ctx, event)
	return err
}

func (a *TurnActivities) postEvent(ctx context.Context, event events.Event) error {
	if a.llamabotURL == "" {
		return errors.New("llamabot url not configured")
	}
	endpoint := fmt.Sprintf("%s/threads/%s/events", a.llamabotURL, url.PathEscape(event.ThreadID))
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	requestCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("event ingest failed: %s", resp.Status)
	}
	return nil
}
