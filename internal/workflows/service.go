package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

const (
	MessageSignalName = "message"
)

type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = "llamabot-turns"
	}
	return &Service{client: client, taskQueue: taskQueue}
}

// StartTurn signals the thread's workflow, starting it if it is not
// running.
func (s *Service) StartTurn(ctx context.Context, input TurnInput) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(input.ThreadID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.SignalWithStartWorkflow(
		ctx,
		workflowID(input.ThreadID),
		MessageSignalName,
		input,
		options,
		ThreadWorkflow,
		ThreadInput{ThreadID: input.ThreadID},
	)
	return err
}

func (s *Service) CancelThread(ctx context.Context, threadID string) error {
	return s.client.CancelWorkflow(ctx, workflowID(threadID), "")
}

func workflowID(threadID string) string {
	return fmt.Sprintf("thread:%s", threadID)
}

func (s *Service) CheckHealth(ctx context.Context) error {
	_, err := s.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	return err
}
