package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
)

func TestNewServiceDefaultsTaskQueue(t *testing.T) {
	service := NewService(mocks.NewClient(t), "")
	require.Equal(t, "llamabot-turns", service.taskQueue)
}

func TestStartTurn_SignalsWithStart(t *testing.T) {
	mockClient := mocks.NewClient(t)
	workflowRun := mocks.NewWorkflowRun(t)
	input := TurnInput{RequestID: "req-1", ThreadID: "5", Agent: "write_html_agent", Message: "hello"}
	taskQueue := "llamabot-turns-test"

	mockClient.On(
		"SignalWithStartWorkflow",
		mock.Anything,
		"thread:5",
		MessageSignalName,
		input,
		mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
			return opts.ID == "thread:5" && opts.TaskQueue == taskQueue
		}),
		mock.Anything,
		ThreadInput{ThreadID: "5"},
	).Return(workflowRun, nil)

	service := NewService(mockClient, taskQueue)
	require.NoError(t, service.StartTurn(context.Background(), input))
}

func TestStartTurn_Error(t *testing.T) {
	mockClient := mocks.NewClient(t)
	expectedErr := errors.New("temporal unavailable")

	mockClient.On(
		"SignalWithStartWorkflow",
		mock.Anything,
		"thread:9",
		MessageSignalName,
		mock.Anything,
		mock.Anything,
		mock.Anything,
		mock.Anything,
	).Return((*mocks.WorkflowRun)(nil), expectedErr)

	service := NewService(mockClient, "llamabot-turns")
	err := service.StartTurn(context.Background(), TurnInput{ThreadID: "9"})
	require.ErrorIs(t, err, expectedErr)
}

func TestCancelThread(t *testing.T) {
	mockClient := mocks.NewClient(t)
	mockClient.On("CancelWorkflow", mock.Anything, "thread:5", "").Return(nil)

	service := NewService(mockClient, "llamabot-turns")
	require.NoError(t, service.CancelThread(context.Background(), "5"))
}

func TestCancelThread_Error(t *testing.T) {
	mockClient := mocks.NewClient(t)
	expectedErr := errors.New("workflow not found")
	mockClient.On("CancelWorkflow", mock.Anything, "thread:missing", "").Return(expectedErr)

	service := NewService(mockClient, "llamabot-turns")
	require.ErrorIs(t, service.CancelThread(context.Background(), "missing"), expectedErr)
}

func TestCheckHealth(t *testing.T) {
	mockClient := mocks.NewClient(t)
	mockClient.On("CheckHealth", mock.Anything, mock.Anything).Return(&client.CheckHealthResponse{}, nil).Once()
	mockClient.On("CheckHealth", mock.Anything, mock.Anything).Return((*client.CheckHealthResponse)(nil), errors.New("connection refused")).Once()

	service := NewService(mockClient, "llamabot-turns")
	require.NoError(t, service.CheckHealth(context.Background()))
	require.EqualError(t, service.CheckHealth(context.Background()), "connection refused")
}
