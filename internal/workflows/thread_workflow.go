package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

type ThreadInput struct {
	ThreadID string
}

type ThreadResult struct {
	Status string
}

// TurnInput is the payload of the message signal.
type TurnInput struct {
	RequestID string
	ThreadID  string
	Agent     string
	Message   string
}

type TurnFailureInput struct {
	RequestID string
	ThreadID  string
	Error     string
}

// ThreadWorkflow serializes the turns of one thread: each message signal
// runs to completion before the next is received.
func ThreadWorkflow(ctx workflow.Context, input ThreadInput) (ThreadResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 20 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	logger := workflow.GetLogger(ctx)
	messageCh := workflow.GetSignalChannel(ctx, MessageSignalName)

	runTurn := func(turn TurnInput) {
		if turn.ThreadID == "" {
			turn.ThreadID = input.ThreadID
		}
		logger.Info("received turn", "thread_id", turn.ThreadID, "request_id", turn.RequestID, "agent", turn.Agent)

		if err := workflow.ExecuteActivity(ctx, "RunTurn", turn).Get(ctx, nil); err != nil {
			logger.Error("turn activity failed", "error", err)
			failureInput := TurnFailureInput{
				RequestID: turn.RequestID,
				ThreadID:  turn.ThreadID,
				Error:     activityErrorMessage(err),
			}
			if failureErr := workflow.ExecuteActivity(ctx, "HandleTurnFailure", failureInput).Get(ctx, nil); failureErr != nil {
				logger.Error("failed to report turn failure", "error", failureErr)
			}
		}
	}

	for {
		selector := workflow.NewSelector(ctx)
		selector.AddReceive(messageCh, func(c workflow.ReceiveChannel, more bool) {
			var turn TurnInput
			c.Receive(ctx, &turn)
			runTurn(turn)
		})
		selector.Select(ctx)

		if ctx.Err() != nil {
			return ThreadResult{Status: "cancelled"}, nil
		}

		if workflow.GetInfo(ctx).GetContinueAsNewSuggested() {
			// Buffered signals do not carry over to the next run.
			for {
				var turn TurnInput
				if !messageCh.ReceiveAsync(&turn) {
					break
				}
				runTurn(turn)
			}
			logger.Info("continuing as new", "thread_id", input.ThreadID)
			return ThreadResult{}, workflow.NewContinueAsNewError(ctx, ThreadWorkflow, input)
		}
	}
}

// activityErrorMessage strips the activity wrapper so clients see the
// error the turn itself returned.
func activityErrorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
