package core

import (
	"context"
	"fmt"

	"courier/internal/types"
)

// Outcome is the uniform result of one guarded send attempt.
type Outcome struct {
	Success    bool
	Message    string
	ProviderID string
}

// guardedSend calls the adapter and converts every failure mode (reported
// failure, returned error, panic) into an Outcome. Nothing escapes.
func guardedSend(ctx context.Context, adapter ChannelAdapter, req SendRequest, logger types.Logger) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("adapter panicked", "adapter", string(adapter.ID()), "message_id", req.Message.ID, "panic", fmt.Sprint(r))
			out = Outcome{Message: fmt.Sprintf("Exception while sending notification: %v", r)}
		}
	}()

	status, err := adapter.Send(ctx, req)
	if err != nil {
		logger.Error("exception while sending notification", "adapter", string(adapter.ID()), "message_id", req.Message.ID, "error", err)
		return Outcome{Message: "Exception while sending notification: " + err.Error()}
	}
	if !status.Success {
		return Outcome{Message: "Failed to send notification: " + status.Message}
	}
	return Outcome{Success: true, ProviderID: status.ProviderID}
}
