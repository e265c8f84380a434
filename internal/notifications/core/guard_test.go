package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"courier/internal/types"
)

func TestGuardedSend(t *testing.T) {
	req := SendRequest{Message: &types.Message{ID: "m1"}}

	tests := []struct {
		name     string
		response func() (SendStatus, error)
		want     Outcome
	}{
		{
			name:     "success",
			response: func() (SendStatus, error) { return SendStatus{Success: true, ProviderID: "p-9"}, nil },
			want:     Outcome{Success: true, ProviderID: "p-9"},
		},
		{
			name:     "reported failure",
			response: func() (SendStatus, error) { return SendStatus{Message: "bounced"}, nil },
			want:     Outcome{Message: "Failed to send notification: bounced"},
		},
		{
			name:     "error",
			response: func() (SendStatus, error) { return SendStatus{}, errors.New("timeout") },
			want:     Outcome{Message: "Exception while sending notification: timeout"},
		},
		{
			name:     "panic",
			response: func() (SendStatus, error) { panic(errors.New("index out of range")) },
			want:     Outcome{Message: "Exception while sending notification: index out of range"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newEmailAdapter()
			a.responses = append(a.responses, tt.response)
			got := guardedSend(context.Background(), a, req, &mockLogger{})
			assert.Equal(t, tt.want, got)
		})
	}
}
