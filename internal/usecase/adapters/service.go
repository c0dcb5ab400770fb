package adapters

import (
	"context"

	"webchat-bridge/internal/entity"
)

// ChatService is the arbiter surface consumed by the transport layer.
type ChatService interface {
	HandleChat(ctx context.Context, req entity.PromptRequest) entity.ChatOutcome
	Status(ctx context.Context) entity.StatusSnapshot
	ResetSession(ctx context.Context) error
	CaptureDiagnostic(ctx context.Context) (string, error)
	Ready() bool
}
