package ports

import (
	"context"
	"time"

	"webchat-bridge/internal/entity"
)

// ChatSession is the single automated browser session consumed by the
// arbiter. Its operations are not reentrant; callers serialize access.
type ChatSession interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	NavigateToTarget(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	Submit(ctx context.Context, prompt string) error
	StartNewConversation(ctx context.Context) error
	AwaitReply(ctx context.Context, deadline time.Duration) (string, error)
	CaptureDiagnostic(ctx context.Context) (string, error)
	IsReady() bool
	State() entity.SessionState
}
