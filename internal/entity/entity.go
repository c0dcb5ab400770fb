package entity

import (
	"time"

	"github.com/google/uuid"
)

// SessionState tracks the lifecycle of the single browser session.
type SessionState string

const (
	SessionUninitialized    SessionState = "uninitialized"
	SessionNavigating       SessionState = "navigating"
	SessionIdle             SessionState = "idle"
	SessionSubmitting       SessionState = "submitting"
	SessionAwaitingResponse SessionState = "awaiting_response"
	SessionError            SessionState = "error"
	SessionClosed           SessionState = "closed"
)

// ResponseStatus classifies the outcome of one submit-and-wait cycle.
type ResponseStatus string

const (
	StatusSuccess     ResponseStatus = "success"
	StatusTimeout     ResponseStatus = "timeout"
	StatusError       ResponseStatus = "error"
	StatusRateLimited ResponseStatus = "rate_limited"
)

// BrowserStatus is the coarse availability reported by /v1/status.
type BrowserStatus string

const (
	BrowserReady          BrowserStatus = "ready"
	BrowserBusy           BrowserStatus = "busy"
	BrowserError          BrowserStatus = "error"
	BrowserNotInitialized BrowserStatus = "not_initialized"
)

// PromptRequest is one caller-submitted prompt. Immutable once accepted.
type PromptRequest struct {
	ID              uuid.UUID
	Message         string
	NewConversation bool
	Timeout         time.Duration // zero means the configured default
	ReceivedAt      time.Time
}

// ChatOutcome is the result of one submit-and-wait cycle. Produced once
// per request and never mutated after return.
type ChatOutcome struct {
	Success        bool
	Message        string
	Error          string
	Status         ResponseStatus
	Elapsed        time.Duration
	PromptLength   int
	ResponseLength int
}

// StatusSnapshot is a read-only view of the arbiter and session state.
type StatusSnapshot struct {
	Success      bool
	Browser      BrowserStatus
	SessionState SessionState
	LoggedIn     bool
	Headless     bool
	Uptime       time.Duration
}
