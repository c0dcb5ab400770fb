package server

import "time"

// Version reported by /health.
const Version = "1.0.0"

const (
	minMessageLength = 1
	maxMessageLength = 100000
	minTimeoutMS     = 1000
	maxTimeoutMS     = 300000
)

type ChatRequest struct {
	Message         string `json:"message"`
	NewConversation bool   `json:"new_conversation,omitempty"`
	TimeoutMS       int    `json:"timeout_ms,omitempty"`
}

type ChatResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message,omitempty"`
	Error          string  `json:"error,omitempty"`
	Status         string  `json:"status"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	PromptLength   int     `json:"prompt_length,omitempty"`
	ResponseLength int     `json:"response_length,omitempty"`
}

type StatusResponse struct {
	Success       bool    `json:"success"`
	BrowserStatus string  `json:"browser_status"`
	LoggedIn      bool    `json:"logged_in"`
	Headless      bool    `json:"headless"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type SessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ScreenshotResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
