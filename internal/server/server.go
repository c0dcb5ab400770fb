package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"webchat-bridge/internal/config"
	"webchat-bridge/internal/entity"
	"webchat-bridge/internal/usecase"
	"webchat-bridge/pkg/logg"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const serverName = "HTTPServer"

// Server exposes the arbiter over a JSON/HTTP surface. It validates
// requests and maps outcomes to transport signals; everything else is
// the arbiter's job.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	usecase    *usecase.Service
	httpServer *http.Server
}

type Params struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Usecase *usecase.Service
}

func NewServer(params Params) *Server {
	s := &Server{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, serverName)),
		usecase: params.Usecase,
	}

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/status", s.handleStatus)
	r.Delete("/v1/session", s.handleResetSession)
	r.Get("/v1/screenshot", s.handleScreenshot)
	r.Get("/health", s.handleHealth)

	return r
}

// Start binds the listener and serves in the background. A failed bind
// is a fatal startup error surfaced to the lifecycle.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.ServerConfig.Host, s.config.ServerConfig.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	s.logger.Info("HTTP server listening", zap.String("addr", addr))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})

		return
	}

	messageLength := utf8.RuneCountInString(req.Message)
	if messageLength < minMessageLength || messageLength > maxMessageLength {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("message length must be %d..%d characters", minMessageLength, maxMessageLength),
		})

		return
	}

	if req.TimeoutMS != 0 && (req.TimeoutMS < minTimeoutMS || req.TimeoutMS > maxTimeoutMS) {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("timeout_ms must be %d..%d", minTimeoutMS, maxTimeoutMS),
		})

		return
	}

	if !s.usecase.Chat.Ready() {
		s.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "browser not initialized"})

		return
	}

	outcome := s.usecase.Chat.HandleChat(r.Context(), entity.PromptRequest{
		ID:              uuid.New(),
		Message:         req.Message,
		NewConversation: req.NewConversation,
		Timeout:         time.Duration(req.TimeoutMS) * time.Millisecond,
		ReceivedAt:      time.Now(),
	})

	if outcome.Status == entity.StatusRateLimited {
		s.writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: outcome.Error})

		return
	}

	s.writeJSON(w, http.StatusOK, ChatResponse{
		Success:        outcome.Success,
		Message:        outcome.Message,
		Error:          outcome.Error,
		Status:         string(outcome.Status),
		ElapsedSeconds: outcome.Elapsed.Seconds(),
		PromptLength:   outcome.PromptLength,
		ResponseLength: outcome.ResponseLength,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.usecase.Chat.Status(r.Context())

	s.writeJSON(w, http.StatusOK, StatusResponse{
		Success:       snapshot.Success,
		BrowserStatus: string(snapshot.Browser),
		LoggedIn:      snapshot.LoggedIn,
		Headless:      snapshot.Headless,
		UptimeSeconds: snapshot.Uptime.Seconds(),
	})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if !s.usecase.Chat.Ready() {
		s.writeJSON(w, http.StatusOK, SessionResponse{
			Success: false,
			Message: "browser not initialized",
		})

		return
	}

	if err := s.usecase.Chat.ResetSession(r.Context()); err != nil {
		s.writeJSON(w, http.StatusOK, SessionResponse{
			Success: false,
			Message: fmt.Sprintf("failed to reset session: %v", err),
		})

		return
	}

	s.writeJSON(w, http.StatusOK, SessionResponse{
		Success: true,
		Message: "session reset, new chat started",
	})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	path, err := s.usecase.Chat.CaptureDiagnostic(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusOK, ScreenshotResponse{Success: false, Error: err.Error()})

		return
	}

	s.writeJSON(w, http.StatusOK, ScreenshotResponse{Success: true, Path: path})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
