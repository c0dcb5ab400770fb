package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"webchat-bridge/internal/config"
	"webchat-bridge/internal/entity"
	"webchat-bridge/internal/ports"
	"webchat-bridge/pkg/apperr"
	"webchat-bridge/pkg/logg"
	"webchat-bridge/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	chatServiceName = "ChatService"
	chatTracer      = "usecase.chat"
)

// ChatService arbitrates concurrent callers against the single browser
// session: admission control up front, then at most one submit-and-wait
// cycle in flight. The mutex covers only session-mutating operations so
// status and health checks stay responsive.
type ChatService struct {
	config  *config.Config
	logger  *zap.Logger
	session ports.ChatSession
	tracer  trace.Tracer
	limiter *rateLimiter

	sessionMu sync.Mutex
	startedAt time.Time
	lastAuth  atomic.Bool
}

type ChatServiceParams struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Session ports.ChatSession
}

func NewChatService(params ChatServiceParams) *ChatService {
	return &ChatService{
		config:    params.Config,
		logger:    params.Logger.With(zap.String(logg.Layer, chatServiceName)),
		session:   params.Session,
		tracer:    otel.Tracer(chatTracer),
		limiter:   newRateLimiter(params.Config.RateLimitConfig),
		startedAt: time.Now(),
	}
}

// Ready reports whether the session can accept chat requests at all.
func (s *ChatService) Ready() bool {
	return s.session.IsReady()
}

// HandleChat runs one full submit-and-wait cycle. Automation failures
// never propagate past this boundary; every failure kind is converted
// to a structured outcome.
func (s *ChatService) HandleChat(ctx context.Context, req entity.PromptRequest) (outcome entity.ChatOutcome) {
	const op = "HandleChat"
	logger := s.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.RequestID, req.ID.String()),
	)

	var err error

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.Int("prompt_length", utf8.RuneCountInString(req.Message)),
		attribute.Bool("new_conversation", req.NewConversation))
	defer func() {
		step.End(err)
	}()

	started := time.Now()
	promptLength := utf8.RuneCountInString(req.Message)

	fail := func(status entity.ResponseStatus, message string) entity.ChatOutcome {
		return entity.ChatOutcome{
			Success:      false,
			Error:        message,
			Status:       status,
			Elapsed:      time.Since(started),
			PromptLength: promptLength,
		}
	}

	if ok, reason := s.limiter.Check(); !ok {
		logger.Warn("Request rejected by rate limiter", zap.String("reason", reason))
		step.AddEvent("rate limited")

		return fail(entity.StatusRateLimited, reason)
	}

	if !s.session.IsReady() {
		return fail(entity.StatusError, "browser not initialized")
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	step.AddEvent("session lock acquired")

	if req.NewConversation {
		if err = s.session.StartNewConversation(ctx); err != nil {
			logger.Error("Failed to start new conversation", zap.Error(err))

			return fail(entity.StatusError, err.Error())
		}
	}

	if err = s.session.Submit(ctx, req.Message); err != nil {
		logger.Error("Prompt submission failed", zap.Error(err))

		return fail(entity.StatusError, err.Error())
	}

	step.AddEvent("prompt submitted, awaiting reply")

	deadline := req.Timeout
	if deadline <= 0 {
		deadline = time.Duration(s.config.TimingConfig.ResponseTimeoutMS) * time.Millisecond
	}

	text, err := s.session.AwaitReply(ctx, deadline)
	if err != nil {
		if apperr.Is(err, apperr.CodeTimeout) {
			logger.Error("Response timeout", zap.Duration("deadline", deadline))

			return fail(entity.StatusTimeout, "response timeout exceeded")
		}

		logger.Error("Chat cycle failed", zap.Error(err))

		return fail(entity.StatusError, err.Error())
	}

	if text == "" {
		logger.Error("Extracted reply is empty")

		return fail(entity.StatusError, "empty response extracted")
	}

	s.limiter.Record()

	elapsed := time.Since(started)
	logger.Info("Chat cycle completed",
		zap.Duration("elapsed", elapsed),
		zap.Int("response_length", utf8.RuneCountInString(text)))

	return entity.ChatOutcome{
		Success:        true,
		Message:        text,
		Status:         entity.StatusSuccess,
		Elapsed:        elapsed,
		PromptLength:   promptLength,
		ResponseLength: utf8.RuneCountInString(text),
	}
}

// Status is a read-only snapshot. It never queues behind an in-flight
// chat cycle: when the session lock is held it reports busy with the
// last observed authentication state.
func (s *ChatService) Status(ctx context.Context) entity.StatusSnapshot {
	snapshot := entity.StatusSnapshot{
		Headless: s.config.BrowserConfig.Headless,
		Uptime:   time.Since(s.startedAt),
	}

	if !s.session.IsReady() {
		snapshot.Browser = entity.BrowserNotInitialized
		snapshot.SessionState = s.session.State()

		return snapshot
	}

	snapshot.Success = true
	snapshot.SessionState = s.session.State()

	if !s.sessionMu.TryLock() {
		snapshot.Browser = entity.BrowserBusy
		snapshot.LoggedIn = s.lastAuth.Load()

		return snapshot
	}

	authenticated := s.session.IsAuthenticated(ctx)
	s.sessionMu.Unlock()

	s.lastAuth.Store(authenticated)
	snapshot.LoggedIn = authenticated

	if snapshot.SessionState == entity.SessionError {
		snapshot.Browser = entity.BrowserError
		snapshot.Success = false
	} else {
		snapshot.Browser = entity.BrowserReady
	}

	return snapshot
}

// ResetSession forces a new conversation outside of a chat cycle, under
// the same exclusion discipline as HandleChat.
func (s *ChatService) ResetSession(ctx context.Context) (err error) {
	const op = "ResetSession"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if !s.session.IsReady() {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	return s.session.StartNewConversation(ctx)
}

// CaptureDiagnostic persists a screenshot for debugging, serialized
// against chat cycles so it never captures mid-typing state.
func (s *ChatService) CaptureDiagnostic(ctx context.Context) (path string, err error) {
	const op = "CaptureDiagnostic"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if !s.session.IsReady() {
		return "", apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	return s.session.CaptureDiagnostic(ctx)
}
