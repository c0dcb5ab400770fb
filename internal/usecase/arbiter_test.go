package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"webchat-bridge/internal/config"
	"webchat-bridge/internal/entity"
	"webchat-bridge/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSession records the order of session-mutating calls so tests can
// verify that chat cycles never interleave.
type fakeSession struct {
	mu            sync.Mutex
	calls         []string
	currentPrompt string

	ready         bool
	authenticated bool
	state         entity.SessionState

	replyText  string
	replyErr   error
	replyDelay time.Duration

	submitErr  error
	newConvErr error

	screenshotPath string
	screenshotErr  error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		ready:         true,
		authenticated: true,
		state:         entity.SessionIdle,
		replyText:     "pong",
	}
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSession) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

func (f *fakeSession) Launch(context.Context) error { f.record("launch"); return nil }
func (f *fakeSession) Close(context.Context) error  { f.record("close"); return nil }
func (f *fakeSession) IsReady() bool                { return f.ready }
func (f *fakeSession) State() entity.SessionState   { return f.state }
func (f *fakeSession) NavigateToTarget(context.Context) error {
	f.record("navigate")

	return nil
}

func (f *fakeSession) IsAuthenticated(context.Context) bool {
	return f.authenticated
}

func (f *fakeSession) StartNewConversation(context.Context) error {
	f.record("new_conversation")

	return f.newConvErr
}

func (f *fakeSession) Submit(_ context.Context, prompt string) error {
	f.mu.Lock()
	f.currentPrompt = prompt
	f.mu.Unlock()
	f.record("submit:" + prompt)

	return f.submitErr
}

func (f *fakeSession) AwaitReply(_ context.Context, _ time.Duration) (string, error) {
	time.Sleep(f.replyDelay)

	f.mu.Lock()
	prompt := f.currentPrompt
	f.mu.Unlock()
	f.record("await:" + prompt)

	return f.replyText, f.replyErr
}

func (f *fakeSession) CaptureDiagnostic(context.Context) (string, error) {
	f.record("screenshot")

	return f.screenshotPath, f.screenshotErr
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig: &config.AppConfig{LogLevel: "info"},
		ServerConfig: &config.ServerConfig{
			Host: "127.0.0.1",
			Port: 0,
		},
		BrowserConfig: &config.BrowserConfig{Headless: true},
		StealthConfig: &config.StealthConfig{},
		HumanConfig:   &config.HumanConfig{},
		RateLimitConfig: &config.RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 10,
			MinIntervalMS:     0,
		},
		TimingConfig: &config.TimingConfig{
			ResponseTimeoutMS: 2000,
			PollIntervalMS:    50,
			SettleMS:          50,
		},
	}
}

func newTestService(conf *config.Config, session *fakeSession) *ChatService {
	return NewChatService(ChatServiceParams{
		Config:  conf,
		Logger:  zap.NewNop(),
		Session: session,
	})
}

func promptRequest(message string) entity.PromptRequest {
	return entity.PromptRequest{
		ID:         uuid.New(),
		Message:    message,
		ReceivedAt: time.Now(),
	}
}

func TestHandleChatSuccess(t *testing.T) {
	session := newFakeSession()
	svc := newTestService(testConfig(), session)

	outcome := svc.HandleChat(context.Background(), promptRequest("ping"))

	require.True(t, outcome.Success)
	assert.Equal(t, entity.StatusSuccess, outcome.Status)
	assert.Equal(t, "pong", outcome.Message)
	assert.Equal(t, 4, outcome.PromptLength)
	assert.Equal(t, 4, outcome.ResponseLength)
	assert.Empty(t, outcome.Error)
	assert.Equal(t, []string{"submit:ping", "await:ping"}, session.recorded())
}

func TestHandleChatSerializesCycles(t *testing.T) {
	session := newFakeSession()
	session.replyDelay = 50 * time.Millisecond
	svc := newTestService(testConfig(), session)

	var wg sync.WaitGroup

	for _, msg := range []string{"first", "second"} {
		wg.Add(1)

		go func(msg string) {
			defer wg.Done()

			outcome := svc.HandleChat(context.Background(), promptRequest(msg))
			assert.True(t, outcome.Success)
		}(msg)
	}

	wg.Wait()

	calls := session.recorded()
	require.Len(t, calls, 4)

	// Each submit must be immediately followed by the await of the same
	// request; interleaving would pair an await with the wrong prompt.
	for i := 0; i < len(calls); i += 2 {
		submit := calls[i]
		await := calls[i+1]
		require.Contains(t, submit, "submit:")
		require.Equal(t, "await:"+submit[len("submit:"):], await)
	}
}

func TestHandleChatRateLimitQuota(t *testing.T) {
	conf := testConfig()
	conf.RateLimitConfig.RequestsPerMinute = 2

	session := newFakeSession()
	svc := newTestService(conf, session)

	first := svc.HandleChat(context.Background(), promptRequest("one"))
	second := svc.HandleChat(context.Background(), promptRequest("two"))
	require.True(t, first.Success)
	require.True(t, second.Success)

	callsBefore := len(session.recorded())

	third := svc.HandleChat(context.Background(), promptRequest("three"))

	assert.False(t, third.Success)
	assert.Equal(t, entity.StatusRateLimited, third.Status)
	// Rejection happens before any session access.
	assert.Len(t, session.recorded(), callsBefore)
}

func TestHandleChatRateLimitMinInterval(t *testing.T) {
	conf := testConfig()
	conf.RateLimitConfig.MinIntervalMS = 60000

	session := newFakeSession()
	svc := newTestService(conf, session)

	first := svc.HandleChat(context.Background(), promptRequest("one"))
	require.True(t, first.Success)

	second := svc.HandleChat(context.Background(), promptRequest("two"))

	assert.False(t, second.Success)
	assert.Equal(t, entity.StatusRateLimited, second.Status)
	assert.Contains(t, second.Error, "please wait")
}

func TestHandleChatTimeoutClassification(t *testing.T) {
	session := newFakeSession()
	session.replyErr = apperr.WrapErrorWithReason("Await", apperr.CodeTimeout, "response_timeout")
	svc := newTestService(testConfig(), session)

	outcome := svc.HandleChat(context.Background(), promptRequest("ping"))

	assert.False(t, outcome.Success)
	assert.Equal(t, entity.StatusTimeout, outcome.Status)
	assert.Equal(t, "response timeout exceeded", outcome.Error)
	assert.Empty(t, outcome.Message)
}

func TestHandleChatEmptyReplyIsNotSuccess(t *testing.T) {
	session := newFakeSession()
	session.replyText = ""
	svc := newTestService(testConfig(), session)

	outcome := svc.HandleChat(context.Background(), promptRequest("ping"))

	assert.False(t, outcome.Success)
	assert.Equal(t, entity.StatusError, outcome.Status)
	assert.Empty(t, outcome.Message)
	assert.Zero(t, outcome.ResponseLength)
	assert.NotEmpty(t, outcome.Error)
}

func TestHandleChatSubmitFailureClassifiedAsError(t *testing.T) {
	session := newFakeSession()
	session.submitErr = apperr.WrapErrorWithReason("Submit", apperr.CodeInputNotFound, "input_surface_not_found")
	svc := newTestService(testConfig(), session)

	outcome := svc.HandleChat(context.Background(), promptRequest("ping"))

	assert.False(t, outcome.Success)
	assert.Equal(t, entity.StatusError, outcome.Status)
	assert.NotEmpty(t, outcome.Error)
}

func TestHandleChatStartsNewConversationWhenRequested(t *testing.T) {
	session := newFakeSession()
	svc := newTestService(testConfig(), session)

	req := promptRequest("ping")
	req.NewConversation = true

	outcome := svc.HandleChat(context.Background(), req)

	require.True(t, outcome.Success)
	assert.Equal(t, []string{"new_conversation", "submit:ping", "await:ping"}, session.recorded())
}

func TestHandleChatNotReady(t *testing.T) {
	session := newFakeSession()
	session.ready = false
	svc := newTestService(testConfig(), session)

	outcome := svc.HandleChat(context.Background(), promptRequest("ping"))

	assert.False(t, outcome.Success)
	assert.Equal(t, entity.StatusError, outcome.Status)
	assert.Equal(t, "browser not initialized", outcome.Error)
	assert.Empty(t, session.recorded())
}

func TestHandleChatEndToEndPingPong(t *testing.T) {
	session := newFakeSession()
	session.replyDelay = 200 * time.Millisecond
	svc := newTestService(testConfig(), session)

	req := promptRequest("ping")
	req.Timeout = 5 * time.Second

	outcome := svc.HandleChat(context.Background(), req)

	require.True(t, outcome.Success)
	assert.Equal(t, "pong", outcome.Message)
	assert.Equal(t, 4, outcome.ResponseLength)
	assert.GreaterOrEqual(t, outcome.Elapsed, 200*time.Millisecond)
	assert.Less(t, outcome.Elapsed, time.Second)
}

func TestStatusReportsBusyDuringChatCycle(t *testing.T) {
	session := newFakeSession()
	session.replyDelay = 300 * time.Millisecond
	svc := newTestService(testConfig(), session)

	done := make(chan struct{})

	go func() {
		defer close(done)
		svc.HandleChat(context.Background(), promptRequest("slow"))
	}()

	// Give the chat cycle time to take the session lock.
	time.Sleep(100 * time.Millisecond)

	busy := svc.Status(context.Background())
	assert.Equal(t, entity.BrowserBusy, busy.Browser)

	<-done

	idle := svc.Status(context.Background())
	assert.Equal(t, entity.BrowserReady, idle.Browser)
	assert.True(t, idle.LoggedIn)
}

func TestStatusNotInitialized(t *testing.T) {
	session := newFakeSession()
	session.ready = false
	session.state = entity.SessionUninitialized
	svc := newTestService(testConfig(), session)

	snapshot := svc.Status(context.Background())

	assert.False(t, snapshot.Success)
	assert.Equal(t, entity.BrowserNotInitialized, snapshot.Browser)
	assert.False(t, snapshot.LoggedIn)
}

func TestStatusUptimeGrows(t *testing.T) {
	session := newFakeSession()
	svc := newTestService(testConfig(), session)

	first := svc.Status(context.Background())
	time.Sleep(20 * time.Millisecond)
	second := svc.Status(context.Background())

	assert.Greater(t, second.Uptime, first.Uptime)
}

func TestResetSession(t *testing.T) {
	session := newFakeSession()
	svc := newTestService(testConfig(), session)

	require.NoError(t, svc.ResetSession(context.Background()))
	assert.Equal(t, []string{"new_conversation"}, session.recorded())
}

func TestResetSessionNotReady(t *testing.T) {
	session := newFakeSession()
	session.ready = false
	svc := newTestService(testConfig(), session)

	err := svc.ResetSession(context.Background())

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeBrowserNotReady))
}

func TestCaptureDiagnostic(t *testing.T) {
	session := newFakeSession()
	session.screenshotPath = "screenshots/diagnostic_test.png"
	svc := newTestService(testConfig(), session)

	path, err := svc.CaptureDiagnostic(context.Background())

	require.NoError(t, err)
	assert.Equal(t, session.screenshotPath, path)
}

func TestHandleChatDefaultDeadlineApplied(t *testing.T) {
	session := &deadlineRecordingSession{fakeSession: newFakeSession()}
	conf := testConfig()
	conf.TimingConfig.ResponseTimeoutMS = 7000
	svc := NewChatService(ChatServiceParams{
		Config:  conf,
		Logger:  zap.NewNop(),
		Session: session,
	})

	svc.HandleChat(context.Background(), promptRequest("ping"))

	assert.Equal(t, 7*time.Second, session.lastDeadline)
}

type deadlineRecordingSession struct {
	*fakeSession
	lastDeadline time.Duration
}

func (d *deadlineRecordingSession) AwaitReply(ctx context.Context, deadline time.Duration) (string, error) {
	d.lastDeadline = deadline

	return d.fakeSession.AwaitReply(ctx, deadline)
}

func TestHandleChatManyConcurrentCallersAllComplete(t *testing.T) {
	session := newFakeSession()
	session.replyDelay = 10 * time.Millisecond

	conf := testConfig()
	conf.RateLimitConfig.Enabled = false
	svc := newTestService(conf, session)

	const callers = 8

	var wg sync.WaitGroup

	outcomes := make([]entity.ChatOutcome, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			outcomes[i] = svc.HandleChat(context.Background(), promptRequest(fmt.Sprintf("msg-%d", i)))
		}(i)
	}

	wg.Wait()

	for i, outcome := range outcomes {
		assert.True(t, outcome.Success, "caller %d", i)
	}

	calls := session.recorded()
	require.Len(t, calls, callers*2)

	for i := 0; i < len(calls); i += 2 {
		require.Equal(t, "await:"+calls[i][len("submit:"):], calls[i+1])
	}
}
