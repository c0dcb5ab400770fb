package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"webchat-bridge/internal/config"
	"webchat-bridge/internal/entity"
	"webchat-bridge/internal/human"
	"webchat-bridge/pkg/apperr"
	"webchat-bridge/pkg/logg"
	"webchat-bridge/pkg/tracing"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionManagerName = "SessionManager"
	sessionTracer      = "browser.session"
)

// Manager owns the single automated browser session: one persistent
// Chromium profile, one page, one conversation at a time. Operations
// are not reentrant; the arbiter serializes access.
type Manager struct {
	config    *config.Config
	selectors *config.SelectorSet
	logger    *zap.Logger
	tracer    trace.Tracer
	pacer     *human.Pacer
	stealth   StealthModule

	playwright     *playwright.Playwright
	browserContext playwright.BrowserContext
	page           playwright.Page
	ready          atomic.Bool

	stateMu sync.Mutex
	state   entity.SessionState
}

type Params struct {
	fx.In

	Config    *config.Config
	Selectors *config.SelectorSet
	Pacer     *human.Pacer
	Logger    *zap.Logger
}

func NewManager(params Params) *Manager {
	logger := params.Logger.With(zap.String(logg.Layer, sessionManagerName))

	var stealth StealthModule
	if params.Config.StealthConfig.Enabled {
		stealth = SelectStealthModule(params.Config.StealthConfig.ScriptPath, logger)
	}

	return &Manager{
		config:    params.Config,
		selectors: params.Selectors,
		logger:    logger,
		tracer:    otel.Tracer(sessionTracer),
		pacer:     params.Pacer,
		stealth:   stealth,
		state:     entity.SessionUninitialized,
	}
}

func (m *Manager) setState(state entity.SessionState) {
	m.stateMu.Lock()
	m.state = state
	m.stateMu.Unlock()
}

func (m *Manager) State() entity.SessionState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	return m.state
}

func (m *Manager) IsReady() bool {
	return m.ready.Load()
}

// Launch starts the persistent browsing profile and applies the evasion
// layer. The profile directory retains cookies and local storage across
// restarts, so a prior sign-in survives.
func (m *Manager) Launch(ctx context.Context) (err error) {
	const op = "Launch"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Launching browser...")
	step.AddEvent("installing playwright")

	if err = playwright.Install(); err != nil {
		m.setState(entity.SessionError)

		return apperr.Wrap(op, apperr.CodeLaunchFailed, err, map[string]any{
			apperr.MetaReason: "playwright_install_failed",
			apperr.MetaStage:  apperr.StageStartup,
		})
	}

	step.AddEvent("starting playwright")

	pw, err := playwright.Run()
	if err != nil {
		m.setState(entity.SessionError)

		return apperr.Wrap(op, apperr.CodeLaunchFailed, err, map[string]any{
			apperr.MetaReason: "playwright_start_failed",
			apperr.MetaStage:  apperr.StageStartup,
		})
	}
	m.playwright = pw

	userDataDir := m.config.BrowserConfig.UserDataDir

	if err = os.MkdirAll(userDataDir, 0755); err != nil {
		m.setState(entity.SessionError)

		return apperr.Wrap(op, apperr.CodeLaunchFailed, err, map[string]any{
			apperr.MetaReason: "mkdir_failed",
			apperr.MetaStage:  apperr.StageStartup,
		})
	}

	args := []string{
		"--disable-blink-features=AutomationControlled",
		"--no-sandbox",
		"--disable-dev-shm-usage",
	}

	if m.config.StealthConfig.HideWebdriver {
		args = append(args, "--disable-automation")
	}

	options := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(m.config.BrowserConfig.Headless),
		SlowMo:   playwright.Float(float64(m.config.BrowserConfig.SlowMo)),
		Viewport: &playwright.Size{
			Width:  m.config.BrowserConfig.ViewportWidth,
			Height: m.config.BrowserConfig.ViewportHeight,
		},
		UserAgent:         playwright.String(m.config.UserAgent()),
		AcceptDownloads:   playwright.Bool(true),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(m.config.StealthConfig.Locale),
		TimezoneId:        playwright.String(m.config.StealthConfig.Timezone),
		Args:              args,
		IgnoreDefaultArgs: []string{"--enable-automation"},
	}

	step.AddEvent("launching persistent context")

	browserContext, err := m.playwright.Chromium.LaunchPersistentContext(userDataDir, options)
	if err != nil {
		m.setState(entity.SessionError)

		return apperr.Wrap(op, apperr.CodeLaunchFailed, err, map[string]any{
			apperr.MetaReason: "launch_persistent_failed",
			apperr.MetaStage:  apperr.StageStartup,
		})
	}

	m.browserContext = browserContext

	pages := browserContext.Pages()

	if len(pages) > 0 {
		m.page = pages[0]
		logger.Info("Using existing page")
	} else {
		page, err := browserContext.NewPage()
		if err != nil {
			m.setState(entity.SessionError)

			return apperr.Wrap(op, apperr.CodeLaunchFailed, err, map[string]any{
				apperr.MetaReason: "new_page_failed",
				apperr.MetaStage:  apperr.StageStartup,
			})
		}
		m.page = page
		logger.Info("Created new page")
	}

	if m.stealth != nil {
		step.AddEvent("applying stealth module")

		if err := m.stealth.Apply(m.page); err != nil {
			logger.Warn("Failed to apply stealth module",
				zap.String("module", m.stealth.Name()), zap.Error(err))
		} else {
			logger.Info("Stealth module applied", zap.String("module", m.stealth.Name()))
		}
	}

	m.ready.Store(true)
	logger.Info("Browser launched successfully")

	return nil
}

func (m *Manager) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Closing browser session...")

	if m.browserContext != nil {
		if err := m.browserContext.Close(); err != nil {
			logger.Warn("Failed to close context", zap.Error(err))
		}
	}

	if m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "playwright_stop_failed",
			})
		}
	}

	m.ready.Store(false)
	m.setState(entity.SessionClosed)
	logger.Info("Browser closed")

	return nil
}

func (m *Manager) ensurePageActive() error {
	if m.browserContext == nil {
		return fmt.Errorf("browser context is nil")
	}

	if m.page != nil && !m.page.IsClosed() {
		return nil
	}

	m.logger.Info("Page closed, reconnecting to active page...")

	for _, p := range m.browserContext.Pages() {
		if !p.IsClosed() {
			m.page = p
			m.logger.Info("Reconnected to existing page")

			return nil
		}
	}

	page, err := m.browserContext.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create new page: %w", err)
	}

	m.page = page
	m.logger.Info("Created new page")

	return nil
}

// NavigateToTarget loads the chat application's entry URL and waits for
// network-idle settling before the session is considered usable.
func (m *Manager) NavigateToTarget(ctx context.Context) (err error) {
	const op = "NavigateToTarget"
	url := m.selectors.BaseURL()
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if !m.ready.Load() {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(); err != nil {
		return apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	m.setState(entity.SessionNavigating)
	step.AddEvent("navigating to target")

	_, err = m.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(m.config.BrowserConfig.Timeout)),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})

	if err != nil {
		m.setState(entity.SessionError)

		return apperr.Wrap(op, apperr.CodeNavigation, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	time.Sleep(m.pacer.ActionDelay())
	m.setState(entity.SessionIdle)
	step.AddEvent("navigation completed")

	return nil
}

// IsAuthenticated probes for the signed-in UI marker. Any probe failure
// reads as "not logged in"; signing in is the operator's job, done
// manually in the persistent profile.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	if !m.ready.Load() || m.page == nil {
		return false
	}

	for _, selector := range m.selectors.Chain(config.ElementLoggedIn) {
		element, err := m.page.QuerySelector(selector)
		if err != nil {
			continue
		}

		if element != nil {
			return true
		}
	}

	return false
}

// firstMatch resolves a logical element through its selector fallback
// chain and returns the first present element.
func (m *Manager) firstMatch(name string) (playwright.ElementHandle, string) {
	return resolveChain(m.selectors.Chain(name), func(selector string) (playwright.ElementHandle, error) {
		return m.page.QuerySelector(selector)
	})
}

// resolveChain walks an ordered selector fallback chain and returns the
// first element that resolves, along with the selector that found it.
func resolveChain(chain []string, query func(string) (playwright.ElementHandle, error)) (playwright.ElementHandle, string) {
	for _, selector := range chain {
		element, err := query(selector)
		if err != nil || element == nil {
			continue
		}

		return element, selector
	}

	return nil, ""
}

// Submit types the prompt into the input surface with human-like cadence
// and activates the send control, falling back to a keyboard submit when
// no explicit control resolves.
func (m *Manager) Submit(ctx context.Context, prompt string) (err error) {
	const op = "Submit"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op,
		attribute.Int("prompt_length", len(prompt)))
	defer func() {
		step.End(err)
	}()

	if !m.ready.Load() {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(); err != nil {
		return apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	m.setState(entity.SessionSubmitting)
	logger.Info("Submitting prompt", zap.Int("length", len(prompt)))

	input, selector := m.firstMatch(config.ElementInput)
	if input == nil {
		m.setState(entity.SessionIdle)

		return apperr.Wrap(op, apperr.CodeInputNotFound, nil, map[string]any{
			apperr.MetaReason:  "input_surface_not_found",
			apperr.MetaStage:   apperr.StageSubmit,
			apperr.MetaElement: config.ElementInput,
		})
	}

	step.AddEvent("input surface resolved", attribute.String("selector", selector))

	if err := input.Click(); err != nil {
		m.setState(entity.SessionIdle)

		return apperr.Wrap(op, apperr.CodeInputNotFound, err, map[string]any{
			apperr.MetaReason:   "input_focus_failed",
			apperr.MetaStage:    apperr.StageSubmit,
			apperr.MetaSelector: selector,
		})
	}

	time.Sleep(m.pacer.Between(100*time.Millisecond, 300*time.Millisecond))

	if err := m.typeLikeHuman(prompt); err != nil {
		m.setState(entity.SessionIdle)

		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "typing_failed",
			apperr.MetaStage:  apperr.StageSubmit,
		})
	}

	time.Sleep(m.pacer.Between(300*time.Millisecond, 600*time.Millisecond))

	step.AddEvent("activating send control")

	if send, _ := m.firstMatch(config.ElementSend); send != nil {
		err = send.Click()
	} else {
		err = m.page.Keyboard().Press("Enter")
	}

	if err != nil {
		m.setState(entity.SessionIdle)

		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "send_failed",
			apperr.MetaStage:  apperr.StageSubmit,
		})
	}

	logger.Info("Prompt submitted")

	return nil
}

func (m *Manager) typeLikeHuman(text string) error {
	keyboard := m.page.Keyboard()

	for _, r := range text {
		if err := keyboard.Type(string(r)); err != nil {
			return err
		}

		time.Sleep(m.pacer.KeystrokeDelay())

		if r == ' ' {
			if pause, ok := m.pacer.WordPause(); ok {
				time.Sleep(pause)
			}
		}
	}

	m.logger.Debug("Typed prompt with human-like timing", zap.Int("characters", len(text)))

	return nil
}

// AwaitReply drives the response-ready detector until the reply is
// extracted or the deadline expires.
func (m *Manager) AwaitReply(ctx context.Context, deadline time.Duration) (text string, err error) {
	const op = "AwaitReply"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op,
		attribute.Int64("deadline_ms", deadline.Milliseconds()))
	defer func() {
		step.End(err)
	}()

	if !m.ready.Load() {
		return "", apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	m.setState(entity.SessionAwaitingResponse)
	defer m.setState(entity.SessionIdle)

	watcher := NewWatcher(
		m,
		time.Duration(m.config.TimingConfig.PollIntervalMS)*time.Millisecond,
		time.Duration(m.config.TimingConfig.SettleMS)*time.Millisecond,
		logger,
	)

	text, err = watcher.Await(ctx, deadline)
	if err != nil {
		return "", err
	}

	logger.Info("Reply received", zap.Int("length", len(text)))

	return text, nil
}

// GenerationInProgress implements ReplyProbe against the live page.
func (m *Manager) GenerationInProgress(ctx context.Context) bool {
	if m.page == nil {
		return false
	}

	element, _ := m.firstMatch(config.ElementGenerating)

	return element != nil
}

// LatestReply implements ReplyProbe: the text of the newest assistant
// message container.
func (m *Manager) LatestReply(ctx context.Context) (string, error) {
	if m.page == nil {
		return "", fmt.Errorf("page is nil")
	}

	var containers []playwright.ElementHandle

	for _, selector := range m.selectors.Chain(config.ElementMessage) {
		found, err := m.page.QuerySelectorAll(selector)
		if err != nil {
			continue
		}

		if len(found) > 0 {
			containers = found

			break
		}
	}

	if len(containers) == 0 {
		return "", fmt.Errorf("no message container found")
	}

	last := containers[len(containers)-1]

	for _, selector := range m.selectors.Chain(config.ElementMessageContent) {
		content, err := last.QuerySelector(selector)
		if err != nil || content == nil {
			continue
		}

		text, err := content.InnerText()
		if err != nil {
			return "", fmt.Errorf("read message content: %w", err)
		}

		return text, nil
	}

	// Some replies render without the content wrapper; fall back to the
	// container's own text.
	text, err := last.InnerText()
	if err != nil {
		return "", fmt.Errorf("read message container: %w", err)
	}

	return text, nil
}

// StartNewConversation activates the "new chat" affordance, degrading
// to a full re-navigation when the control is absent or the click
// fails. Never fatal.
func (m *Manager) StartNewConversation(ctx context.Context) (err error) {
	const op = "StartNewConversation"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if !m.ready.Load() {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(); err != nil {
		return apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	if element, selector := m.firstMatch(config.ElementNewChat); element != nil {
		if clickErr := element.Click(); clickErr == nil {
			time.Sleep(m.pacer.ActionDelay())
			logger.Info("Started new chat", zap.String(logg.Selector, selector))

			return nil
		}

		logger.Warn("New chat control click failed, re-navigating")
	}

	step.AddEvent("falling back to re-navigation")

	return m.NavigateToTarget(ctx)
}

// CaptureDiagnostic persists a screenshot of the current UI state for
// failure diagnosis and returns its path.
func (m *Manager) CaptureDiagnostic(ctx context.Context) (path string, err error) {
	const op = "CaptureDiagnostic"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if !m.ready.Load() {
		return "", apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(); err != nil {
		return "", apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	dir := m.config.BrowserConfig.ScreenshotDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "mkdir_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	path = filepath.Join(dir, fmt.Sprintf("diagnostic_%s.png", uuid.NewString()))

	_, err = m.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(false),
	})

	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "screenshot_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	logger.Info("Diagnostic screenshot saved", zap.String(logg.Path, path))

	return path, nil
}
