package browser

import (
	"os"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// StealthModule disguises automation signals on a page before the
// target site's scripts run. Applied once per page load.
type StealthModule interface {
	Name() string
	Apply(page playwright.Page) error
}

// builtinStealthScripts are the fingerprint overrides injected when no
// external script bundle is available: webdriver flag, chrome runtime,
// plugin list, languages and the notification-permission probe.
var builtinStealthScripts = []string{
	`Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined
	});`,
	`window.chrome = {
		runtime: {},
		loadTimes: function() {},
		csi: function() {},
		app: {}
	};`,
	`Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5]
	});`,
	`Object.defineProperty(navigator, 'languages', {
		get: () => ['en-US', 'en']
	});`,
	`const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications' ?
		Promise.resolve({ state: Notification.permission }) :
		originalQuery(parameters)
	);`,
}

type bundleStealthModule struct {
	path   string
	logger *zap.Logger
}

type builtinStealthModule struct {
	logger *zap.Logger
}

// SelectStealthModule picks the evasion variant at startup: the script
// bundle on disk when it exists, the built-in overrides otherwise.
func SelectStealthModule(scriptPath string, logger *zap.Logger) StealthModule {
	if scriptPath != "" {
		if _, err := os.Stat(scriptPath); err == nil {
			logger.Debug("Using stealth script bundle", zap.String("path", scriptPath))

			return &bundleStealthModule{path: scriptPath, logger: logger}
		}

		logger.Debug("Stealth script bundle not found, falling back to built-in scripts",
			zap.String("path", scriptPath))
	}

	return &builtinStealthModule{logger: logger}
}

func (m *bundleStealthModule) Name() string {
	return "bundle"
}

func (m *bundleStealthModule) Apply(page playwright.Page) error {
	if err := page.AddInitScript(playwright.Script{Path: playwright.String(m.path)}); err != nil {
		return err
	}

	m.logger.Debug("Stealth bundle applied")

	return nil
}

func (m *builtinStealthModule) Name() string {
	return "builtin"
}

func (m *builtinStealthModule) Apply(page playwright.Page) error {
	for _, script := range builtinStealthScripts {
		if err := page.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
			return err
		}
	}

	m.logger.Debug("Built-in stealth scripts applied")

	return nil
}
