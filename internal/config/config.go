package config

import (
	"fmt"
	"math/rand"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig       *AppConfig
	ServerConfig    *ServerConfig
	BrowserConfig   *BrowserConfig
	StealthConfig   *StealthConfig
	HumanConfig     *HumanConfig
	RateLimitConfig *RateLimitConfig
	TimingConfig    *TimingConfig
}

type AppConfig struct {
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	Debug         bool   `envconfig:"DEBUG" default:"false"`
	SelectorsPath string `envconfig:"SELECTORS_PATH" default:"./config/selectors.yaml"`
}

type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port int    `envconfig:"SERVER_PORT" default:"8765"`
}

type BrowserConfig struct {
	Headless       bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo         int    `envconfig:"BROWSER_SLOW_MO" default:"0"`
	Timeout        int    `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	UserDataDir    string `envconfig:"BROWSER_USER_DATA_DIR" default:"./browser-data"`
	ViewportWidth  int    `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight int    `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"800"`
	ScreenshotDir  string `envconfig:"BROWSER_SCREENSHOT_DIR" default:"./screenshots"`
}

type StealthConfig struct {
	Enabled         bool   `envconfig:"STEALTH_ENABLED" default:"true"`
	HideWebdriver   bool   `envconfig:"STEALTH_HIDE_WEBDRIVER" default:"true"`
	Locale          string `envconfig:"STEALTH_LOCALE" default:"en-US"`
	Timezone        string `envconfig:"STEALTH_TIMEZONE" default:"America/New_York"`
	UserAgentPreset string `envconfig:"STEALTH_UA_PRESET" default:"chrome_windows"`
	UserAgentCustom string `envconfig:"STEALTH_UA_CUSTOM" default:""`
	UserAgentRandom bool   `envconfig:"STEALTH_UA_RANDOM" default:"false"`
	ScriptPath      string `envconfig:"STEALTH_SCRIPT_PATH" default:"./config/stealth.js"`
}

type HumanConfig struct {
	TypingMinDelay       int     `envconfig:"HUMAN_TYPING_MIN_DELAY" default:"30"`
	TypingMaxDelay       int     `envconfig:"HUMAN_TYPING_MAX_DELAY" default:"120"`
	WordPauseProbability float64 `envconfig:"HUMAN_WORD_PAUSE_PROBABILITY" default:"0.1"`
	WordPauseMin         int     `envconfig:"HUMAN_WORD_PAUSE_MIN" default:"100"`
	WordPauseMax         int     `envconfig:"HUMAN_WORD_PAUSE_MAX" default:"300"`
	ActionDelayMin       int     `envconfig:"HUMAN_ACTION_DELAY_MIN" default:"500"`
	ActionDelayMax       int     `envconfig:"HUMAN_ACTION_DELAY_MAX" default:"1500"`
}

type RateLimitConfig struct {
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `envconfig:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"10"`
	MinIntervalMS     int  `envconfig:"RATE_LIMIT_MIN_INTERVAL_MS" default:"3000"`
	BurstLimit        int  `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"3"`
}

type TimingConfig struct {
	ResponseTimeoutMS int `envconfig:"TIMING_RESPONSE_TIMEOUT_MS" default:"120000"`
	PollIntervalMS    int `envconfig:"TIMING_POLL_INTERVAL_MS" default:"500"`
	SettleMS          int `envconfig:"TIMING_SETTLE_MS" default:"500"`
	SelectorTimeoutMS int `envconfig:"TIMING_SELECTOR_TIMEOUT_MS" default:"10000"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	return &conf, nil
}

var userAgentPresets = map[string]string{
	"chrome_windows":  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"chrome_mac":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"edge_windows":    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	"firefox_windows": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"safari_mac":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// UserAgent resolves the effective user agent: explicit custom value
// first, then a random preset if requested, then the named preset.
func (c *Config) UserAgent() string {
	ua := c.StealthConfig

	if ua.UserAgentCustom != "" {
		return ua.UserAgentCustom
	}

	if ua.UserAgentRandom {
		presets := make([]string, 0, len(userAgentPresets))
		for _, v := range userAgentPresets {
			presets = append(presets, v)
		}

		return presets[rand.Intn(len(presets))]
	}

	if preset, ok := userAgentPresets[ua.UserAgentPreset]; ok {
		return preset
	}

	return userAgentPresets["chrome_windows"]
}
