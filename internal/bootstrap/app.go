package bootstrap

import (
	"time"

	"webchat-bridge/internal/browser"
	"webchat-bridge/internal/config"
	"webchat-bridge/internal/human"
	"webchat-bridge/internal/ports"
	"webchat-bridge/internal/server"
	"webchat-bridge/internal/usecase"

	"go.uber.org/fx"
)

func NewApp() *fx.App {
	return fx.New(
		fx.Provide(
			config.GetConfig,
			newSelectors,
			newPacer,
			newLogger,
			newTraceProvider,

			fx.Annotate(browser.NewManager, fx.As(new(ports.ChatSession))),

			usecase.NewUsecase,

			server.NewServer,
		),

		fx.Invoke(
			runServer,
		),

		// Playwright may download browser binaries on first launch.
		fx.StartTimeout(120*time.Second),
	)
}

func newSelectors(conf *config.Config) (*config.SelectorSet, error) {
	return config.LoadSelectors(conf.AppConfig.SelectorsPath)
}

func newPacer(conf *config.Config) *human.Pacer {
	return human.NewPacer(conf.HumanConfig)
}
