package bootstrap

import (
	"context"

	"webchat-bridge/internal/ports"
	"webchat-bridge/internal/server"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func runServer(lc fx.Lifecycle, httpServer *server.Server, session ports.ChatSession, logger *zap.Logger, _ *sdktrace.TracerProvider) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting webchat bridge...")

			logger.Info("Launching browser...")

			if err := session.Launch(ctx); err != nil {
				logger.Error("Failed to launch browser", zap.Error(err))

				return err
			}

			logger.Info("Navigating to target application...")

			if err := session.NavigateToTarget(ctx); err != nil {
				logger.Error("Failed to reach target application", zap.Error(err))

				return err
			}

			if session.IsAuthenticated(ctx) {
				logger.Info("Session is signed in")
			} else {
				logger.Warn("Session is not signed in; sign in manually in the browser profile")
			}

			if err := httpServer.Start(); err != nil {
				logger.Error("Failed to start HTTP server", zap.Error(err))

				return err
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down webchat bridge...")

			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Error("Failed to stop HTTP server", zap.Error(err))
			}

			if err := session.Close(ctx); err != nil {
				logger.Error("Failed to close browser", zap.Error(err))
			}

			return nil
		},
	})
}
