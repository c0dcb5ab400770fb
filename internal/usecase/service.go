package usecase

import (
	"webchat-bridge/internal/config"
	"webchat-bridge/internal/ports"
	"webchat-bridge/internal/usecase/adapters"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	Chat adapters.ChatService
}

type Params struct {
	fx.In

	Logger  *zap.Logger
	Config  *config.Config
	Session ports.ChatSession
}

func NewUsecase(params Params) *Service {
	factory := newServiceFactory(params)

	return &Service{
		Chat: factory.CreateChatService(),
	}
}
