package usecase

import (
	"webchat-bridge/internal/usecase/adapters"
)

type serviceFactory struct {
	deps Params
}

func newServiceFactory(deps Params) *serviceFactory {
	return &serviceFactory{
		deps: deps,
	}
}

func (f *serviceFactory) CreateChatService() adapters.ChatService {
	return NewChatService(ChatServiceParams{
		Config:  f.deps.Config,
		Logger:  f.deps.Logger,
		Session: f.deps.Session,
	})
}
