package bot

import (
	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/guardbot/internal/db"
	"github.com/iamwavecut/guardbot/internal/telegram"
)

type ServiceBot interface {
	GetBot() *api.BotAPI
	GetOps() *telegram.Operations
}

type ServiceDB interface {
	GetDB() db.Client
}

type Service interface {
	ServiceBot
	ServiceDB
}

type service struct {
	bot *api.BotAPI
	ops *telegram.Operations
	db  db.Client
}

func NewService(bot *api.BotAPI, db db.Client) *service {
	return &service{
		bot: bot,
		ops: telegram.NewOperations(bot),
		db:  db,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetOps() *telegram.Operations {
	return s.ops
}

func (s *service) GetDB() db.Client {
	return s.db
}
