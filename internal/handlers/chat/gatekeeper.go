package chat

import (
	"context"
	"fmt"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/bot"
	"github.com/iamwavecut/guardbot/internal/config"
	"github.com/iamwavecut/guardbot/internal/i18n"
	"github.com/iamwavecut/guardbot/internal/moderation"
)

// gatekeeperOps is the outbound slice of the platform the gatekeeper uses.
type gatekeeperOps interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	ChatTitle(ctx context.Context, chatID int64) string
}

// Gatekeeper screens joining members and runs the private verification
// exchange. It sits first in the handler chain.
type Gatekeeper struct {
	ops      gatekeeperOps
	manager  *moderation.Manager
	pipeline *moderation.Pipeline
	cfg      config.Moderation
	lang     string
}

func NewGatekeeper(s bot.Service, manager *moderation.Manager, pipeline *moderation.Pipeline, cfg config.Moderation, lang string) *Gatekeeper {
	return &Gatekeeper{
		ops:      s.GetOps(),
		manager:  manager,
		pipeline: pipeline,
		cfg:      cfg,
		lang:     lang,
	}
}

func (g *Gatekeeper) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u.Message == nil || chat == nil || user == nil {
		return true, nil
	}
	m := u.Message

	if isPrivateChat(chat) && !user.IsBot && !m.IsCommand() {
		return g.handlePrivateMessage(ctx, chat, user, m)
	}

	if !isGroupChat(chat) || len(m.NewChatMembers) == 0 {
		return true, nil
	}

	title := g.ops.ChatTitle(ctx, chat.ID)
	for i := range m.NewChatMembers {
		member := &m.NewChatMembers[i]
		if member.IsBot {
			continue
		}
		if err := g.admit(ctx, chat.ID, title, member); err != nil {
			g.getLogEntry().WithFields(log.Fields{
				"chat_id": chat.ID,
				"user_id": member.ID,
				"error":   err.Error(),
			}).Error("cant process new member")
		}
	}
	return false, nil
}

func (g *Gatekeeper) admit(ctx context.Context, chatID int64, title string, member *api.User) error {
	fullName := bot.GetFullName(member)

	verdict := g.pipeline.ScreenName(ctx, fullName)
	if verdict.Violation {
		if err := g.manager.Ban(ctx, chatID, member.ID, bot.GetUN(member), "join name: "+verdict.Detail); err != nil {
			return err
		}
		var text string
		if verdict.Check == moderation.CheckBannedWord {
			text = fmt.Sprintf(i18n.Get("%s was banned for profanity in their name!", g.lang), mention(member))
		} else {
			text = fmt.Sprintf(i18n.Get("%s was banned for a suspicious name!", g.lang), mention(member))
		}
		return g.ops.SendMessage(ctx, chatID, text)
	}

	if err := g.manager.HoldForVerification(ctx, chatID, member.ID, bot.GetUN(member)); err != nil {
		return err
	}

	welcome := fmt.Sprintf(i18n.Get("Welcome, %s, to '%s'!", g.lang), mention(member), title)
	instruction := fmt.Sprintf(
		i18n.Get("%s, message me the phrase '%s' within %d minutes to lift the restriction, otherwise you will be banned.", g.lang),
		mention(member),
		config.VerificationPhrase(g.lang),
		int(g.cfg.GraceWindow.Minutes()),
	)
	return g.ops.SendMessage(ctx, chatID, welcome+"\n"+instruction)
}

func (g *Gatekeeper) handlePrivateMessage(ctx context.Context, chat *api.Chat, user *api.User, m *api.Message) (bool, error) {
	phrase := config.VerificationPhrase(g.lang)
	if !strings.EqualFold(strings.TrimSpace(m.Text), phrase) {
		return true, nil
	}

	joinedChatID, verified, err := g.manager.Verify(ctx, user.ID, bot.GetUN(user))
	if err != nil {
		return false, err
	}
	if !verified {
		return false, nil
	}

	if err := g.ops.SendMessage(ctx, chat.ID, i18n.Get("You passed the verification. Restrictions lifted.", g.lang)); err != nil {
		g.getLogEntry().WithField("error", err.Error()).Debug("cant confirm verification")
	}
	welcome := fmt.Sprintf(
		i18n.Get("Welcome, %s, to '%s'!", g.lang),
		mention(user),
		g.ops.ChatTitle(ctx, joinedChatID),
	)
	if err := g.ops.SendMessage(ctx, joinedChatID, welcome); err != nil {
		g.getLogEntry().WithField("error", err.Error()).Debug("cant announce verified member")
	}
	return false, nil
}

func (g *Gatekeeper) getLogEntry() *log.Entry {
	return log.WithField("context", "gatekeeper")
}
