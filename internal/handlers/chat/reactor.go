package chat

import (
	"context"
	"fmt"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/bot"
	"github.com/iamwavecut/guardbot/internal/i18n"
	"github.com/iamwavecut/guardbot/internal/moderation"
	"github.com/iamwavecut/guardbot/internal/telegram"
)

// Reactor screens every ordinary group message through the violation
// pipeline and enforces the verdict. It is the last handler in the chain.
type Reactor struct {
	s        bot.Service
	manager  *moderation.Manager
	pipeline *moderation.Pipeline
	lang     string
}

func NewReactor(s bot.Service, manager *moderation.Manager, pipeline *moderation.Pipeline, lang string) *Reactor {
	return &Reactor{
		s:        s,
		manager:  manager,
		pipeline: pipeline,
		lang:     lang,
	}
}

func (r *Reactor) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u.Message == nil || chat == nil || user == nil {
		return true, nil
	}
	m := u.Message
	if !isGroupChat(chat) || user.IsBot || m.IsCommand() || len(m.NewChatMembers) > 0 {
		return true, nil
	}

	content := bot.ExtractContentFromMessage(m)
	verdict := r.pipeline.Screen(ctx, user.ID, content)
	if !verdict.Violation {
		return true, nil
	}

	ops := r.s.GetOps()
	entry := r.getLogEntry().WithFields(log.Fields{
		"chat_id": chat.ID,
		"user_id": user.ID,
		"check":   verdict.Check,
	})
	entry.Info("violation detected")

	if err := ops.DeleteMessage(ctx, chat.ID, m.MessageID); err != nil {
		entry.WithField("error", err.Error()).Warn("cant delete message")
	}

	penalty, err := r.manager.Penalize(ctx, chat.ID, user.ID, bot.GetUN(user), verdict.Check+": "+verdict.Detail)
	if errors.Is(err, telegram.ErrNoPrivileges) {
		return false, ops.SendMessage(ctx, chat.ID, i18n.Get("I don't have enough rights to restrict this user.", r.lang))
	}
	if err != nil {
		return false, errors.WithMessage(err, "cant penalize")
	}
	if !penalty.Applied {
		entry.WithField("skip", penalty.SkipReason).Debug("penalty skipped")
		return false, nil
	}

	return false, ops.SendMessage(ctx, chat.ID, r.announcement(ctx, chat.ID, user, verdict, penalty))
}

func (r *Reactor) announcement(ctx context.Context, chatID int64, user *api.User, verdict moderation.Verdict, penalty moderation.Penalty) string {
	hours := int(penalty.Duration.Hours())
	who := mention(user)
	title := r.s.GetOps().ChatTitle(ctx, chatID)

	switch verdict.Check {
	case moderation.CheckBurst:
		return fmt.Sprintf(i18n.Get("%s got a %d hour timeout in '%s' for flooding!", r.lang), who, hours, title)
	case moderation.CheckBannedWord:
		return fmt.Sprintf(i18n.Get("%s got a %d hour timeout for profanity!", r.lang), who, hours)
	case moderation.CheckBadLink:
		return fmt.Sprintf(i18n.Get("%s got a %d hour timeout in '%s' for a suspicious link!", r.lang), who, hours, title)
	case moderation.CheckSpamText:
		return fmt.Sprintf(i18n.Get("%s got a %d hour timeout for spam or harmful content!", r.lang), who, hours)
	default:
		return fmt.Sprintf(i18n.Get("%s got a %d hour timeout!", r.lang), who, hours)
	}
}

func (r *Reactor) getLogEntry() *log.Entry {
	return log.WithField("context", "reactor")
}
