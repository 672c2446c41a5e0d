package chat

import (
	"context"
	"fmt"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/bot"
	"github.com/iamwavecut/guardbot/internal/i18n"
	"github.com/iamwavecut/guardbot/internal/moderation"
	"github.com/iamwavecut/guardbot/internal/telegram"
)

// Commands handles the moderation commands. All of them are admin-only and
// the offending command message is removed when a non-admin tries one.
type Commands struct {
	s       bot.Service
	manager *moderation.Manager
	pipe    *moderation.Pipeline
	lang    string
}

func NewCommands(s bot.Service, manager *moderation.Manager, pipe *moderation.Pipeline, lang string) *Commands {
	return &Commands{
		s:       s,
		manager: manager,
		pipe:    pipe,
		lang:    lang,
	}
}

func (c *Commands) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u.Message == nil || chat == nil || user == nil || user.IsBot {
		return true, nil
	}
	m := u.Message
	if !isGroupChat(chat) || !m.IsCommand() {
		return true, nil
	}

	switch m.Command() {
	case "ban", "mute", "unmute", "addword":
	default:
		return true, nil
	}

	ops := c.s.GetOps()
	entry := c.getLogEntry().WithFields(log.Fields{"chat_id": chat.ID, "command": m.Command()})

	if !isChatAdmin(ctx, ops, chat.ID, user.ID) {
		entry.WithField("user_id", user.ID).Debug("non-admin moderation command")
		if err := ops.DeleteMessage(ctx, chat.ID, m.MessageID); err != nil {
			entry.WithField("error", err.Error()).Debug("cant delete command message")
		}
		text := fmt.Sprintf(i18n.Get("You are not an administrator of '%s'.", c.lang), ops.ChatTitle(ctx, chat.ID))
		return false, ops.SendMessage(ctx, chat.ID, text)
	}

	if m.Command() == "addword" {
		return false, c.addWord(ctx, chat.ID, m)
	}

	if m.ReplyToMessage == nil || m.ReplyToMessage.From == nil {
		return false, ops.SendReply(ctx, chat.ID, i18n.Get("Please reply to the user's message to use this command.", c.lang), m.MessageID)
	}
	target := m.ReplyToMessage.From

	if target.IsBot || target.ID == ops.BotID() {
		return false, ops.SendReply(ctx, chat.ID, i18n.Get("You cannot apply this command to the bot!", c.lang), m.MessageID)
	}
	if isChatAdmin(ctx, ops, chat.ID, target.ID) {
		return false, ops.SendReply(ctx, chat.ID, i18n.Get("You cannot apply this command to an administrator!", c.lang), m.MessageID)
	}

	switch m.Command() {
	case "ban":
		return false, c.ban(ctx, chat.ID, target)
	case "mute":
		return false, c.mute(ctx, chat.ID, target)
	case "unmute":
		return false, c.unmute(ctx, chat.ID, target)
	}
	return false, nil
}

func (c *Commands) ban(ctx context.Context, chatID int64, target *api.User) error {
	ops := c.s.GetOps()
	err := c.manager.Ban(ctx, chatID, target.ID, bot.GetUN(target), "banned by administrator")
	if errors.Is(err, telegram.ErrNoPrivileges) {
		return ops.SendMessage(ctx, chatID, i18n.Get("I don't have enough rights to ban this user.", c.lang))
	}
	if err != nil {
		return err
	}
	return ops.SendMessage(ctx, chatID, fmt.Sprintf(i18n.Get("%s was banned!", c.lang), mention(target)))
}

func (c *Commands) mute(ctx context.Context, chatID int64, target *api.User) error {
	ops := c.s.GetOps()
	penalty, err := c.manager.Penalize(ctx, chatID, target.ID, bot.GetUN(target), "muted by administrator")
	if errors.Is(err, telegram.ErrNoPrivileges) {
		return ops.SendMessage(ctx, chatID, i18n.Get("I don't have enough rights to restrict this user.", c.lang))
	}
	if err != nil {
		return err
	}
	if penalty.SkipReason == moderation.SkipAlreadyRestricted {
		text := fmt.Sprintf(i18n.Get("%s already has an active restriction in '%s'.", c.lang), mention(target), ops.ChatTitle(ctx, chatID))
		return ops.SendMessage(ctx, chatID, text)
	}
	if !penalty.Applied {
		return nil
	}
	text := fmt.Sprintf(i18n.Get("%s got a %d hour timeout!", c.lang), mention(target), int(penalty.Duration.Hours()))
	return ops.SendMessage(ctx, chatID, text)
}

func (c *Commands) unmute(ctx context.Context, chatID int64, target *api.User) error {
	ops := c.s.GetOps()
	if _, active := c.manager.ActiveEntry(chatID, target.ID); !active {
		member, err := ops.MemberStatus(ctx, chatID, target.ID)
		if err != nil || !member.IsMuted() {
			text := fmt.Sprintf(i18n.Get("%s has no active restriction in '%s'!", c.lang), mention(target), ops.ChatTitle(ctx, chatID))
			return ops.SendMessage(ctx, chatID, text)
		}
	}
	err := c.manager.Lift(ctx, chatID, target.ID, bot.GetUN(target), true)
	if errors.Is(err, telegram.ErrNoPrivileges) {
		return ops.SendMessage(ctx, chatID, i18n.Get("I don't have enough rights to restrict this user.", c.lang))
	}
	if err != nil {
		return err
	}
	return ops.SendMessage(ctx, chatID, fmt.Sprintf(i18n.Get("%s is no longer restricted!", c.lang), mention(target)))
}

func (c *Commands) addWord(ctx context.Context, chatID int64, m *api.Message) error {
	ops := c.s.GetOps()
	word := strings.ToLower(strings.TrimSpace(m.CommandArguments()))
	if word == "" {
		return ops.SendReply(ctx, chatID, i18n.Get("Please provide a word to add.", c.lang), m.MessageID)
	}

	added, err := c.s.GetDB().AddBannedWord(ctx, word)
	if err != nil {
		return errors.WithMessage(err, "cant add banned word")
	}
	if !added {
		return ops.SendReply(ctx, chatID, fmt.Sprintf(i18n.Get("The word '%s' is already on the list.", c.lang), word), m.MessageID)
	}
	c.pipe.Reload()
	return ops.SendReply(ctx, chatID, fmt.Sprintf(i18n.Get("The word '%s' was added to the banned word list.", c.lang), word), m.MessageID)
}

func (c *Commands) getLogEntry() *log.Entry {
	return log.WithField("context", "commands")
}
