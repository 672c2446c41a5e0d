package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrNoPrivileges signals that the bot account lacks the rights for a
// restrict/ban call. Callers surface this to the chat instead of retrying.
var ErrNoPrivileges = errors.New("no privileges")

// Member is the subset of chat-member state the moderation logic needs.
type Member struct {
	Status          string
	IsBot           bool
	CanSendMessages bool
}

func (m Member) IsAdmin() bool {
	return m.Status == "administrator" || m.Status == "creator"
}

func (m Member) IsMuted() bool {
	return m.Status == "restricted" && !m.CanSendMessages
}

// Operations provides the chat-platform capability over the bot API.
type Operations struct {
	bot    *api.BotAPI
	logger *log.Entry
}

func NewOperations(bot *api.BotAPI) *Operations {
	return &Operations{bot: bot, logger: log.WithField("context", "telegram")}
}

func (o *Operations) BotID() int64 {
	return o.bot.Self.ID
}

func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if _, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// RestrictUser removes send permissions until the given time. A zero until
// restricts indefinitely.
func (o *Operations) RestrictUser(ctx context.Context, chatID, userID int64, until time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	var untilUnix int64
	if !until.IsZero() {
		untilUnix = until.Unix()
	}
	_, err := o.bot.Request(api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		UntilDate:   untilUnix,
		Permissions: chatPermissions(false),
	})
	if err != nil {
		return withPrivilegeError(err, "restrict")
	}
	return nil
}

func (o *Operations) UnrestrictUser(ctx context.Context, chatID, userID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := o.bot.Request(api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		Permissions: chatPermissions(true),
	})
	if err != nil {
		return withPrivilegeError(err, "unrestrict")
	}
	return nil
}

func (o *Operations) BanUser(ctx context.Context, chatID, userID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := o.bot.Request(api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		RevokeMessages: true,
	})
	if err != nil {
		return withPrivilegeError(err, "ban")
	}
	return nil
}

func (o *Operations) MemberStatus(ctx context.Context, chatID, userID int64) (Member, error) {
	select {
	case <-ctx.Done():
		return Member{}, ctx.Err()
	default:
	}
	member, err := o.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	})
	if err != nil {
		return Member{}, fmt.Errorf("get chat member: %w", err)
	}
	return Member{
		Status:          member.Status,
		IsBot:           member.User != nil && member.User.IsBot,
		CanSendMessages: member.CanSendMessages,
	}, nil
}

func (o *Operations) Admins(ctx context.Context, chatID int64) ([]Admin, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	members, err := o.bot.GetChatAdministrators(api.ChatAdministratorsConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, fmt.Errorf("get administrators: %w", err)
	}
	admins := make([]Admin, 0, len(members))
	for _, member := range members {
		if member.User == nil {
			continue
		}
		admins = append(admins, Admin{ID: member.User.ID, IsBot: member.User.IsBot})
	}
	return admins, nil
}

type Admin struct {
	ID    int64
	IsBot bool
}

func (o *Operations) SendMessage(ctx context.Context, chatID int64, text string) error {
	return o.SendReply(ctx, chatID, text, 0)
}

func (o *Operations) SendReply(ctx context.Context, chatID int64, text string, replyTo int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeMarkdown
	msg.DisableNotification = true
	msg.LinkPreviewOptions.IsDisabled = true
	if replyTo != 0 {
		msg.ReplyParameters = api.ReplyParameters{
			ChatID:                   chatID,
			MessageID:                replyTo,
			AllowSendingWithoutReply: true,
		}
	}
	if _, err := o.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (o *Operations) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if _, err := o.bot.Send(api.NewForward(toChatID, fromChatID, messageID)); err != nil {
		return fmt.Errorf("forward message: %w", err)
	}
	return nil
}

func (o *Operations) ChatTitle(ctx context.Context, chatID int64) string {
	select {
	case <-ctx.Done():
		return fmt.Sprintf("chat %d", chatID)
	default:
	}
	chat, err := o.bot.GetChat(api.ChatInfoConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		o.logger.WithField("chat_id", chatID).WithField("error", err.Error()).Debug("cant get chat title")
		return fmt.Sprintf("chat %d", chatID)
	}
	return chat.Title
}

func chatPermissions(allowed bool) *api.ChatPermissions {
	return &api.ChatPermissions{
		CanSendMessages:       allowed,
		CanSendAudios:         allowed,
		CanSendDocuments:      allowed,
		CanSendPhotos:         allowed,
		CanSendVideos:         allowed,
		CanSendVideoNotes:     allowed,
		CanSendVoiceNotes:     allowed,
		CanSendPolls:          allowed,
		CanSendOtherMessages:  allowed,
		CanAddWebPagePreviews: allowed,
	}
}

func withPrivilegeError(err error, operation string) error {
	if strings.Contains(err.Error(), "not enough rights") || strings.Contains(err.Error(), "CHAT_ADMIN_REQUIRED") {
		return ErrNoPrivileges
	}
	return fmt.Errorf("failed to %s user: %w", operation, err)
}
