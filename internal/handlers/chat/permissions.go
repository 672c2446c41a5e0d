package chat

import (
	"context"
	"fmt"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/guardbot/internal/bot"
	"github.com/iamwavecut/guardbot/internal/telegram"
)

func isGroupChat(chat *api.Chat) bool {
	if chat == nil {
		return false
	}
	switch chat.Type {
	case "group", "supergroup":
		return true
	}
	return false
}

func isPrivateChat(chat *api.Chat) bool {
	return chat != nil && chat.Type == "private"
}

func isChatAdmin(ctx context.Context, ops *telegram.Operations, chatID, userID int64) bool {
	member, err := ops.MemberStatus(ctx, chatID, userID)
	if err != nil {
		return false
	}
	return member.IsAdmin()
}

// mention renders a clickable user reference for Markdown messages.
func mention(user *api.User) string {
	name := bot.GetUN(user)
	if name == "" && user != nil {
		name = fmt.Sprintf("%d", user.ID)
	}
	return fmt.Sprintf("[%s](tg://user?id=%d)", name, user.ID)
}
