package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/bot"
	"github.com/iamwavecut/guardbot/internal/config"
	"github.com/iamwavecut/guardbot/internal/i18n"
	"github.com/iamwavecut/guardbot/internal/moderation"
	"github.com/iamwavecut/guardbot/internal/observability"
)

// throttle is a per-user cooldown gate. Allow only reads; the caller marks
// usage with Touch once the action actually went out, so a failed delivery
// does not burn the cooldown.
type throttle struct {
	cooldown time.Duration

	mu   sync.Mutex
	last map[int64]time.Time
	now  func() time.Time
}

func newThrottle(cooldown time.Duration) *throttle {
	return &throttle{
		cooldown: cooldown,
		last:     make(map[int64]time.Time),
		now:      time.Now,
	}
}

func (t *throttle) Allow(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[userID]
	return !ok || t.now().Sub(last) >= t.cooldown
}

func (t *throttle) Touch(userID int64) {
	t.mu.Lock()
	t.last[userID] = t.now()
	t.mu.Unlock()
}

// Appeals handles /report in groups and /appeal in private, fanning the
// payload out to the chat's human administrators.
type Appeals struct {
	s       bot.Service
	manager *moderation.Manager
	cfg     config.Appeals
	lang    string

	reports *throttle
	appeals *throttle
}

func NewAppeals(s bot.Service, manager *moderation.Manager, cfg config.Appeals, lang string) *Appeals {
	return &Appeals{
		s:       s,
		manager: manager,
		cfg:     cfg,
		lang:    lang,
		reports: newThrottle(cfg.ReportCooldown),
		appeals: newThrottle(cfg.AppealCooldown),
	}
}

func (a *Appeals) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u.Message == nil || chat == nil || user == nil || user.IsBot || !u.Message.IsCommand() {
		return true, nil
	}
	m := u.Message

	switch {
	case m.Command() == "report" && isGroupChat(chat):
		return false, a.handleReport(ctx, chat, user, m)
	case m.Command() == "appeal" && isPrivateChat(chat):
		return false, a.handleAppeal(ctx, chat, user, m)
	case m.Command() == "appeal" && isGroupChat(chat):
		if _, active := a.manager.ActiveEntry(chat.ID, user.ID); active {
			return false, a.handleAppeal(ctx, chat, user, m)
		}
		// A user able to type here has no restriction to contest.
		ops := a.s.GetOps()
		text := fmt.Sprintf(
			i18n.Get("%s, you have no active restriction in '%s' to appeal.", a.lang),
			mention(user),
			ops.ChatTitle(ctx, chat.ID),
		)
		return false, ops.SendReply(ctx, chat.ID, text, m.MessageID)
	}
	return true, nil
}

func (a *Appeals) handleReport(ctx context.Context, chat *api.Chat, user *api.User, m *api.Message) error {
	ops := a.s.GetOps()

	if m.ReplyToMessage == nil {
		return ops.SendReply(ctx, chat.ID, i18n.Get("Reply to a message to report it.", a.lang), m.MessageID)
	}
	if !a.reports.Allow(user.ID) {
		text := fmt.Sprintf(
			i18n.Get("You can use /report at most once every %d minutes.", a.lang),
			int(a.cfg.ReportCooldown.Minutes()),
		)
		return ops.SendReply(ctx, chat.ID, text, m.MessageID)
	}

	admins, err := ops.Admins(ctx, chat.ID)
	if err != nil {
		return err
	}
	delivered := 0
	for _, admin := range admins {
		if admin.IsBot {
			continue
		}
		if err := ops.ForwardMessage(ctx, admin.ID, chat.ID, m.ReplyToMessage.MessageID); err != nil {
			// Admins who never opened a private chat with the bot are
			// unreachable, the rest still get the report.
			a.getLogEntry().WithFields(log.Fields{"admin_id": admin.ID, "error": err.Error()}).Debug("cant forward report")
			continue
		}
		delivered++
	}
	a.reports.Touch(user.ID)
	observability.AppealsTotal.WithLabelValues("report").Inc()
	a.getLogEntry().WithFields(log.Fields{"chat_id": chat.ID, "delivered": delivered}).Info("report fanned out")

	text := fmt.Sprintf(
		i18n.Get("Report from %s sent to the administrators of '%s'.", a.lang),
		mention(user),
		ops.ChatTitle(ctx, chat.ID),
	)
	return ops.SendMessage(ctx, chat.ID, text)
}

func (a *Appeals) handleAppeal(ctx context.Context, chat *api.Chat, user *api.User, m *api.Message) error {
	ops := a.s.GetOps()

	explanation := strings.TrimSpace(m.CommandArguments())
	if explanation == "" {
		return ops.SendMessage(ctx, chat.ID, i18n.Get("Please add an explanation to your appeal (for example: /appeal I did not break the rules).", a.lang))
	}

	entry, ok := a.manager.LatestEntry(user.ID)
	if !ok {
		return ops.SendMessage(ctx, chat.ID, i18n.Get("Could not find a chat where you are restricted. Contact the administrators directly or try from the group.", a.lang))
	}

	if !a.appeals.Allow(user.ID) {
		text := fmt.Sprintf(
			i18n.Get("You can submit an appeal at most once every %d minutes.", a.lang),
			int(a.cfg.AppealCooldown.Minutes()),
		)
		return ops.SendMessage(ctx, chat.ID, text)
	}

	admins, err := ops.Admins(ctx, entry.ChatID)
	if err != nil {
		return err
	}
	payload := fmt.Sprintf(i18n.Get("Appeal from %s: %s", a.lang), mention(user), explanation)
	for _, admin := range admins {
		if admin.IsBot {
			continue
		}
		if err := ops.SendMessage(ctx, admin.ID, payload); err != nil {
			a.getLogEntry().WithFields(log.Fields{"admin_id": admin.ID, "error": err.Error()}).Debug("cant deliver appeal")
		}
	}
	a.appeals.Touch(user.ID)
	observability.AppealsTotal.WithLabelValues("appeal").Inc()

	text := fmt.Sprintf(
		i18n.Get("Your appeal was sent to the administrators of '%s'.", a.lang),
		ops.ChatTitle(ctx, entry.ChatID),
	)
	return ops.SendMessage(ctx, chat.ID, text)
}

func (a *Appeals) getLogEntry() *log.Entry {
	return log.WithField("context", "appeals")
}
