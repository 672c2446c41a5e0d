package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/config"
)

// Sender is the outbound capability the broadcaster needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Broadcaster periodically posts the chat rules into every group the bot has
// seen traffic in. It doubles as an update handler so the chat roster fills
// itself, no persistent chat registry needed.
type Broadcaster struct {
	sender  Sender
	cfg     config.Rules
	workDir string
	logger  *log.Entry

	mu    sync.Mutex
	chats map[int64]struct{}

	scheduler *cron.Cron
}

func NewBroadcaster(sender Sender, cfg config.Rules, workDir string) *Broadcaster {
	return &Broadcaster{
		sender:  sender,
		cfg:     cfg,
		workDir: workDir,
		logger:  log.WithField("context", "rules"),
		chats:   make(map[int64]struct{}),
	}
}

// Handle records group chats as traffic flows through. Always proceeds.
func (b *Broadcaster) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if chat == nil {
		return true, nil
	}
	switch chat.Type {
	case "group", "supergroup":
		b.mu.Lock()
		b.chats[chat.ID] = struct{}{}
		b.mu.Unlock()
	}
	return true, nil
}

func (b *Broadcaster) Start(ctx context.Context) error {
	b.scheduler = cron.New()
	spec := fmt.Sprintf("@every %s", b.cfg.BroadcastInterval)
	if _, err := b.scheduler.AddFunc(spec, func() { b.broadcast(ctx) }); err != nil {
		return fmt.Errorf("schedule rules broadcast: %w", err)
	}
	b.scheduler.Start()
	return nil
}

func (b *Broadcaster) Stop(ctx context.Context) error {
	if b.scheduler == nil {
		return nil
	}
	stopCtx := b.scheduler.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stopCtx.Done():
		return nil
	}
}

func (b *Broadcaster) broadcast(ctx context.Context) {
	text, err := b.rulesText()
	if err != nil {
		b.logger.WithField("error", err.Error()).Debug("no rules to broadcast")
		return
	}

	b.mu.Lock()
	chats := make([]int64, 0, len(b.chats))
	for chatID := range b.chats {
		chats = append(chats, chatID)
	}
	b.mu.Unlock()

	for _, chatID := range chats {
		if err := b.sender.SendMessage(ctx, chatID, text); err != nil {
			b.logger.WithFields(log.Fields{"chat_id": chatID, "error": err.Error()}).Warn("cant broadcast rules")
		}
	}
}

// rulesText reads the rules file from the work dir on every broadcast, so
// edits take effect without a restart.
func (b *Broadcaster) rulesText() (string, error) {
	data, err := os.ReadFile(filepath.Join(b.workDir, b.cfg.FileName))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("rules file is empty")
	}
	return text, nil
}
