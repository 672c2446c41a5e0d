package rules

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/guardbot/internal/config"
)

type senderStub struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (s *senderStub) SendMessage(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[int64][]string)
	}
	s.sent[chatID] = append(s.sent[chatID], text)
	return nil
}

func testRulesConfig() config.Rules {
	return config.Rules{
		BroadcastInterval: 10 * time.Minute,
		FileName:          "chat_rules.txt",
	}
}

func TestHandleTracksGroupChatsOnly(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(&senderStub{}, testRulesConfig(), t.TempDir())

	for _, chat := range []*api.Chat{
		{ID: -1, Type: "supergroup"},
		{ID: -2, Type: "group"},
		{ID: 3, Type: "private"},
		{ID: -4, Type: "channel"},
		nil,
	} {
		proceed, err := b.Handle(context.Background(), &api.Update{}, chat, nil)
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if !proceed {
			t.Fatal("broadcaster must always proceed")
		}
	}

	if len(b.chats) != 2 {
		t.Fatalf("tracked chats = %d, want 2", len(b.chats))
	}
	for _, id := range []int64{-1, -2} {
		if _, ok := b.chats[id]; !ok {
			t.Errorf("chat %d not tracked", id)
		}
	}
}

func TestBroadcastSendsRulesToTrackedChats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chat_rules.txt"), []byte("1. Be nice.\n2. No spam.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sender := &senderStub{}
	b := NewBroadcaster(sender, testRulesConfig(), dir)
	if _, err := b.Handle(context.Background(), &api.Update{}, &api.Chat{ID: -1, Type: "supergroup"}, nil); err != nil {
		t.Fatal(err)
	}

	b.broadcast(context.Background())

	if got := sender.sent[-1]; len(got) != 1 || got[0] != "1. Be nice.\n2. No spam." {
		t.Fatalf("unexpected broadcast: %v", got)
	}
}

func TestBroadcastSkipsMissingOrEmptyRules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := &senderStub{}
	b := NewBroadcaster(sender, testRulesConfig(), dir)
	if _, err := b.Handle(context.Background(), &api.Update{}, &api.Chat{ID: -1, Type: "group"}, nil); err != nil {
		t.Fatal(err)
	}

	b.broadcast(context.Background())
	if len(sender.sent) != 0 {
		t.Fatalf("broadcast without a rules file: %v", sender.sent)
	}

	if err := os.WriteFile(filepath.Join(dir, "chat_rules.txt"), []byte("   \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	b.broadcast(context.Background())
	if len(sender.sent) != 0 {
		t.Fatalf("broadcast with an empty rules file: %v", sender.sent)
	}
}
