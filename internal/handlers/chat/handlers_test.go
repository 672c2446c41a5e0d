package chat

import (
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

func TestChatTypePredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		chat    *api.Chat
		group   bool
		private bool
	}{
		{"nil", nil, false, false},
		{"group", &api.Chat{Type: "group"}, true, false},
		{"supergroup", &api.Chat{Type: "supergroup"}, true, false},
		{"private", &api.Chat{Type: "private"}, false, true},
		{"channel", &api.Chat{Type: "channel"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isGroupChat(tt.chat); got != tt.group {
				t.Errorf("isGroupChat = %v, want %v", got, tt.group)
			}
			if got := isPrivateChat(tt.chat); got != tt.private {
				t.Errorf("isPrivateChat = %v, want %v", got, tt.private)
			}
		})
	}
}

func TestThrottleCooldown(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	gate := newThrottle(2 * time.Minute)
	gate.now = func() time.Time { return now }

	if !gate.Allow(1) {
		t.Fatal("fresh user blocked")
	}

	// Allow alone never burns the cooldown.
	if !gate.Allow(1) {
		t.Fatal("repeated Allow without Touch blocked")
	}

	gate.Touch(1)
	if gate.Allow(1) {
		t.Fatal("allowed immediately after Touch")
	}

	now = now.Add(time.Minute)
	if gate.Allow(1) {
		t.Fatal("allowed before the cooldown elapsed")
	}
	if !gate.Allow(2) {
		t.Fatal("cooldown leaked across users")
	}

	now = now.Add(time.Minute)
	if !gate.Allow(1) {
		t.Fatal("blocked after the cooldown elapsed")
	}
}

func TestMentionFallsBackToID(t *testing.T) {
	t.Parallel()

	named := mention(&api.User{ID: 7, UserName: "someone"})
	if named != "[someone](tg://user?id=7)" {
		t.Errorf("unexpected mention: %q", named)
	}

	anonymous := mention(&api.User{ID: 7})
	if anonymous != "[7](tg://user?id=7)" {
		t.Errorf("unexpected fallback mention: %q", anonymous)
	}
}
