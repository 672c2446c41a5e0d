package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/guardbot/internal/audit"
	"github.com/iamwavecut/guardbot/internal/config"
	"github.com/iamwavecut/guardbot/internal/db"
	"github.com/iamwavecut/guardbot/internal/moderation"
	"github.com/iamwavecut/guardbot/internal/telegram"
)

type stubPlatform struct {
	restricts int
	unmutes   int
	bans      int
	sent      map[int64][]string
}

func newStubPlatform() *stubPlatform {
	return &stubPlatform{sent: make(map[int64][]string)}
}

func (p *stubPlatform) BotID() int64 { return 42 }

func (p *stubPlatform) RestrictUser(_ context.Context, _, _ int64, _ time.Time) error {
	p.restricts++
	return nil
}

func (p *stubPlatform) UnrestrictUser(_ context.Context, _, _ int64) error {
	p.unmutes++
	return nil
}

func (p *stubPlatform) BanUser(_ context.Context, _, _ int64) error {
	p.bans++
	return nil
}

func (p *stubPlatform) MemberStatus(_ context.Context, _, _ int64) (telegram.Member, error) {
	return telegram.Member{Status: "member", CanSendMessages: true}, nil
}

func (p *stubPlatform) SendMessage(_ context.Context, chatID int64, text string) error {
	p.sent[chatID] = append(p.sent[chatID], text)
	return nil
}

func (p *stubPlatform) ChatTitle(_ context.Context, _ int64) string { return "test chat" }

type stubStore struct {
	counts map[int64]int
	words  []string
}

func (s *stubStore) GetViolations(_ context.Context, userID int64) (int, error) {
	return s.counts[userID], nil
}

func (s *stubStore) IncrementViolations(_ context.Context, userID int64) error {
	if s.counts == nil {
		s.counts = make(map[int64]int)
	}
	s.counts[userID]++
	return nil
}

func (s *stubStore) DecrementViolations(_ context.Context, userID int64) error {
	if s.counts[userID] > 0 {
		s.counts[userID]--
	}
	return nil
}

func (s *stubStore) ResetViolations(_ context.Context, userID int64) error {
	delete(s.counts, userID)
	return nil
}

func (s *stubStore) GetBannedWords(_ context.Context) ([]db.BannedWord, error) {
	words := make([]db.BannedWord, 0, len(s.words))
	for i, word := range s.words {
		words = append(words, db.BannedWord{ID: int64(i + 1), Word: word})
	}
	return words, nil
}

func (s *stubStore) AddBannedWord(_ context.Context, word string) (bool, error) {
	s.words = append(s.words, word)
	return true, nil
}

type stubClassifier struct {
	spamTexts map[string]bool
}

func (c *stubClassifier) ResolveURL(_ context.Context, rawURL string) string { return rawURL }
func (c *stubClassifier) IsMaliciousURL(_ context.Context, _ string) bool    { return false }
func (c *stubClassifier) IsSpamText(_ context.Context, text string) bool {
	return c.spamTexts[text]
}

type discardAudit struct{}

func (discardAudit) Record(audit.Event) {}

func newTestGatekeeper(platform *stubPlatform, store *stubStore) *Gatekeeper {
	cfg := config.Moderation{
		EscalationStages: []time.Duration{time.Hour},
		RateWindow:       10 * time.Second,
		RateMaxMessages:  3,
		GraceWindow:      5 * time.Minute,
		SweepInterval:    30 * time.Second,
	}
	manager := moderation.NewManager(
		platform,
		moderation.NewViolationLedger(store),
		moderation.NewEscalationPolicy(cfg.EscalationStages),
		discardAudit{},
		cfg,
		"en",
	)
	pipeline := moderation.NewPipeline(
		moderation.NewRateLimiter(cfg.RateWindow, cfg.RateMaxMessages),
		&stubClassifier{spamTexts: map[string]bool{"Hot Deals 24/7": true}},
		store,
	)
	return &Gatekeeper{
		ops:      platform,
		manager:  manager,
		pipeline: pipeline,
		cfg:      cfg,
		lang:     "en",
	}
}

func joinUpdate(chatID int64, members ...api.User) (*api.Update, *api.Chat, *api.User) {
	u := &api.Update{
		Message: &api.Message{
			Date:           int(time.Now().Unix()),
			Chat:           api.Chat{ID: chatID, Type: "supergroup"},
			From:           &members[0],
			NewChatMembers: members,
		},
	}
	return u, &u.Message.Chat, u.Message.From
}

func TestGatekeeperBansDirtyNamesOnJoin(t *testing.T) {
	t.Parallel()

	platform := newStubPlatform()
	g := newTestGatekeeper(platform, &stubStore{words: []string{"casino"}})

	u, chat, user := joinUpdate(-100, api.User{ID: 7, FirstName: "Casino", LastName: "Bonus"})
	proceed, err := g.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if proceed {
		t.Fatal("join updates must not proceed down the chain")
	}
	if platform.bans != 1 {
		t.Fatalf("bans = %d, want 1", platform.bans)
	}
	if platform.restricts != 0 {
		t.Fatal("dirty-name member must be banned, not held")
	}
	if _, active := g.manager.ActiveEntry(-100, 7); active {
		t.Fatal("banned member left with an entry")
	}
	if sent := platform.sent[-100]; len(sent) != 1 || !strings.Contains(sent[0], "banned") {
		t.Fatalf("unexpected announcement: %v", sent)
	}
}

func TestGatekeeperHoldsCleanJoinsForVerification(t *testing.T) {
	t.Parallel()

	platform := newStubPlatform()
	g := newTestGatekeeper(platform, &stubStore{words: []string{"casino"}})

	u, chat, user := joinUpdate(-100, api.User{ID: 8, FirstName: "John", LastName: "Doe"})
	proceed, err := g.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if proceed {
		t.Fatal("join updates must not proceed down the chain")
	}
	if platform.restricts != 1 || platform.bans != 0 {
		t.Fatalf("restricts/bans = %d/%d, want 1/0", platform.restricts, platform.bans)
	}
	entry, active := g.manager.ActiveEntry(-100, 8)
	if !active || entry.Kind != moderation.EntryPending {
		t.Fatalf("expected a pending entry, got %+v (active=%v)", entry, active)
	}
	sent := platform.sent[-100]
	if len(sent) != 1 || !strings.Contains(sent[0], config.VerificationPhrase("en")) {
		t.Fatalf("instructions missing the verification phrase: %v", sent)
	}
}

func TestGatekeeperSkipsJoiningBots(t *testing.T) {
	t.Parallel()

	platform := newStubPlatform()
	g := newTestGatekeeper(platform, &stubStore{})

	u, chat, user := joinUpdate(-100, api.User{ID: 9, FirstName: "Helper", IsBot: true})
	if _, err := g.Handle(context.Background(), u, chat, user); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if platform.restricts != 0 || platform.bans != 0 {
		t.Fatalf("bot member touched: restricts=%d bans=%d", platform.restricts, platform.bans)
	}
}

func TestGatekeeperVerifiesPendingMemberByPhrase(t *testing.T) {
	t.Parallel()

	platform := newStubPlatform()
	g := newTestGatekeeper(platform, &stubStore{})

	u, chat, user := joinUpdate(-100, api.User{ID: 8, FirstName: "John"})
	if _, err := g.Handle(context.Background(), u, chat, user); err != nil {
		t.Fatalf("Handle join: %v", err)
	}

	private := &api.Update{
		Message: &api.Message{
			Date: int(time.Now().Unix()),
			Chat: api.Chat{ID: 8, Type: "private"},
			From: &api.User{ID: 8, FirstName: "John"},
			Text: "I Am Not A Bot",
		},
	}
	proceed, err := g.Handle(context.Background(), private, &private.Message.Chat, private.Message.From)
	if err != nil {
		t.Fatalf("Handle verification: %v", err)
	}
	if proceed {
		t.Fatal("verification message must not proceed down the chain")
	}
	if platform.unmutes != 1 {
		t.Fatalf("unmutes = %d, want 1", platform.unmutes)
	}
	if _, active := g.manager.ActiveEntry(-100, 8); active {
		t.Fatal("pending entry survived verification")
	}
	if len(platform.sent[8]) == 0 {
		t.Fatal("verification was not confirmed in private")
	}
	// The origin chat gets a second message: the post-verification welcome.
	group := platform.sent[-100]
	if len(group) != 2 || !strings.Contains(group[1], "Welcome") {
		t.Fatalf("no welcome in the origin chat after verification: %v", group)
	}
}
