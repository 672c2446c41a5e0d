package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/audit"
	"github.com/iamwavecut/guardbot/internal/config"
	"github.com/iamwavecut/guardbot/internal/i18n"
	"github.com/iamwavecut/guardbot/internal/observability"
	"github.com/iamwavecut/guardbot/internal/telegram"
)

// Platform is the chat-platform capability the manager acts through.
type Platform interface {
	BotID() int64
	RestrictUser(ctx context.Context, chatID, userID int64, until time.Time) error
	UnrestrictUser(ctx context.Context, chatID, userID int64) error
	BanUser(ctx context.Context, chatID, userID int64) error
	MemberStatus(ctx context.Context, chatID, userID int64) (telegram.Member, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	ChatTitle(ctx context.Context, chatID int64) string
}

type EntryKind string

const (
	EntryMuted   EntryKind = "muted"
	EntryPending EntryKind = "pending_verification"
)

// Entry is the live record of one active restriction. The platform is the real
// enforcer; the entry tracks why and until when, and drives expiry.
type Entry struct {
	UserID   int64
	ChatID   int64
	Kind     EntryKind
	Until    time.Time
	JoinedAt time.Time
}

// Penalty reports what Penalize did.
type Penalty struct {
	Applied    bool
	SkipReason string
	Duration   time.Duration
	PriorCount int
}

const (
	SkipSelf              = "bot account"
	SkipAdmin             = "chat administrator"
	SkipAlreadyRestricted = "already restricted"
)

// Manager owns the restriction entries table: it applies, lifts, and expires
// restrictions, and runs the background verification sweep.
type Manager struct {
	platform Platform
	ledger   *ViolationLedger
	policy   EscalationPolicy
	auditLog audit.Log
	cfg      config.Moderation
	lang     string

	mu      sync.RWMutex
	entries map[int64]*Entry

	now func() time.Time

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
	logger    *log.Entry
}

func NewManager(platform Platform, ledger *ViolationLedger, policy EscalationPolicy, auditLog audit.Log, cfg config.Moderation, lang string) *Manager {
	return &Manager{
		platform: platform,
		ledger:   ledger,
		policy:   policy,
		auditLog: auditLog,
		cfg:      cfg,
		lang:     lang,
		entries:  make(map[int64]*Entry),
		now:      time.Now,
		logger:   log.WithField("context", "restrictions"),
	}
}

func (m *Manager) Start(ctx context.Context) error {
	m.runMutex.Lock()
	defer m.runMutex.Unlock()
	if m.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.runCancel = cancel

	m.workersWg.Add(1)
	go func() {
		defer m.workersWg.Done()
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.Sweep(runCtx)
			}
		}
	}()

	m.started = true
	return nil
}

func (m *Manager) Stop(ctx context.Context) error {
	m.runMutex.Lock()
	if !m.started {
		m.runMutex.Unlock()
		return nil
	}
	m.started = false
	cancel := m.runCancel
	m.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Penalize records a violation and applies the escalated timed restriction.
// The violation count is incremented even when a guardrail prevents the
// platform call; only the restriction itself is gated.
func (m *Manager) Penalize(ctx context.Context, chatID, userID int64, username, reason string) (Penalty, error) {
	prior := m.ledger.Get(ctx, userID)
	m.ledger.Increment(ctx, userID)
	duration := m.policy.DurationFor(prior)
	penalty := Penalty{Duration: duration, PriorCount: prior}

	if skip := m.guardrails(ctx, chatID, userID); skip != "" {
		penalty.SkipReason = skip
		m.logger.WithFields(log.Fields{"chat_id": chatID, "user_id": userID, "skip": skip}).Debug("restriction skipped")
		return penalty, nil
	}

	until := m.now().Add(duration)
	// The entry is reserved before the platform call so concurrent violations
	// from one user collapse into a single restriction; the loser of the race
	// sees the reservation and backs off.
	if !m.reserveEntry(&Entry{UserID: userID, ChatID: chatID, Kind: EntryMuted, Until: until}) {
		penalty.SkipReason = SkipAlreadyRestricted
		m.logger.WithFields(log.Fields{"chat_id": chatID, "user_id": userID, "skip": penalty.SkipReason}).Debug("restriction skipped")
		return penalty, nil
	}
	if err := m.platform.RestrictUser(ctx, chatID, userID, until); err != nil {
		m.removeEntry(userID)
		return penalty, errors.WithMessage(err, "cant restrict")
	}
	penalty.Applied = true

	m.auditLog.Record(audit.Event{
		Kind:      "user_muted",
		ChatID:    chatID,
		ChatTitle: m.platform.ChatTitle(ctx, chatID),
		UserID:    userID,
		Username:  username,
		Detail:    fmt.Sprintf("%s - timeout: %s", reason, duration),
	})
	return penalty, nil
}

// Lift removes a restriction. With decrement set, the violation count goes
// down by one when it is above zero (the unmute path rewards good standing).
func (m *Manager) Lift(ctx context.Context, chatID, userID int64, username string, decrement bool) error {
	if err := m.platform.UnrestrictUser(ctx, chatID, userID); err != nil {
		return errors.WithMessage(err, "cant unrestrict")
	}
	m.removeEntry(userID)

	if decrement && m.ledger.Get(ctx, userID) > 0 {
		m.ledger.Decrement(ctx, userID)
	}

	m.auditLog.Record(audit.Event{
		Kind:      "user_unmuted",
		ChatID:    chatID,
		ChatTitle: m.platform.ChatTitle(ctx, chatID),
		UserID:    userID,
		Username:  username,
	})
	return nil
}

// Ban is terminal: the violation record is reset and the entry dropped.
func (m *Manager) Ban(ctx context.Context, chatID, userID int64, username, reason string) error {
	if err := m.platform.BanUser(ctx, chatID, userID); err != nil {
		return errors.WithMessage(err, "cant ban")
	}
	m.ledger.Reset(ctx, userID)
	m.removeEntry(userID)

	m.auditLog.Record(audit.Event{
		Kind:      "user_banned",
		ChatID:    chatID,
		ChatTitle: m.platform.ChatTitle(ctx, chatID),
		UserID:    userID,
		Username:  username,
		Detail:    reason,
	})
	return nil
}

// HoldForVerification fully restricts a fresh member until they confirm they
// are human.
func (m *Manager) HoldForVerification(ctx context.Context, chatID, userID int64, username string) error {
	if userID == m.platform.BotID() {
		return nil
	}
	if !m.reserveEntry(&Entry{UserID: userID, ChatID: chatID, Kind: EntryPending, JoinedAt: m.now()}) {
		return nil
	}
	if err := m.platform.RestrictUser(ctx, chatID, userID, time.Time{}); err != nil {
		m.removeEntry(userID)
		return errors.WithMessage(err, "cant restrict")
	}

	m.auditLog.Record(audit.Event{
		Kind:      "user_pending_verification",
		ChatID:    chatID,
		ChatTitle: m.platform.ChatTitle(ctx, chatID),
		UserID:    userID,
		Username:  username,
		Detail:    "restricted until verification",
	})
	return nil
}

// Verify lifts a pending-verification hold. Returns the chat the member
// joined, and false when the user has no pending entry.
func (m *Manager) Verify(ctx context.Context, userID int64, username string) (int64, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[userID]
	m.mu.RUnlock()
	if !ok || entry.Kind != EntryPending {
		return 0, false, nil
	}

	if err := m.platform.UnrestrictUser(ctx, entry.ChatID, userID); err != nil {
		return entry.ChatID, false, errors.WithMessage(err, "cant unrestrict")
	}
	m.removeEntry(userID)
	observability.VerificationsTotal.WithLabelValues("verified").Inc()

	m.auditLog.Record(audit.Event{
		Kind:      "user_verified",
		ChatID:    entry.ChatID,
		ChatTitle: m.platform.ChatTitle(ctx, entry.ChatID),
		UserID:    userID,
		Username:  username,
		Detail:    "restrictions lifted",
	})
	return entry.ChatID, true, nil
}

// ActiveEntry reports the live entry for the user in the given chat.
func (m *Manager) ActiveEntry(chatID, userID int64) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[userID]
	if !ok || entry.ChatID != chatID {
		return Entry{}, false
	}
	return *entry, true
}

// LatestEntry reports the user's live entry in any chat, for appeal routing.
func (m *Manager) LatestEntry(userID int64) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[userID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Sweep evicts pending members whose grace window elapsed (ban) and drops
// timed entries the platform has already let expire. One user's failure never
// stops the pass.
func (m *Manager) Sweep(ctx context.Context) {
	now := m.now()

	m.mu.RLock()
	stale := make([]Entry, 0)
	for _, entry := range m.entries {
		switch entry.Kind {
		case EntryPending:
			if now.Sub(entry.JoinedAt) > m.cfg.GraceWindow {
				stale = append(stale, *entry)
			}
		case EntryMuted:
			if now.After(entry.Until) {
				stale = append(stale, *entry)
			}
		}
	}
	m.mu.RUnlock()

	for _, entry := range stale {
		switch entry.Kind {
		case EntryPending:
			if err := m.evictUnverified(ctx, entry); err != nil {
				m.logger.WithFields(log.Fields{"chat_id": entry.ChatID, "user_id": entry.UserID, "error": err.Error()}).Error("cant evict unverified member")
				continue
			}
			observability.VerificationsTotal.WithLabelValues("expired").Inc()
			text := fmt.Sprintf(
				i18n.Get("%s was banned in '%s' for failing the verification.", m.lang),
				mention(entry.UserID, ""),
				m.platform.ChatTitle(ctx, entry.ChatID),
			)
			if err := m.platform.SendMessage(ctx, entry.ChatID, text); err != nil {
				m.logger.WithField("error", err.Error()).Debug("cant announce eviction")
			}
		case EntryMuted:
			// Telegram lifts the mute itself via until_date, only the table
			// needs reconciling.
			m.removeEntry(entry.UserID)
			m.auditLog.Record(audit.Event{
				Kind:   "restriction_expired",
				ChatID: entry.ChatID,
				UserID: entry.UserID,
			})
		}
	}
}

// evictUnverified removes a member who sat out the grace window. Unlike Ban,
// the violation record stays untouched: the eviction is a verification
// failure, not a terminal moderation decision.
func (m *Manager) evictUnverified(ctx context.Context, entry Entry) error {
	if err := m.platform.BanUser(ctx, entry.ChatID, entry.UserID); err != nil {
		return errors.WithMessage(err, "cant ban")
	}
	m.removeEntry(entry.UserID)

	m.auditLog.Record(audit.Event{
		Kind:      "user_banned",
		ChatID:    entry.ChatID,
		ChatTitle: m.platform.ChatTitle(ctx, entry.ChatID),
		UserID:    entry.UserID,
		Detail:    "verification timeout",
	})
	return nil
}

func (m *Manager) guardrails(ctx context.Context, chatID, userID int64) string {
	if userID == m.platform.BotID() {
		return SkipSelf
	}
	// Status is queried fresh at decision time, never cached.
	member, err := m.platform.MemberStatus(ctx, chatID, userID)
	if err != nil {
		m.logger.WithFields(log.Fields{"chat_id": chatID, "user_id": userID, "error": err.Error()}).Warn("cant check member status")
	} else {
		if member.IsAdmin() {
			return SkipAdmin
		}
		if member.IsMuted() {
			return SkipAlreadyRestricted
		}
	}
	if _, active := m.ActiveEntry(chatID, userID); active {
		return SkipAlreadyRestricted
	}
	return ""
}

// reserveEntry installs the entry unless the user already has one. It is the
// authoritative per-user gate; callers must roll back with removeEntry when
// the platform call behind the reservation fails.
func (m *Manager) reserveEntry(entry *Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[entry.UserID]; exists {
		return false
	}
	observability.RestrictionsActive.Inc()
	m.entries[entry.UserID] = entry
	return true
}

func (m *Manager) removeEntry(userID int64) {
	m.mu.Lock()
	if _, exists := m.entries[userID]; exists {
		observability.RestrictionsActive.Dec()
	}
	delete(m.entries, userID)
	m.mu.Unlock()
}

func mention(userID int64, username string) string {
	if username == "" {
		username = fmt.Sprintf("%d", userID)
	}
	return fmt.Sprintf("[%s](tg://user?id=%d)", username, userID)
}
