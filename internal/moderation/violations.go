package moderation

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/db"
)

// ViolationLedger wraps the durable store with the fail-safe policy: a storage
// error is logged and the operation degrades (reads return zero, writes become
// no-ops) instead of failing the moderation path. A storage outage therefore
// treats everyone as a first offender until it clears.
type ViolationLedger struct {
	store  db.ViolationStore
	logger *log.Entry
}

func NewViolationLedger(store db.ViolationStore) *ViolationLedger {
	return &ViolationLedger{
		store:  store,
		logger: log.WithField("context", "violations"),
	}
}

func (l *ViolationLedger) Get(ctx context.Context, userID int64) int {
	count, err := l.store.GetViolations(ctx, userID)
	if err != nil {
		l.logger.WithField("user_id", userID).WithField("error", err.Error()).Error("cant read violations, assuming zero")
		return 0
	}
	return count
}

func (l *ViolationLedger) Increment(ctx context.Context, userID int64) {
	if err := l.store.IncrementViolations(ctx, userID); err != nil {
		l.logger.WithField("user_id", userID).WithField("error", err.Error()).Error("cant increment violations")
	}
}

func (l *ViolationLedger) Decrement(ctx context.Context, userID int64) {
	if err := l.store.DecrementViolations(ctx, userID); err != nil {
		l.logger.WithField("user_id", userID).WithField("error", err.Error()).Error("cant decrement violations")
	}
}

func (l *ViolationLedger) Reset(ctx context.Context, userID int64) {
	if err := l.store.ResetViolations(ctx, userID); err != nil {
		l.logger.WithField("user_id", userID).WithField("error", err.Error()).Error("cant reset violations")
	}
}
