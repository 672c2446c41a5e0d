package db

import "time"

type (
	// Violation is the durable escalation counter for a user, platform-scoped.
	// Count never goes below zero.
	Violation struct {
		UserID int64 `db:"user_id"`
		Count  int   `db:"count"`
	}

	// BannedWord is a single lowercase token of the banned word list.
	// Insertion order is the list order.
	BannedWord struct {
		ID      int64     `db:"id"`
		Word    string    `db:"word"`
		AddedAt time.Time `db:"added_at"`
	}
)
