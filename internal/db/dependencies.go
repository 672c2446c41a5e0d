package db

import "context"

type ViolationStore interface {
	GetViolations(ctx context.Context, userID int64) (int, error)
	IncrementViolations(ctx context.Context, userID int64) error
	DecrementViolations(ctx context.Context, userID int64) error
	ResetViolations(ctx context.Context, userID int64) error
}

type WordListStore interface {
	GetBannedWords(ctx context.Context) ([]BannedWord, error)
	AddBannedWord(ctx context.Context, word string) (bool, error)
}

type Client interface {
	ViolationStore
	WordListStore
	Close() error
}
