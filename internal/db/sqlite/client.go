package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iamwavecut/guardbot/internal/db"
	"github.com/iamwavecut/guardbot/resources"
)

type sqliteClient struct {
	db    *sqlx.DB
	mutex sync.Mutex
}

func NewSQLiteClient(ctx context.Context, dir, dbName string) (*sqliteClient, error) {
	dbx, err := sqlx.Open("sqlite", filepath.Join(dir, dbName))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	dbx.SetMaxOpenConns(1)

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.ExecContext(ctx, dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	if n > 0 {
		log.Infof("applied %d migrations", n)
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) GetViolations(ctx context.Context, userID int64) (int, error) {
	var violation db.Violation
	err := c.db.GetContext(ctx, &violation, "SELECT user_id, count FROM violations WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return violation.Count, err
}

func (c *sqliteClient) IncrementViolations(ctx context.Context, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO violations (user_id, count) VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET count = count + 1
	`, userID)
	return err
}

func (c *sqliteClient) DecrementViolations(ctx context.Context, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		UPDATE violations
		SET count = CASE WHEN count > 0 THEN count - 1 ELSE count END
		WHERE user_id = ?
	`, userID)
	return err
}

func (c *sqliteClient) ResetViolations(ctx context.Context, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, "DELETE FROM violations WHERE user_id = ?", userID)
	return err
}

func (c *sqliteClient) GetBannedWords(ctx context.Context) ([]db.BannedWord, error) {
	var words []db.BannedWord
	err := c.db.SelectContext(ctx, &words, "SELECT id, word FROM banned_words ORDER BY id")
	return words, err
}

func (c *sqliteClient) AddBannedWord(ctx context.Context, word string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false, errors.New("empty word")
	}
	res, err := c.db.ExecContext(ctx, "INSERT OR IGNORE INTO banned_words (word) VALUES (?)", word)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}
