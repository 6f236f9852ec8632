package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS prompt_documents (
    user_id TEXT PRIMARY KEY,
    revision INTEGER NOT NULL DEFAULT 0,
    items_json TEXT NOT NULL DEFAULT '[]',
    before_text TEXT NOT NULL DEFAULT '',
    after_text TEXT NOT NULL DEFAULT '',
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS lifetime_usage (
    user_id TEXT PRIMARY KEY,
    lifetime_cost REAL NOT NULL DEFAULT 0,
    lifetime_image_count INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore is a Store backed by a SQLite database file. It stands in for
// the cloud document store: shared across processes for a user the way the
// original's store is shared across browser tabs.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore() (*SQLiteStore, error) {
	dbPath, err := defaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewSQLiteStoreWithPath(dbPath)
}

func NewSQLiteStoreWithPath(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func defaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".bananapicgen", "remote.db"), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReadPromptDocument(ctx context.Context, userID string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT revision, items_json, before_text, after_text, updated_at
		 FROM prompt_documents WHERE user_id = ?`, userID)

	doc := &Document{}
	var itemsJSON string
	err := row.Scan(&doc.Revision, &itemsJSON, &doc.State.BeforeText, &doc.State.AfterText, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(itemsJSON), &doc.State.Items); err != nil {
		return nil, fmt.Errorf("failed to decode prompt items: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) WritePromptDocument(ctx context.Context, userID string, doc *Document) error {
	itemsJSON := []byte("[]")
	if doc.State.Items != nil {
		var err error
		itemsJSON, err = json.Marshal(doc.State.Items)
		if err != nil {
			return fmt.Errorf("failed to encode prompt items: %w", err)
		}
	}

	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompt_documents (user_id, revision, items_json, before_text, after_text, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   revision = excluded.revision,
		   items_json = excluded.items_json,
		   before_text = excluded.before_text,
		   after_text = excluded.after_text,
		   updated_at = excluded.updated_at`,
		userID, doc.Revision, string(itemsJSON), doc.State.BeforeText, doc.State.AfterText, updatedAt)
	return err
}

func (s *SQLiteStore) ReadLifetimeUsage(ctx context.Context, userID string) (*LifetimeUsage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT lifetime_cost, lifetime_image_count
		 FROM lifetime_usage WHERE user_id = ?`, userID)

	u := &LifetimeUsage{}
	err := row.Scan(&u.LifetimeCost, &u.LifetimeImageCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) WriteLifetimeUsage(ctx context.Context, userID string, u *LifetimeUsage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lifetime_usage (user_id, lifetime_cost, lifetime_image_count, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   lifetime_cost = excluded.lifetime_cost,
		   lifetime_image_count = excluded.lifetime_image_count,
		   updated_at = excluded.updated_at`,
		userID, u.LifetimeCost, u.LifetimeImageCount, time.Now())
	return err
}

var _ Store = (*SQLiteStore)(nil)
