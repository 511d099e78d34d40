package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore backs ConversationStore with a local sqlite database. In
// production the primary store lives behind the dashboard's relational
// database; this implementation serves local development and the CLI.
type SQLiteStore struct {
	db *sql.DB
}

var _ ConversationStore = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: open")
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			uuid TEXT NOT NULL PRIMARY KEY,
			legacy_id INTEGER,
			slug TEXT,
			workspace TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_legacy_id
			ON conversations(legacy_id) WHERE legacy_id IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_slug ON conversations(slug);`,
		`CREATE TABLE IF NOT EXISTS conversation_aliases (
			legacy_id INTEGER NOT NULL PRIMARY KEY,
			uuid TEXT NOT NULL,
			slug TEXT NOT NULL DEFAULT '',
			last_seen_at_ms INTEGER NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) scanOne(row *sql.Row) (*Conversation, error) {
	var c Conversation
	var legacyID sql.NullInt64
	var slug sql.NullString
	err := row.Scan(&c.UUID, &legacyID, &slug, &c.Workspace)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.LegacyID = legacyID.Int64
	c.Slug = slug.String
	return &c, nil
}

const convColumns = `uuid, legacy_id, slug, workspace`

func (s *SQLiteStore) FindByLegacyID(ctx context.Context, legacyID int64) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE legacy_id = ?`, legacyID)
	c, err := s.scanOne(row)
	return c, errors.Wrap(err, "sqlite store: find by legacy id")
}

func (s *SQLiteStore) FindBySlug(ctx context.Context, slug string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE slug = ?`, slug)
	c, err := s.scanOne(row)
	return c, errors.Wrap(err, "sqlite store: find by slug")
}

func (s *SQLiteStore) FindByUUID(ctx context.Context, uuid string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE uuid = ?`, strings.ToLower(uuid))
	c, err := s.scanOne(row)
	return c, errors.Wrap(err, "sqlite store: find by uuid")
}

func (s *SQLiteStore) UpsertAlias(ctx context.Context, legacyID int64, uuid string, slug string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_aliases (legacy_id, uuid, slug, last_seen_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(legacy_id) DO UPDATE SET
			uuid = excluded.uuid,
			slug = CASE WHEN excluded.slug != '' THEN excluded.slug ELSE conversation_aliases.slug END,
			last_seen_at_ms = MAX(conversation_aliases.last_seen_at_ms, excluded.last_seen_at_ms)`,
		legacyID, strings.ToLower(uuid), slug, now)
	return errors.Wrap(err, "sqlite store: upsert alias")
}

// AddConversation inserts or replaces a conversation row. Used by seeding
// tooling and tests.
func (s *SQLiteStore) AddConversation(ctx context.Context, c Conversation) error {
	var legacyID any
	if c.LegacyID != 0 {
		legacyID = c.LegacyID
	}
	var slug any
	if c.Slug != "" {
		slug = c.Slug
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO conversations (uuid, legacy_id, slug, workspace)
		VALUES (?, ?, ?, ?)`,
		strings.ToLower(c.UUID), legacyID, slug, c.Workspace)
	return errors.Wrap(err, "sqlite store: add conversation")
}

// Alias reads back an alias row, primarily for tests.
func (s *SQLiteStore) Alias(ctx context.Context, legacyID int64) (*AliasRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT legacy_id, uuid, slug, last_seen_at_ms
		FROM conversation_aliases WHERE legacy_id = ?`, legacyID)
	var rec AliasRecord
	var ms int64
	err := row.Scan(&rec.LegacyID, &rec.UUID, &rec.Slug, &ms)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: read alias")
	}
	rec.LastSeenAt = time.UnixMilli(ms)
	return &rec, nil
}
