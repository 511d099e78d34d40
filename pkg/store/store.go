package store

import (
	"context"
	"time"
)

// Conversation is the projection of a conversation row this service needs:
// identity fields only, never content.
type Conversation struct {
	UUID      string
	LegacyID  int64
	Slug      string
	Workspace string
}

// AliasRecord maps a legacy numeric id to its canonical UUID. LastSeenAt is
// bumped on every successful lookup and is monotonically non-decreasing per
// key.
type AliasRecord struct {
	LegacyID   int64
	UUID       string
	Slug       string
	LastSeenAt time.Time
}

// ConversationStore is the read surface of the primary store, plus the one
// opportunistic write this service performs (alias backfill). The store
// itself is owned by an external collaborator; a nil result with nil error
// means "no such conversation".
type ConversationStore interface {
	FindByLegacyID(ctx context.Context, legacyID int64) (*Conversation, error)
	FindBySlug(ctx context.Context, slug string) (*Conversation, error)
	FindByUUID(ctx context.Context, uuid string) (*Conversation, error)
	// UpsertAlias is idempotent and bumps the alias lastSeenAt. Duplicate
	// concurrent writes for the same key converge.
	UpsertAlias(ctx context.Context, legacyID int64, uuid string, slug string) error
}

// AliasCache is the legacy-id→uuid cache the resolution chain consults before
// the primary store. Persistence is the cache backend's concern.
type AliasCache interface {
	GetByLegacyID(ctx context.Context, legacyID int64) (*AliasRecord, error)
	GetBySlug(ctx context.Context, slug string) (*AliasRecord, error)
	Put(ctx context.Context, rec AliasRecord) error
}
