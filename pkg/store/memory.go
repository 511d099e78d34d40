package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process ConversationStore used in tests and local
// development.
type MemoryStore struct {
	mu      sync.RWMutex
	byUUID  map[string]Conversation
	aliases map[int64]AliasRecord
}

var _ ConversationStore = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUUID:  map[string]Conversation{},
		aliases: map[int64]AliasRecord{},
	}
}

// Add seeds a conversation row.
func (s *MemoryStore) Add(c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUUID[strings.ToLower(c.UUID)] = c
}

func (s *MemoryStore) AddConversation(ctx context.Context, c Conversation) error {
	s.Add(c)
	return nil
}

func (s *MemoryStore) FindByLegacyID(ctx context.Context, legacyID int64) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byUUID {
		if c.LegacyID == legacyID {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindBySlug(ctx context.Context, slug string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byUUID {
		if c.Slug != "" && c.Slug == slug {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindByUUID(ctx context.Context, uuid string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byUUID[strings.ToLower(uuid)]
	if !ok {
		return nil, nil
	}
	out := c
	return &out, nil
}

func (s *MemoryStore) UpsertAlias(ctx context.Context, legacyID int64, uuid string, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	prev, ok := s.aliases[legacyID]
	if ok && prev.LastSeenAt.After(now) {
		now = prev.LastSeenAt
	}
	s.aliases[legacyID] = AliasRecord{LegacyID: legacyID, UUID: strings.ToLower(uuid), Slug: slug, LastSeenAt: now}
	return nil
}

// Alias returns the stored alias row, for assertions in tests.
func (s *MemoryStore) Alias(legacyID int64) (AliasRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.aliases[legacyID]
	return rec, ok
}

// MemoryAliasCache is an in-process AliasCache.
type MemoryAliasCache struct {
	mu       sync.RWMutex
	byLegacy map[int64]AliasRecord
	bySlug   map[string]int64
}

var _ AliasCache = &MemoryAliasCache{}

func NewMemoryAliasCache() *MemoryAliasCache {
	return &MemoryAliasCache{
		byLegacy: map[int64]AliasRecord{},
		bySlug:   map[string]int64{},
	}
}

func (c *MemoryAliasCache) GetByLegacyID(ctx context.Context, legacyID int64) (*AliasRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.byLegacy[legacyID]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (c *MemoryAliasCache) GetBySlug(ctx context.Context, slug string) (*AliasRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.bySlug[slug]
	if !ok {
		return nil, nil
	}
	rec, ok := c.byLegacy[id]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (c *MemoryAliasCache) Put(ctx context.Context, rec AliasRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec.UUID = strings.ToLower(rec.UUID)
	if rec.LastSeenAt.IsZero() {
		rec.LastSeenAt = time.Now()
	}
	if prev, ok := c.byLegacy[rec.LegacyID]; ok && prev.LastSeenAt.After(rec.LastSeenAt) {
		// lastSeenAt never goes backwards for a key.
		rec.LastSeenAt = prev.LastSeenAt
	}
	c.byLegacy[rec.LegacyID] = rec
	if rec.Slug != "" {
		c.bySlug[rec.Slug] = rec.LegacyID
	}
	return nil
}
