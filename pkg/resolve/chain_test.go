package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/boomhq/convlink/pkg/identifier"
	"github.com/boomhq/convlink/pkg/store"
)

const convUUID = "6a79ee22-5763-4e24-8b43-942840060b61"

type stubProber struct {
	uuid string
	hits int
}

func (p *stubProber) Probe(ctx context.Context, raw string) (string, bool) {
	p.hits++
	if p.uuid == "" {
		return "", false
	}
	return p.uuid, true
}

// failingStore errors on every call, which the chain must absorb as misses.
type failingStore struct{}

func (failingStore) FindByLegacyID(ctx context.Context, legacyID int64) (*store.Conversation, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) FindBySlug(ctx context.Context, slug string) (*store.Conversation, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) FindByUUID(ctx context.Context, u string) (*store.Conversation, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) UpsertAlias(ctx context.Context, legacyID int64, u string, slug string) error {
	return context.DeadlineExceeded
}

func TestChainDirectUUID(t *testing.T) {
	c := NewChain(store.NewMemoryStore(), store.NewMemoryAliasCache(), nil, nil, ChainOptions{})
	res := c.Resolve(context.Background(), "123E4567-E89B-12D3-A456-426614174000", nil)
	require.NotNil(t, res)
	require.Equal(t, "123e4567-e89b-12d3-a456-426614174000", res.UUID)
	require.Equal(t, SourceDirect, res.Source)
	require.False(t, res.Minted)
}

func TestChainAliasCacheHit(t *testing.T) {
	ctx := context.Background()
	cache := store.NewMemoryAliasCache()
	require.NoError(t, cache.Put(ctx, store.AliasRecord{LegacyID: 991130, UUID: convUUID}))

	c := NewChain(store.NewMemoryStore(), cache, nil, nil, ChainOptions{})
	res := c.Resolve(ctx, "991130", nil)
	require.NotNil(t, res)
	require.Equal(t, convUUID, res.UUID)
	require.Equal(t, SourceAlias, res.Source)
}

func TestChainStoreHitBackfillsAliasCache(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.Add(store.Conversation{UUID: convUUID, LegacyID: 991130, Slug: "front-desk"})
	cache := store.NewMemoryAliasCache()

	c := NewChain(st, cache, nil, nil, ChainOptions{})
	res := c.Resolve(ctx, "991130", nil)
	require.NotNil(t, res)
	require.Equal(t, convUUID, res.UUID)
	require.Equal(t, SourceStore, res.Source)

	rec, err := cache.GetByLegacyID(ctx, 991130)
	require.NoError(t, err)
	require.NotNil(t, rec, "store hit is written back to the alias cache")
	require.Equal(t, convUUID, rec.UUID)

	aliasRow, ok := st.Alias(991130)
	require.True(t, ok, "store alias table is backfilled too")
	require.Equal(t, convUUID, aliasRow.UUID)
}

func TestChainSlugViaStoreThenCache(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.Add(store.Conversation{UUID: convUUID, LegacyID: 991130, Slug: "front-desk"})

	c := NewChain(st, store.NewMemoryAliasCache(), nil, nil, ChainOptions{})
	res := c.Resolve(ctx, "front-desk", nil)
	require.NotNil(t, res)
	require.Equal(t, SourceStore, res.Source)

	// Cache-only slug knowledge is still honored once the store forgets.
	cache := store.NewMemoryAliasCache()
	require.NoError(t, cache.Put(ctx, store.AliasRecord{LegacyID: 5, UUID: convUUID, Slug: "orphan-slug"}))
	c2 := NewChain(store.NewMemoryStore(), cache, nil, nil, ChainOptions{})
	res = c2.Resolve(ctx, "orphan-slug", nil)
	require.NotNil(t, res)
	require.Equal(t, SourceAlias, res.Source)
}

func TestChainAbsorbsStoreErrors(t *testing.T) {
	c := NewChain(failingStore{}, store.NewMemoryAliasCache(), nil, nil, ChainOptions{})
	res := c.Resolve(context.Background(), "991130", nil)
	require.Nil(t, res, "store errors degrade to a miss, never an error")
}

func TestChainMintFallback(t *testing.T) {
	c := NewChain(store.NewMemoryStore(), store.NewMemoryAliasCache(), nil, nil, ChainOptions{AllowMint: true})
	res := c.Resolve(context.Background(), "brand-new-slug", nil)
	require.NotNil(t, res)
	require.True(t, res.Minted)
	require.Equal(t, SourceMinted, res.Source)

	want := uuid.NewSHA1(identifier.DefaultNamespace, []byte("slug:brand-new-slug"))
	require.Equal(t, want.String(), res.UUID)

	// Deterministic across calls.
	res2 := c.Resolve(context.Background(), "brand-new-slug", nil)
	require.Equal(t, res.UUID, res2.UUID)
}

func TestChainMintDisallowedReturnsNil(t *testing.T) {
	c := NewChain(store.NewMemoryStore(), store.NewMemoryAliasCache(), nil, nil, ChainOptions{})
	require.Nil(t, c.Resolve(context.Background(), "brand-new-slug", nil))
}

func TestChainMintedOnlyWhenNoAuthoritativeTier(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.Add(store.Conversation{UUID: convUUID, Slug: "known-slug", LegacyID: 9})

	c := NewChain(st, store.NewMemoryAliasCache(), nil, nil, ChainOptions{AllowMint: true})
	res := c.Resolve(ctx, "known-slug", nil)
	require.NotNil(t, res)
	require.False(t, res.Minted, "authoritative hit must not be tagged minted")
}

func TestChainRedirectProbeGated(t *testing.T) {
	prober := &stubProber{uuid: convUUID}

	c := NewChain(store.NewMemoryStore(), store.NewMemoryAliasCache(), prober, nil, ChainOptions{})
	require.Nil(t, c.Resolve(context.Background(), "mystery-slug", nil))
	require.Zero(t, prober.hits, "probe tier is caller-gated")

	c = NewChain(store.NewMemoryStore(), store.NewMemoryAliasCache(), prober, nil, ChainOptions{AllowProbe: true})
	res := c.Resolve(context.Background(), "mystery-slug", nil)
	require.NotNil(t, res)
	require.Equal(t, SourceRedirectProbe, res.Source)
	require.Equal(t, convUUID, res.UUID)
}

func TestChainInlinePayload(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.Add(store.Conversation{UUID: convUUID, LegacyID: 991130})

	c := NewChain(st, store.NewMemoryAliasCache(), nil, nil, ChainOptions{})

	// Embedded UUID in free text wins outright.
	payload := map[string]any{
		"messages": []any{
			map[string]any{"body": "see https://app.example.com/dashboard?conversation=" + convUUID},
		},
	}
	res := c.Resolve(ctx, "unknown-slug", payload)
	require.NotNil(t, res)
	require.Equal(t, SourceInline, res.Source)
	require.Equal(t, convUUID, res.UUID)

	// Legacy-id candidate mined from the payload is re-resolved through the
	// store tiers but still tagged inline.
	payload = map[string]any{"thread": map[string]any{"legacy_id": float64(991130)}}
	res = c.Resolve(ctx, "unknown-slug", payload)
	require.NotNil(t, res)
	require.Equal(t, SourceInline, res.Source)
	require.Equal(t, convUUID, res.UUID)
}

func TestChainAliasFreshnessBump(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.Add(store.Conversation{UUID: convUUID, LegacyID: 991130})
	cache := store.NewMemoryAliasCache()
	c := NewChain(st, cache, nil, nil, ChainOptions{})

	require.NotNil(t, c.Resolve(ctx, "991130", nil))
	first, err := cache.GetByLegacyID(ctx, 991130)
	require.NoError(t, err)
	require.NotNil(t, first)

	time.Sleep(2 * time.Millisecond)
	// Cache now answers directly; seed a fresher backfill through the store
	// path by clearing the cache entry's freshness via a second store hit.
	require.NoError(t, cache.Put(ctx, store.AliasRecord{LegacyID: 991130, UUID: convUUID, LastSeenAt: time.Now()}))
	second, err := cache.GetByLegacyID(ctx, 991130)
	require.NoError(t, err)
	require.False(t, second.LastSeenAt.Before(first.LastSeenAt), "lastSeenAt is non-decreasing")
}
