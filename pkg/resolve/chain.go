package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boomhq/convlink/pkg/identifier"
	"github.com/boomhq/convlink/pkg/store"
)

// Prober inspects a legacy redirect endpoint for a UUID. Implemented by
// RedirectProber; swapped for a stub in tests.
type Prober interface {
	Probe(ctx context.Context, raw string) (string, bool)
}

// ChainOptions gate the optional tiers of the resolution chain.
type ChainOptions struct {
	// AllowMint permits deterministic minting when every tier misses.
	AllowMint bool
	// AllowProbe enables the redirect-probe tier. Callers on hot paths leave
	// it off; batch link building turns it on.
	AllowProbe bool
}

// Chain is the ordered local fallback resolver: direct match, alias cache,
// primary store (with cache backfill), alias cache by slug, inline payload
// mining, redirect probing. Every tier swallows its own errors and reads as
// a miss; Resolve returns nil only once all tiers are exhausted and minting
// is disallowed.
type Chain struct {
	store  store.ConversationStore
	cache  store.AliasCache
	prober Prober
	minter *identifier.Minter
	opts   ChainOptions
}

func NewChain(cs store.ConversationStore, cache store.AliasCache, prober Prober, minter *identifier.Minter, opts ChainOptions) *Chain {
	if minter == nil {
		minter = identifier.NewMinter(identifier.DefaultNamespace)
	}
	return &Chain{store: cs, cache: cache, prober: prober, minter: minter, opts: opts}
}

// Resolve runs the chain for raw. payload is an optional caller-supplied
// nested structure (a decoded message thread, webhook body, ...) mined for
// identifiers when the direct tiers miss.
func (c *Chain) Resolve(ctx context.Context, raw string, payload any) *Result {
	id, ok := identifier.Classify(raw)
	if !ok {
		return nil
	}

	if res := c.resolveIdentifier(ctx, id); res != nil {
		return res
	}

	if payload != nil {
		if res := c.resolveFromPayload(ctx, payload); res != nil {
			return res
		}
	}

	if c.opts.AllowProbe && c.prober != nil {
		if u, ok := c.prober.Probe(ctx, raw); ok {
			return &Result{UUID: strings.ToLower(u), Source: SourceRedirectProbe}
		}
	}

	if c.opts.AllowMint {
		return c.mint(id)
	}
	return nil
}

// resolveIdentifier runs tiers 1-4 for an already-classified identifier.
func (c *Chain) resolveIdentifier(ctx context.Context, id identifier.Identifier) *Result {
	switch id.Kind {
	case identifier.KindUUID:
		return &Result{UUID: id.UUID, Source: SourceDirect}

	case identifier.KindLegacyID:
		if rec := c.cacheByLegacyID(ctx, id.LegacyID); rec != nil {
			return &Result{UUID: rec.UUID, Source: SourceAlias}
		}
		if conv := c.storeByLegacyID(ctx, id.LegacyID); conv != nil {
			c.backfill(ctx, conv)
			return &Result{UUID: strings.ToLower(conv.UUID), Source: SourceStore}
		}
		return nil

	case identifier.KindSlug:
		if conv := c.storeBySlug(ctx, id.Slug); conv != nil {
			c.backfill(ctx, conv)
			return &Result{UUID: strings.ToLower(conv.UUID), Source: SourceStore}
		}
		if rec := c.cacheBySlug(ctx, id.Slug); rec != nil {
			return &Result{UUID: rec.UUID, Source: SourceAlias}
		}
		return nil
	}
	return nil
}

// resolveFromPayload mines the payload tree and pushes any candidates back
// through the direct tiers. An embedded UUID wins outright.
func (c *Chain) resolveFromPayload(ctx context.Context, payload any) *Result {
	m := minePayload(payload)
	if m.uuid != "" {
		return &Result{UUID: strings.ToLower(m.uuid), Source: SourceInline}
	}
	for _, cand := range m.candidates {
		id, ok := identifier.Classify(cand)
		if !ok || id.Kind == identifier.KindUUID {
			continue
		}
		if res := c.resolveIdentifier(ctx, id); res != nil {
			res.Source = SourceInline
			return res
		}
	}
	return nil
}

func (c *Chain) mint(id identifier.Identifier) *Result {
	u, err := c.minter.Mint(id)
	if err != nil {
		log.Debug().Err(err).Msg("mint fallback failed")
		return nil
	}
	return &Result{UUID: u.String(), Minted: true, Source: SourceMinted}
}

// backfill writes a store hit into the alias cache and the store's alias
// table. Best effort: failures are logged and the resolution proceeds.
func (c *Chain) backfill(ctx context.Context, conv *store.Conversation) {
	if conv.LegacyID == 0 {
		return
	}
	if c.cache != nil {
		err := c.cache.Put(ctx, store.AliasRecord{
			LegacyID:   conv.LegacyID,
			UUID:       strings.ToLower(conv.UUID),
			Slug:       conv.Slug,
			LastSeenAt: time.Now(),
		})
		if err != nil {
			log.Warn().Err(err).Int64("legacy_id", conv.LegacyID).Msg("alias cache backfill failed")
		}
	}
	if c.store != nil {
		if err := c.store.UpsertAlias(ctx, conv.LegacyID, conv.UUID, conv.Slug); err != nil {
			log.Warn().Err(err).Int64("legacy_id", conv.LegacyID).Msg("alias upsert failed")
		}
	}
}

func (c *Chain) cacheByLegacyID(ctx context.Context, legacyID int64) *store.AliasRecord {
	if c.cache == nil {
		return nil
	}
	rec, err := c.cache.GetByLegacyID(ctx, legacyID)
	if err != nil {
		log.Debug().Err(err).Int64("legacy_id", legacyID).Msg("alias cache lookup failed, degrading to store")
		return nil
	}
	return rec
}

func (c *Chain) cacheBySlug(ctx context.Context, slug string) *store.AliasRecord {
	if c.cache == nil {
		return nil
	}
	rec, err := c.cache.GetBySlug(ctx, slug)
	if err != nil {
		log.Debug().Err(err).Str("slug", slug).Msg("alias cache slug lookup failed")
		return nil
	}
	return rec
}

func (c *Chain) storeByLegacyID(ctx context.Context, legacyID int64) *store.Conversation {
	if c.store == nil {
		return nil
	}
	conv, err := c.store.FindByLegacyID(ctx, legacyID)
	if err != nil {
		log.Debug().Err(err).Int64("legacy_id", legacyID).Msg("store lookup by legacy id failed")
		return nil
	}
	return conv
}

func (c *Chain) storeBySlug(ctx context.Context, slug string) *store.Conversation {
	if c.store == nil {
		return nil
	}
	conv, err := c.store.FindBySlug(ctx, slug)
	if err != nil {
		log.Debug().Err(err).Str("slug", slug).Msg("store lookup by slug failed")
		return nil
	}
	return conv
}
