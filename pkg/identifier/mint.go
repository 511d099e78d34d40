package identifier

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultNamespace is the UUIDv5 namespace used to mint canonical UUIDs for
// identifiers that have no authoritative mapping. Changing it invalidates
// every previously minted link, so treat it like key material: overridable by
// configuration, rotated essentially never.
var DefaultNamespace = uuid.MustParse("8f1c9a52-6a2e-4b7a-9a0d-3f2d1c0b9e84")

// Minter derives stable UUIDs from non-UUID identifiers. Minting never does
// I/O and never fails except on an empty identifier.
type Minter struct {
	Namespace uuid.UUID
}

// NewMinter returns a Minter over the given namespace, falling back to
// DefaultNamespace when ns is the zero UUID.
func NewMinter(ns uuid.UUID) *Minter {
	if ns == uuid.Nil {
		ns = DefaultNamespace
	}
	return &Minter{Namespace: ns}
}

// Mint returns the canonical UUID for id. UUID inputs pass through lowercased
// and unchanged; legacy ids hash "legacy:<n>", slugs hash "slug:<s>".
func (m *Minter) Mint(id Identifier) (uuid.UUID, error) {
	switch id.Kind {
	case KindUUID:
		u, err := uuid.Parse(strings.ToLower(id.UUID))
		if err != nil {
			return uuid.Nil, errors.Wrap(err, "mint: parse uuid")
		}
		return u, nil
	case KindLegacyID:
		return uuid.NewSHA1(m.Namespace, []byte(fmt.Sprintf("legacy:%d", id.LegacyID))), nil
	case KindSlug:
		s := strings.TrimSpace(id.Slug)
		if s == "" {
			return uuid.Nil, errors.New("mint: empty slug")
		}
		return uuid.NewSHA1(m.Namespace, []byte("slug:"+s)), nil
	default:
		return uuid.Nil, errors.Errorf("mint: unknown identifier kind %q", id.Kind)
	}
}

// MintRaw classifies raw and mints it in one step.
func (m *Minter) MintRaw(raw string) (uuid.UUID, error) {
	id, ok := Classify(raw)
	if !ok {
		return uuid.Nil, errors.New("mint: empty identifier")
	}
	return m.Mint(id)
}
