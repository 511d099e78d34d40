package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "convlink.db") + "?_foreign_keys=on"
	s, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.AddConversation(ctx, Conversation{
		UUID:      "6a79ee22-5763-4e24-8b43-942840060b61",
		LegacyID:  991130,
		Slug:      "front-desk",
		Workspace: "grand-hotel",
	}))

	c, err := s.FindByLegacyID(ctx, 991130)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "6a79ee22-5763-4e24-8b43-942840060b61", c.UUID)

	c, err = s.FindBySlug(ctx, "front-desk")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "grand-hotel", c.Workspace)

	c, err = s.FindByUUID(ctx, "6A79EE22-5763-4E24-8B43-942840060B61")
	require.NoError(t, err)
	require.NotNil(t, c, "uuid lookups are case-insensitive")

	c, err = s.FindByLegacyID(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestSQLiteStoreUpsertAliasIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.UpsertAlias(ctx, 991130, "6a79ee22-5763-4e24-8b43-942840060b61", "front-desk"))
	first, err := s.Alias(ctx, 991130)
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, s.UpsertAlias(ctx, 991130, "6a79ee22-5763-4e24-8b43-942840060b61", ""))
	second, err := s.Alias(ctx, 991130)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, "front-desk", second.Slug, "empty slug does not clobber a known slug")
	require.False(t, second.LastSeenAt.Before(first.LastSeenAt), "lastSeenAt is non-decreasing")
}

func TestSQLiteStoreNilRowWithoutLegacyID(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.AddConversation(ctx, Conversation{
		UUID: "123e4567-e89b-12d3-a456-426614174000",
		Slug: "uuid-only",
	}))

	c, err := s.FindByLegacyID(ctx, 0)
	require.NoError(t, err)
	require.Nil(t, c, "rows without a legacy id are not matched by id 0")
}
