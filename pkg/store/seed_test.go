package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSeed(t *testing.T) {
	doc := `
conversations:
  - uuid: 6a79ee22-5763-4e24-8b43-942840060b61
    legacy_id: 991130
    slug: front-desk
    workspace: grand-hotel
  - uuid: 123e4567-e89b-12d3-a456-426614174000
    legacy_id: 42
`
	st := NewMemoryStore()
	n, err := LoadSeed(context.Background(), strings.NewReader(doc), st)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	conv, err := st.FindBySlug(context.Background(), "front-desk")
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Equal(t, "grand-hotel", conv.Workspace)

	conv, err = st.FindByLegacyID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, conv)
}

func TestLoadSeedRejectsMissingUUID(t *testing.T) {
	doc := `
conversations:
  - legacy_id: 7
    slug: orphan
`
	_, err := LoadSeed(context.Background(), strings.NewReader(doc), NewMemoryStore())
	require.Error(t, err)
}

func TestLoadSeedBadYAML(t *testing.T) {
	_, err := LoadSeed(context.Background(), strings.NewReader("{not yaml"), NewMemoryStore())
	require.Error(t, err)
}
