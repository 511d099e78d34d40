package store

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Conversations []seedConversation `yaml:"conversations"`
}

type seedConversation struct {
	UUID      string `yaml:"uuid"`
	LegacyID  int64  `yaml:"legacy_id"`
	Slug      string `yaml:"slug"`
	Workspace string `yaml:"workspace"`
}

// Seeder is the write surface needed to load a conversation directory.
// Satisfied by SQLiteStore and MemoryStore.
type Seeder interface {
	AddConversation(ctx context.Context, c Conversation) error
}

// LoadSeed reads a YAML conversation directory from r and inserts every entry
// into dst. Entries without a uuid are rejected; the load stops at the first
// failing insert.
func LoadSeed(ctx context.Context, r io.Reader, dst Seeder) (int, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return 0, errors.Wrap(err, "decode seed file")
	}
	for i, sc := range f.Conversations {
		if sc.UUID == "" {
			return i, errors.Errorf("conversation %d has no uuid", i)
		}
		c := Conversation{
			UUID:      sc.UUID,
			LegacyID:  sc.LegacyID,
			Slug:      sc.Slug,
			Workspace: sc.Workspace,
		}
		if err := dst.AddConversation(ctx, c); err != nil {
			return i, errors.Wrapf(err, "insert conversation %s", sc.UUID)
		}
	}
	return len(f.Conversations), nil
}

// LoadSeedFile is LoadSeed over a file path.
func LoadSeedFile(ctx context.Context, path string, dst Seeder) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()
	return LoadSeed(ctx, f, dst)
}
